package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is a palette entry written as 0xBBGGRR or 0xAABBGGRR, the channel
// order used by Rime color schemes. Six-digit values are opaque.
type Color struct {
	R, G, B, A uint8
}

// ParseColor parses a Rime hex color.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok {
		hex, ok = strings.CutPrefix(s, "0X")
	}
	if !ok || (len(hex) != 6 && len(hex) != 8) {
		return Color{}, fmt.Errorf("color %q: expected 0xBBGGRR or 0xAABBGGRR", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}

	c := Color{
		R: uint8(v),
		G: uint8(v >> 8),
		B: uint8(v >> 16),
		A: 0xFF,
	}
	if len(hex) == 8 {
		c.A = uint8(v >> 24)
	}
	return c, nil
}

// MustParseColor is ParseColor for literals known to be valid.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) String() string {
	if c.A == 0xFF {
		return fmt.Sprintf("0x%02X%02X%02X", c.B, c.G, c.R)
	}
	return fmt.Sprintf("0x%02X%02X%02X%02X", c.A, c.B, c.G, c.R)
}

// RGBA implements image/color.Color with alpha-premultiplied channels.
func (c Color) RGBA() (r, g, b, a uint32) {
	a = uint32(c.A)
	a |= a << 8
	r = uint32(c.R) * a / 0xFF
	g = uint32(c.G) * a / 0xFF
	b = uint32(c.B) * a / 0xFF
	return r, g, b, a
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalYAML reads the raw scalar, so unquoted hex is not taken as an integer.
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return nodeError(node, "color must be a hex scalar")
	}
	parsed, err := ParseColor(node.Value)
	if err != nil {
		return nodeError(node, err.Error())
	}
	*c = parsed
	return nil
}
