package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WidthKind selects how a key's width is computed.
type WidthKind int

const (
	// WidthInput is the standard input-key width.
	WidthInput WidthKind = iota
	WidthFixed
	// WidthPercentage is a fraction of the row width in (0, 1].
	WidthPercentage
	// WidthAvailable fills the space left by the other keys.
	WidthAvailable
)

// Width is a key width: unset, a fixed number, percentage(p) or available.
type Width struct {
	Kind  WidthKind
	Value float64
}

func (w Width) IsZero() bool { return w.Kind == WidthInput }

func (w Width) String() string {
	switch w.Kind {
	case WidthFixed:
		return strconv.FormatFloat(w.Value, 'f', -1, 64)
	case WidthPercentage:
		return "percentage(" + strconv.FormatFloat(w.Value, 'f', -1, 64) + ")"
	case WidthAvailable:
		return "available"
	default:
		return ""
	}
}

// ParseWidth parses a width expression.
func ParseWidth(s string) (Width, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "input":
		return Width{}, nil
	case s == "available":
		return Width{Kind: WidthAvailable}, nil
	case strings.HasPrefix(s, "percentage(") && strings.HasSuffix(s, ")"):
		p, err := strconv.ParseFloat(s[len("percentage("):len(s)-1], 64)
		if err != nil {
			return Width{}, fmt.Errorf("width %q: %w", s, err)
		}
		if p <= 0 || p > 1 {
			return Width{}, fmt.Errorf("width %q: percentage must be in (0, 1]", s)
		}
		return Width{Kind: WidthPercentage, Value: p}, nil
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Width{}, fmt.Errorf("width %q: expected number, percentage(p) or available", s)
	}
	if n <= 0 {
		return Width{}, fmt.Errorf("width %q: must be positive", s)
	}
	return Width{Kind: WidthFixed, Value: n}, nil
}

func (w Width) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Width) UnmarshalText(text []byte) error {
	parsed, err := ParseWidth(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// MarshalYAML keeps fixed widths numeric.
func (w Width) MarshalYAML() (any, error) {
	if w.Kind == WidthFixed {
		return w.Value, nil
	}
	return w.String(), nil
}

func (w *Width) UnmarshalYAML(node *yaml.Node) error {
	if isNull(node) {
		*w = Width{}
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return nodeError(node, "width must be a scalar")
	}
	parsed, err := ParseWidth(node.Value)
	if err != nil {
		return nodeError(node, err.Error())
	}
	*w = parsed
	return nil
}

// Insets are the button paddings of a layout.
type Insets struct {
	Left, Right, Top, Bottom float64
}

func (in Insets) IsZero() bool { return in == Insets{} }

func (in Insets) String() string {
	var parts []string
	add := func(name string, v float64) {
		if v != 0 {
			parts = append(parts, name+"("+strconv.FormatFloat(v, 'f', -1, 64)+")")
		}
	}
	add("left", in.Left)
	add("right", in.Right)
	add("top", in.Top)
	add("bottom", in.Bottom)
	return strings.Join(parts, ",")
}

// ParseInsets parses "left(n),right(n),top(n),bottom(n)" in any order, or a
// single number applied to all sides. Missing sides are zero.
func ParseInsets(s string) (Insets, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Insets{}, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return Insets{Left: n, Right: n, Top: n, Bottom: n}, nil
	}

	var in Insets
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		open := strings.IndexByte(part, '(')
		if open <= 0 || !strings.HasSuffix(part, ")") {
			return Insets{}, fmt.Errorf("insets %q: malformed side %q", s, part)
		}
		side := part[:open]
		v, err := strconv.ParseFloat(part[open+1:len(part)-1], 64)
		if err != nil {
			return Insets{}, fmt.Errorf("insets %q: %w", s, err)
		}
		if seen[side] {
			return Insets{}, fmt.Errorf("insets %q: duplicate side %q", s, side)
		}
		seen[side] = true

		switch side {
		case "left":
			in.Left = v
		case "right":
			in.Right = v
		case "top":
			in.Top = v
		case "bottom":
			in.Bottom = v
		default:
			return Insets{}, fmt.Errorf("insets %q: unknown side %q", s, side)
		}
	}
	return in, nil
}

func (in Insets) MarshalText() ([]byte, error) { return []byte(in.String()), nil }

func (in *Insets) UnmarshalText(text []byte) error {
	parsed, err := ParseInsets(string(text))
	if err != nil {
		return err
	}
	*in = parsed
	return nil
}

func (in *Insets) UnmarshalYAML(node *yaml.Node) error {
	if isNull(node) {
		*in = Insets{}
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return nodeError(node, "buttonInsets must be a scalar")
	}
	parsed, err := ParseInsets(node.Value)
	if err != nil {
		return nodeError(node, err.Error())
	}
	*in = parsed
	return nil
}

// Label is the text drawn on a key. LoadingText is shown while the engine deploys.
type Label struct {
	Text        string
	LoadingText string
}

func (l Label) IsZero() bool { return l == Label{} }

type labelMapping struct {
	Text        string `yaml:"text,omitempty"`
	LoadingText string `yaml:"loadingText,omitempty"`
}

// MarshalYAML writes a plain scalar unless LoadingText is set.
func (l Label) MarshalYAML() (any, error) {
	if l.LoadingText == "" {
		return l.Text, nil
	}
	return labelMapping(l), nil
}

func (l *Label) UnmarshalYAML(node *yaml.Node) error {
	switch {
	case isNull(node):
		*l = Label{}
		return nil
	case node.Kind == yaml.ScalarNode:
		*l = Label{Text: node.Value}
		return nil
	case node.Kind == yaml.MappingNode:
		var m labelMapping
		if err := node.Decode(&m); err != nil {
			return err
		}
		*l = Label(m)
		return nil
	default:
		return nodeError(node, "label must be text or a {text, loadingText} mapping")
	}
}
