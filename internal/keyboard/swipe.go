package keyboard

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Direction is a compass direction of a swipe.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

// SwipeBinding maps one direction of a key to an action.
type SwipeBinding struct {
	Direction Direction `yaml:"direction" json:"direction"`
	Action    Action    `yaml:"action" json:"action"`
	Label     string    `yaml:"label,omitempty" json:"label,omitempty"`
	// ProcessByEngine routes the action through the engine instead of the text buffer.
	ProcessByEngine bool `yaml:"processByRIME" json:"processByRIME"`
	// Display advertises the binding on the key cap.
	Display bool `yaml:"display" json:"display"`
}

// UnmarshalYAML defaults processByRIME and display to true.
func (b *SwipeBinding) UnmarshalYAML(node *yaml.Node) error {
	type plain SwipeBinding
	p := plain{ProcessByEngine: true, Display: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	if !p.Direction.Valid() {
		return nodeError(node, fmt.Sprintf("unknown swipe direction %q", p.Direction))
	}
	*b = SwipeBinding(p)
	return nil
}
