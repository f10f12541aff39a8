package keyboard

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("keyboard: parse error")

// ParseError reports a malformed keyboard document. Line is 1-based and
// zero when the position is unknown.
type ParseError struct {
	File string
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.File
	if e.Line > 0 {
		if loc == "" {
			loc = fmt.Sprintf("line %d", e.Line)
		} else {
			loc = fmt.Sprintf("%s:%d", loc, e.Line)
		}
	}

	msg := e.Msg
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if loc != "" {
		return "keyboard: " + loc + ": " + msg
	}
	return "keyboard: " + msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

func nodeError(node *yaml.Node, msg string) *ParseError {
	return &ParseError{Line: node.Line, Msg: msg}
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}
