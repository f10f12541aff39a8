package keyboard

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionKind identifies the variant of an Action.
type ActionKind int

const (
	// ActionNone is the zero Action; it does nothing.
	ActionNone ActionKind = iota
	ActionCharacter
	// ActionCharacterMargin is an invisible spacer that types its character when hit.
	ActionCharacterMargin
	ActionSpace
	ActionEnter
	ActionBackspace
	ActionTab
	ActionShift
	// ActionKeyboardType switches the visible layout.
	ActionKeyboardType
	ActionShortCommand
	// ActionSymbol inserts a symbol or a pair such as 《》.
	ActionSymbol
	// ActionChineseNineGrid feeds a nine-grid letter group such as ABC.
	ActionChineseNineGrid
	// ActionOpaque carries an unknown verb through unchanged.
	ActionOpaque
)

var verbs = map[string]ActionKind{
	"character":       ActionCharacter,
	"characterMargin": ActionCharacterMargin,
	"space":           ActionSpace,
	"enter":           ActionEnter,
	"backspace":       ActionBackspace,
	"tab":             ActionTab,
	"shift":           ActionShift,
	"keyboardType":    ActionKeyboardType,
	"shortCommand":    ActionShortCommand,
	"symbol":          ActionSymbol,
	"chineseNineGrid": ActionChineseNineGrid,
}

var kindVerbs = func() map[ActionKind]string {
	m := make(map[ActionKind]string, len(verbs))
	for v, k := range verbs {
		m[k] = v
	}
	return m
}()

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionOpaque:
		return "opaque"
	}
	if v, ok := kindVerbs[k]; ok {
		return v
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// HasParameter reports whether the verb takes a name(parameter) form.
func (k ActionKind) HasParameter() bool {
	switch k {
	case ActionCharacter, ActionCharacterMargin, ActionKeyboardType,
		ActionShortCommand, ActionSymbol, ActionChineseNineGrid:
		return true
	}
	return false
}

// Action is what a key or gesture asks for. It is plain data.
// For ActionOpaque, Value holds the whole original text.
type Action struct {
	Kind  ActionKind
	Value string
}

func Character(s string) Action       { return Action{Kind: ActionCharacter, Value: s} }
func CharacterMargin(s string) Action { return Action{Kind: ActionCharacterMargin, Value: s} }
func SwitchKeyboard(name string) Action {
	return Action{Kind: ActionKeyboardType, Value: name}
}
func Symbol(s string) Action   { return Action{Kind: ActionSymbol, Value: s} }
func NineGrid(g string) Action { return Action{Kind: ActionChineseNineGrid, Value: g} }
func ShortCommand(c Command) Action {
	return Action{Kind: ActionShortCommand, Value: string(c)}
}

var (
	Space     = Action{Kind: ActionSpace}
	Enter     = Action{Kind: ActionEnter}
	Backspace = Action{Kind: ActionBackspace}
	Tab       = Action{Kind: ActionTab}
	Shift     = Action{Kind: ActionShift}
)

// IsZero reports whether a is the zero Action.
func (a Action) IsZero() bool { return a.Kind == ActionNone && a.Value == "" }

// String renders a in the name / name(parameter) grammar.
func (a Action) String() string {
	switch {
	case a.Kind == ActionNone:
		return ""
	case a.Kind == ActionOpaque:
		return a.Value
	case a.Kind.HasParameter():
		return kindVerbs[a.Kind] + "(" + a.Value + ")"
	default:
		return kindVerbs[a.Kind]
	}
}

// Command returns the canonical short command of an ActionShortCommand.
func (a Action) Command() (Command, bool) {
	if a.Kind != ActionShortCommand {
		return "", false
	}
	return LookupCommand(a.Value)
}

// ParseAction parses the action grammar. In strict mode unknown verbs and
// unknown short commands are errors; otherwise unknown verbs become
// ActionOpaque. Malformed text is an error in both modes.
func ParseAction(s string, strict bool) (Action, error) {
	if s == "" {
		return Action{}, fmt.Errorf("empty action")
	}

	name, param, hasParam := s, "", false
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") || len(s) < i+2 {
			return Action{}, fmt.Errorf("action %q: unbalanced parameter", s)
		}
		name, param, hasParam = s[:i], s[i+1:len(s)-1], true
	}

	if !isVerb(name) {
		return Action{}, fmt.Errorf("action %q: malformed verb", s)
	}

	kind, ok := verbs[name]
	if !ok {
		if strict {
			return Action{}, fmt.Errorf("action %q: unknown verb %q", s, name)
		}
		return Action{Kind: ActionOpaque, Value: s}, nil
	}

	switch {
	case kind.HasParameter() && (!hasParam || param == ""):
		return Action{}, fmt.Errorf("action %q: %s requires a parameter", s, name)
	case !kind.HasParameter() && hasParam:
		return Action{}, fmt.Errorf("action %q: %s takes no parameter", s, name)
	}

	if kind == ActionShortCommand && strict {
		if _, ok := LookupCommand(param); !ok {
			return Action{}, fmt.Errorf("action %q: unknown short command %q", s, param)
		}
	}

	return Action{Kind: kind, Value: param}, nil
}

func isVerb(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		case r == '_' && i > 0:
		default:
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler leniently.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text), false)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalYAML decodes leniently and reports grammar errors with their line.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return nodeError(node, "action must be a string")
	}
	parsed, err := ParseAction(node.Value, false)
	if err != nil {
		return nodeError(node, err.Error())
	}
	*a = parsed
	return nil
}

// Command is a named editing command bound through shortCommand(...).
type Command string

const (
	CommandLineStart        Command = "#行首"
	CommandLineEnd          Command = "#行尾"
	CommandReinput          Command = "#重输"
	CommandSelectSecond     Command = "#次选上屏"
	CommandNewLine          Command = "#换行"
	CommandPreviousSchema   Command = "#上个输入方案"
	CommandClear            Command = "#清屏"
	CommandToggleASCII      Command = "#中英切换"
	CommandToggleSimplified Command = "#简繁切换"
)

var commandAliases = map[string]Command{
	"#lineStart":             CommandLineStart,
	"#lineEnd":               CommandLineEnd,
	"#reinput":               CommandReinput,
	"#selectSecond":          CommandSelectSecond,
	"#newLine":               CommandNewLine,
	"#previousSchema":        CommandPreviousSchema,
	"#clear":                 CommandClear,
	"#asciiMode":             CommandToggleASCII,
	"#simplifiedTraditional": CommandToggleSimplified,
}

// LookupCommand resolves either spelling of a short command.
func LookupCommand(name string) (Command, bool) {
	switch c := Command(name); c {
	case CommandLineStart, CommandLineEnd, CommandReinput, CommandSelectSecond,
		CommandNewLine, CommandPreviousSchema, CommandClear,
		CommandToggleASCII, CommandToggleSimplified:
		return c, true
	}
	c, ok := commandAliases[name]
	return c, ok
}
