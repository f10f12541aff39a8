package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"space", Space},
		{"enter", Enter},
		{"backspace", Backspace},
		{"tab", Tab},
		{"shift", Shift},
		{"character(a)", Character("a")},
		{"character(()", Character("(")},
		{"character())", Character(")")},
		{"character(\\)", Character("\\")},
		{"characterMargin(a)", CharacterMargin("a")},
		{"keyboardType(numericNineGrid)", SwitchKeyboard("numericNineGrid")},
		{"symbol(《》)", Symbol("《》")},
		{"symbol(())", Symbol("()")},
		{"chineseNineGrid(@/.)", NineGrid("@/.")},
		{"shortCommand(#重输)", ShortCommand(CommandReinput)},
		{"shortCommand(#reinput)", Action{Kind: ActionShortCommand, Value: "#reinput"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseActionErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"character()",
		"character(a",
		"character",
		"space(x)",
		"(a)",
		"1char(a)",
		"not a verb",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAction(in, false)
			assert.Error(t, err)
		})
	}
}

func TestParseActionStrictness(t *testing.T) {
	_, err := ParseAction("emoji(smile)", true)
	assert.Error(t, err)

	a, err := ParseAction("emoji(smile)", false)
	require.NoError(t, err)
	assert.Equal(t, ActionOpaque, a.Kind)
	assert.Equal(t, "emoji(smile)", a.String())

	_, err = ParseAction("shortCommand(#dance)", true)
	assert.Error(t, err)

	a, err = ParseAction("shortCommand(#dance)", false)
	require.NoError(t, err)
	_, known := a.Command()
	assert.False(t, known)
}

func TestLookupCommandAliases(t *testing.T) {
	tests := map[string]Command{
		"#行首":             CommandLineStart,
		"#lineStart":      CommandLineStart,
		"#lineEnd":        CommandLineEnd,
		"#次选上屏":           CommandSelectSecond,
		"#previousSchema": CommandPreviousSchema,
		"#上个输入方案":         CommandPreviousSchema,
	}
	for in, want := range tests {
		got, ok := LookupCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	cmd, ok := Action{Kind: ActionShortCommand, Value: "#newLine"}.Command()
	assert.True(t, ok)
	assert.Equal(t, CommandNewLine, cmd)

	_, ok = Character("a").Command()
	assert.False(t, ok)
}

func TestActionText(t *testing.T) {
	var a Action
	require.NoError(t, a.UnmarshalText([]byte("symbol(“”)")))
	assert.Equal(t, Symbol("“”"), a)

	b, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "symbol(“”)", string(b))

	assert.True(t, Action{}.IsZero())
	assert.False(t, Space.IsZero())
}
