package ime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamster/internal/candidate"
	"hamster/internal/gesture"
	"hamster/internal/keyboard"
	"hamster/internal/rime"
	"hamster/internal/rime/rimetest"
)

func testConfig() *keyboard.Configuration {
	cfg := keyboard.Default()
	cfg.Keyboard.UseKeyboardType = "custom(test)"
	cfg.Keyboard.LockShiftState = false
	cfg.Keyboard.PairsOfSymbols = []string{"《》", "“”"}
	cfg.Keyboards = []keyboard.Layout{{
		Name: "test",
		Rows: []keyboard.Row{{Keys: []keyboard.Key{{
			Action: keyboard.Character("a"),
			Swipe: []keyboard.SwipeBinding{
				{Direction: keyboard.Left, Action: keyboard.ShortCommand(keyboard.CommandLineStart)},
				{Direction: keyboard.Down, Action: keyboard.Symbol("《》")},
				{Direction: keyboard.Up, Action: keyboard.Character("1"), ProcessByEngine: true},
			},
		}}}},
	}}
	return cfg
}

type fixture struct {
	ctrl    *Controller
	doc     *Document
	manager *rime.Manager
	fake    *rimetest.Fake
}

func newFixture(t *testing.T, cfg *keyboard.Configuration, opts ...Option) *fixture {
	t.Helper()
	fake := rimetest.NewFake()
	m := rime.NewManager(fake)
	require.NoError(t, m.Configure(rime.Traits{
		SharedDataDir: t.TempDir(),
		UserDataDir:   t.TempDir(),
	}))
	t.Cleanup(m.Shutdown)

	doc := NewDocument("")
	return &fixture{
		ctrl:    NewController(m, gesture.Static{Config: cfg}, doc, opts...),
		doc:     doc,
		manager: m,
		fake:    fake,
	}
}

func (f *fixture) typeKeys(t *testing.T, keys string) {
	t.Helper()
	for _, r := range keys {
		require.NoError(t, f.ctrl.Perform(keyboard.Character(string(r)), true))
	}
}

func (f *fixture) state() State {
	return f.ctrl.State().Load()
}

func TestInitialState(t *testing.T) {
	cfg := testConfig()
	cfg.Keyboard.EnableColorSchema = true
	cfg.Keyboard.UseColorSchemaForLight = "solarized"
	cfg.Keyboard.ColorSchemas = []keyboard.ColorScheme{{SchemaName: "solarized"}}

	f := newFixture(t, cfg)
	st := f.state()
	assert.Equal(t, "test", st.Layout)
	assert.Equal(t, "solarized", st.ColorScheme)
	assert.False(t, st.Composing())
	assert.True(t, st.Suggestions.Empty())

	dark := newFixture(t, cfg, WithDarkAppearance(true))
	assert.Empty(t, dark.state().ColorScheme)
}

func TestReloadRepublishesAppearance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamster.yaml")
	doc := func(layout, scheme string) string {
		return "keyboard:\n" +
			"  useKeyboardType: " + layout + "\n" +
			"  enableColorSchema: true\n" +
			"  useColorSchemaForLight: " + scheme + "\n" +
			"  colorSchemas:\n" +
			"    - schemaName: solarized\n" +
			"    - schemaName: ink\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(doc("chinese", "solarized")), 0o600))

	loader := keyboard.NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	fake := rimetest.NewFake()
	m := rime.NewManager(fake)
	require.NoError(t, m.Configure(rime.Traits{UserDataDir: t.TempDir()}))
	t.Cleanup(m.Shutdown)

	ctrl := NewController(m, loader, NewDocument(""))
	loader.OnChange(ctrl.Reload)
	assert.Equal(t, "chinese", ctrl.State().Load().Layout)
	assert.Equal(t, "solarized", ctrl.State().Load().ColorScheme)

	require.NoError(t, os.WriteFile(path, []byte(doc("alphabetic", "ink")), 0o600))
	cfg, err := loader.Load()
	require.NoError(t, err)
	ctrl.Reload(cfg)

	st := ctrl.State().Load()
	assert.Equal(t, "alphabetic", st.Layout)
	assert.Equal(t, "ink", st.ColorScheme)
}

func TestTypingPublishesSuggestions(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "nihao")

	st := f.state()
	assert.Equal(t, "nihao", st.Input)
	require.Equal(t, DefaultPageSize, st.Suggestions.Len())
	first, ok := st.Suggestions.First()
	require.True(t, ok)
	assert.Equal(t, "你好", first.Text)
	assert.True(t, first.Autocomplete)
	assert.Empty(t, f.doc.String())

	require.NoError(t, f.ctrl.Perform(keyboard.Space, true))
	assert.Equal(t, "你好", f.doc.String())
	st = f.state()
	assert.Empty(t, st.Input)
	assert.True(t, st.Suggestions.Empty())
}

func TestEditingKeysWithoutComposition(t *testing.T) {
	f := newFixture(t, testConfig())

	require.NoError(t, f.ctrl.Perform(keyboard.Space, true))
	require.NoError(t, f.ctrl.Perform(keyboard.Enter, true))
	require.NoError(t, f.ctrl.Perform(keyboard.Tab, true))
	assert.Equal(t, " \n\t", f.doc.String())

	require.NoError(t, f.ctrl.Perform(keyboard.Backspace, true))
	assert.Equal(t, " \n", f.doc.String())
	assert.Zero(t, f.fake.Calls("ProcessKeyCode"))
}

func TestEnterCommitsRawInput(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "hao")

	require.NoError(t, f.ctrl.Perform(keyboard.Enter, true))
	assert.Equal(t, "hao", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestBackspaceEditsComposition(t *testing.T) {
	f := newFixture(t, testConfig())
	f.doc.InsertText("x")
	f.typeKeys(t, "nihao")

	require.NoError(t, f.ctrl.Perform(keyboard.Backspace, true))
	assert.Equal(t, "niha", f.state().Input)
	assert.True(t, f.state().Suggestions.Empty())
	assert.Equal(t, "x", f.doc.String())
}

func TestCharacterBypassingEngine(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Perform(keyboard.Character("n"), false))
	assert.Equal(t, "n", f.doc.String())
	assert.Zero(t, f.fake.Calls("ProcessKey"))

	f.typeKeys(t, "ni")
	require.NoError(t, f.ctrl.Perform(keyboard.CharacterMargin("7"), false))
	assert.Equal(t, "n你7", f.doc.String())
}

func TestUnhandledCharacterIsInserted(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Perform(keyboard.Character("5"), true))
	assert.Equal(t, "5", f.doc.String())
	assert.Equal(t, 1, f.fake.Calls("ProcessKey"))
}

func TestASCIIModeInsertsDirectly(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "ni")
	calls := f.fake.Calls("ProcessKey")

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandToggleASCII), false))
	assert.True(t, f.state().ASCIIMode)
	assert.Equal(t, "ni", f.doc.String(), "switching commits the raw input")

	f.typeKeys(t, "ab")
	assert.Equal(t, "niab", f.doc.String())
	assert.Equal(t, calls, f.fake.Calls("ProcessKey"))
	assert.Zero(t, f.fake.Calls("SetOption"), "ascii mode never reaches the engine")

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandToggleASCII), false))
	assert.False(t, f.state().ASCIIMode)
}

func TestShiftUppercasesOnce(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Perform(keyboard.Shift, true))
	assert.True(t, f.state().Shifted)

	f.typeKeys(t, "ab")
	assert.Equal(t, "A", f.doc.String())
	assert.False(t, f.state().Shifted)
	assert.Equal(t, "b", f.state().Input)
}

func TestShiftLocked(t *testing.T) {
	cfg := testConfig()
	cfg.Keyboard.LockShiftState = true
	f := newFixture(t, cfg)

	require.NoError(t, f.ctrl.Perform(keyboard.Shift, true))
	f.typeKeys(t, "ab")
	assert.Equal(t, "AB", f.doc.String())
	assert.True(t, f.state().Shifted)
}

func TestSymbols(t *testing.T) {
	f := newFixture(t, testConfig())
	f.doc.InsertText("ab")

	require.NoError(t, f.ctrl.Perform(keyboard.Symbol("《》"), false))
	assert.Equal(t, "ab《》", f.doc.String())
	assert.Equal(t, 3, f.doc.Cursor())

	require.NoError(t, f.ctrl.Perform(keyboard.Symbol("，"), false))
	assert.Equal(t, "ab《，》", f.doc.String())
	assert.Equal(t, 4, f.doc.Cursor())
}

func TestSymbolCommitsComposition(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "ni")

	require.NoError(t, f.ctrl.Perform(keyboard.Symbol("，"), false))
	assert.Equal(t, "你，", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestSpaceWithoutCandidatesCommitsInput(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "xyz")

	require.NoError(t, f.ctrl.Perform(keyboard.Space, true))
	assert.Equal(t, "xyz", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestNineGrid(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Perform(keyboard.NineGrid("ABC"), true))
	assert.Equal(t, "2", f.doc.String())

	err := f.ctrl.Perform(keyboard.NineGrid("XYZ"), true)
	assert.ErrorIs(t, err, ErrUnhandledAction)
}

func TestKeyboardTypeSwitchesLayout(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Perform(keyboard.SwitchKeyboard("alphabetic"), false))
	assert.Equal(t, "alphabetic", f.state().Layout)
}

func TestSelectSecond(t *testing.T) {
	f := newFixture(t, testConfig())
	second := keyboard.ShortCommand(keyboard.CommandSelectSecond)

	require.NoError(t, f.ctrl.Perform(second, false))
	assert.Empty(t, f.doc.String())
	assert.Zero(t, f.fake.Calls("SelectCandidate"))

	f.typeKeys(t, "ni")
	require.NoError(t, f.ctrl.Perform(second, false))
	assert.Equal(t, "尼", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestSelectSecondWithSingleCandidateKeepsPage(t *testing.T) {
	f := newFixture(t, testConfig())
	f.fake.AddWord("x", rime.Candidate{Text: "希"})
	f.typeKeys(t, "x")
	require.Equal(t, 1, f.state().Suggestions.Len())

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandSelectSecond), false))
	assert.Empty(t, f.doc.String())
	assert.Equal(t, "x", f.state().Input)

	require.NoError(t, f.ctrl.SelectSuggestion(0))
	assert.Equal(t, "希", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestCursorCommands(t *testing.T) {
	f := newFixture(t, testConfig())
	f.doc.InsertText("ab\ncd")
	f.doc.AdjustCursor(-1)

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandLineStart), false))
	assert.Equal(t, 3, f.doc.Cursor())
	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandLineEnd), false))
	assert.Equal(t, 5, f.doc.Cursor())
	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandNewLine), false))
	assert.Equal(t, "ab\ncd\n", f.doc.String())
}

func TestReinputAndClear(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "ni")
	before := f.fake.Calls("CleanAllSessions")

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandReinput), false))
	assert.Equal(t, before+1, f.fake.Calls("CleanAllSessions"))
	assert.Empty(t, f.state().Input)

	f.typeKeys(t, "hao")
	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandClear), false))
	assert.Empty(t, f.state().Input)
	assert.True(t, f.state().Suggestions.Empty())
	assert.Empty(t, f.doc.String())
}

func TestPreviousSchema(t *testing.T) {
	f := newFixture(t, testConfig())
	ok, err := f.manager.SelectSchema("double_pinyin")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.ctrl.Perform(keyboard.ShortCommand(keyboard.CommandPreviousSchema), false))
	assert.Equal(t, rimetest.DefaultSchemas[0], f.state().Schema)
}

func TestToggleSimplified(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.ctrl.Refresh())
	assert.True(t, f.state().Simplified)

	toggle := keyboard.ShortCommand(keyboard.CommandToggleSimplified)
	require.NoError(t, f.ctrl.Perform(toggle, false))
	assert.False(t, f.state().Simplified)
	require.NoError(t, f.ctrl.Perform(toggle, false))
	assert.True(t, f.state().Simplified)
}

func TestPagingAndSelection(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "nihao")

	require.NoError(t, f.ctrl.PreviousPage())
	assert.Equal(t, 1, f.state().Suggestions.Start)

	require.NoError(t, f.ctrl.NextPage())
	page := f.state().Suggestions
	assert.Equal(t, 11, page.Start)
	require.Equal(t, DefaultPageSize, page.Len())
	assert.Equal(t, "候选10", page.Items[0].Text)

	require.NoError(t, f.ctrl.SelectSuggestion(2))
	assert.Equal(t, "候选12", f.doc.String())
	assert.Empty(t, f.state().Input)
}

func TestLastPageStopsPaging(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "nihao")

	for i := 0; i < 5; i++ {
		require.NoError(t, f.ctrl.NextPage())
	}
	page := f.state().Suggestions
	assert.Equal(t, 31, page.Start)
	assert.Equal(t, rimetest.NihaoCount-30, page.Len())

	require.NoError(t, f.ctrl.PreviousPage())
	assert.Equal(t, 21, f.state().Suggestions.Start)
}

func TestStaleSuggestionRefreshes(t *testing.T) {
	f := newFixture(t, testConfig())
	f.typeKeys(t, "ni")

	_, err := f.manager.InputKey("h")
	require.NoError(t, err)

	err = f.ctrl.SelectSuggestion(0)
	assert.ErrorIs(t, err, candidate.ErrStalePage)
	assert.Equal(t, "nih", f.state().Input)
	assert.Empty(t, f.doc.String())
}

func TestHandleGesture(t *testing.T) {
	f := newFixture(t, testConfig())
	a := keyboard.Character("a")
	f.doc.InsertText("xy")

	out, err := f.ctrl.HandleGesture(a, gesture.Gesture{End: gesture.Point{X: 2, Y: 1}, Elapsed: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, gesture.KindTap, out.Kind)
	assert.Equal(t, "a", f.state().Input)

	require.NoError(t, f.ctrl.Perform(keyboard.Enter, true))
	assert.Equal(t, "xya", f.doc.String())

	out, err = f.ctrl.HandleGesture(a, gesture.Gesture{End: gesture.Point{X: -30}})
	require.NoError(t, err)
	assert.Equal(t, gesture.KindSwipe, out.Kind)
	assert.Equal(t, 0, f.doc.Cursor())

	out, err = f.ctrl.HandleGesture(a, gesture.Gesture{End: gesture.Point{Y: 30}})
	require.NoError(t, err)
	assert.Equal(t, keyboard.Down, out.Direction)
	assert.Equal(t, "《》xya", f.doc.String())
	assert.Equal(t, 1, f.doc.Cursor())

	out, err = f.ctrl.HandleGesture(a, gesture.Gesture{End: gesture.Point{X: 30, Y: -30}})
	require.NoError(t, err)
	assert.False(t, out.Fired())
	assert.Equal(t, "《》xya", f.doc.String())
}

func TestUnhandledActions(t *testing.T) {
	f := newFixture(t, testConfig())
	err := f.ctrl.Perform(keyboard.Action{Kind: keyboard.ActionShortCommand, Value: "#nope"}, false)
	assert.ErrorIs(t, err, ErrUnhandledAction)

	err = f.ctrl.Perform(keyboard.Action{Kind: keyboard.ActionOpaque, Value: "jump(3)"}, false)
	assert.ErrorIs(t, err, ErrUnhandledAction)

	assert.NoError(t, f.ctrl.Perform(keyboard.Action{}, false))
}

func TestEngineUnavailableFallsBackToDocument(t *testing.T) {
	m := rime.NewManager(rimetest.NewFake())
	doc := NewDocument("")
	ctrl := NewController(m, gesture.Static{Config: testConfig()}, doc)

	require.NoError(t, ctrl.Perform(keyboard.Character("n"), true))
	require.NoError(t, ctrl.Perform(keyboard.Space, true))
	require.NoError(t, ctrl.Perform(keyboard.Backspace, true))
	assert.Equal(t, "n", doc.String())

	err := ctrl.Perform(keyboard.ShortCommand(keyboard.CommandReinput), false)
	assert.ErrorIs(t, err, rime.ErrEngineNotReady)
}

func TestMaxCandidatesCapsPaging(t *testing.T) {
	f := newFixture(t, testConfig(), WithMaxCandidates(15))
	assert.Equal(t, 15, f.ctrl.Pager().Max())

	f.typeKeys(t, "nihao")
	require.NoError(t, f.ctrl.NextPage())
	assert.Equal(t, 5, f.state().Suggestions.Len())
	require.NoError(t, f.ctrl.NextPage())
	assert.Equal(t, 11, f.state().Suggestions.Start)
}
