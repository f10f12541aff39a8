package ime

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"hamster/internal/broadcast"
	"hamster/internal/candidate"
	"hamster/internal/gesture"
	"hamster/internal/keyboard"
	"hamster/internal/rime"
)

// DefaultPageSize is how many suggestions the candidate bar shows.
const DefaultPageSize = 10

// ErrUnhandledAction is returned for actions the controller cannot perform.
var ErrUnhandledAction = errors.New("ime: unhandled action")

// nineGridDigits maps the letter groups of a nine-grid key to the digit the
// engine's T9 speller reads.
var nineGridDigits = map[string]string{
	"@/.":  "1",
	"ABC":  "2",
	"DEF":  "3",
	"GHI":  "4",
	"JKL":  "5",
	"MNO":  "6",
	"PQRS": "7",
	"TUV":  "8",
	"WXYZ": "9",
}

// State is what the keyboard view renders.
type State struct {
	// Input is the raw composition shown above the candidates.
	Input       string
	Suggestions candidate.Page
	ASCIIMode   bool
	Simplified  bool
	Shifted     bool
	Layout      string
	ColorScheme string
	Schema      rime.Schema
}

// Composing reports whether an engine composition is open.
func (s State) Composing() bool { return s.Input != "" }

// Controller turns key actions into engine calls and document edits. Calls
// are applied one at a time in arrival order.
type Controller struct {
	manager  *rime.Manager
	src      gesture.Source
	resolver *gesture.Resolver
	pager    *candidate.Pager
	proxy    TextProxy
	logger   *slog.Logger

	pageSize      int
	maxCandidates int
	dark          bool

	mu    sync.Mutex
	state *broadcast.Value[State]
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageSize sets how many suggestions a page holds.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxCandidates caps paging, overriding the keyboard document.
func WithMaxCandidates(n int) Option {
	return func(c *Controller) { c.maxCandidates = n }
}

// WithDarkAppearance selects the dark color scheme.
func WithDarkAppearance(dark bool) Option {
	return func(c *Controller) { c.dark = dark }
}

// NewController creates a controller editing proxy through m. The layout and
// color scheme start from the snapshot src holds now.
func NewController(m *rime.Manager, src gesture.Source, proxy TextProxy, opts ...Option) *Controller {
	c := &Controller{
		manager:  m,
		src:      src,
		resolver: gesture.NewResolver(src),
		proxy:    proxy,
		logger:   slog.Default().With("component", "ime"),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := c.config()
	maxCandidates := cfg.Rime.MaximumNumberOfCandidateWords
	if c.maxCandidates > 0 {
		maxCandidates = c.maxCandidates
	}
	c.pager = candidate.NewPager(m,
		candidate.WithMax(maxCandidates),
		candidate.WithLogger(c.logger))

	initial := State{ASCIIMode: m.ASCIIMode()}
	initial.Layout, initial.ColorScheme = c.appearance(cfg)
	c.state = broadcast.New(initial)
	return c
}

// Reload republishes the layout and color scheme from a new snapshot. It
// fits keyboard.Loader.OnChange.
func (c *Controller) Reload(cfg *keyboard.Configuration) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	layout, scheme := c.appearance(cfg)
	c.state.Update(func(s State) State {
		s.Layout = layout
		s.ColorScheme = scheme
		return s
	})
	c.logger.Debug("keyboard reloaded", "layout", layout, "color_scheme", scheme)
}

func (c *Controller) appearance(cfg *keyboard.Configuration) (layout, scheme string) {
	if cs, ok := cfg.ActiveColorScheme(c.dark); ok {
		scheme = cs.SchemaName
	}
	return cfg.ActiveLayoutName(), scheme
}

// State returns the published view state.
func (c *Controller) State() *broadcast.Value[State] {
	return c.state
}

// Pager returns the pager behind the suggestions.
func (c *Controller) Pager() *candidate.Pager {
	return c.pager
}

func (c *Controller) config() *keyboard.Configuration {
	if c.src != nil {
		if cfg := c.src.Current(); cfg != nil {
			return cfg
		}
	}
	return keyboard.Default()
}

// HandleGesture resolves g on the key whose tap action is primary in the
// current layout and performs the outcome.
func (c *Controller) HandleGesture(primary keyboard.Action, g gesture.Gesture) (gesture.Outcome, error) {
	out := c.resolver.Resolve(c.state.Load().Layout, primary, g)
	if !out.Fired() {
		c.logger.Debug("gesture dropped", "action", primary.String(), "ambiguous", out.Ambiguous)
		return out, nil
	}
	return out, c.Perform(out.Action, out.ProcessByEngine)
}

// Perform applies a. processByEngine routes characters through the engine;
// otherwise they go straight into the document.
func (c *Controller) Perform(a keyboard.Action, processByEngine bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("perform", "action", a.String(), "engine", processByEngine)
	switch a.Kind {
	case keyboard.ActionNone:
		return nil
	case keyboard.ActionCharacter, keyboard.ActionCharacterMargin:
		return c.character(a.Value, processByEngine)
	case keyboard.ActionSpace:
		return c.space()
	case keyboard.ActionEnter:
		return c.enter()
	case keyboard.ActionBackspace:
		return c.backspace()
	case keyboard.ActionTab:
		c.proxy.InsertText("\t")
		return nil
	case keyboard.ActionShift:
		c.state.Update(func(s State) State {
			s.Shifted = !s.Shifted
			return s
		})
		return nil
	case keyboard.ActionKeyboardType:
		c.state.Update(func(s State) State {
			s.Layout = a.Value
			return s
		})
		return nil
	case keyboard.ActionSymbol:
		return c.symbol(a.Value)
	case keyboard.ActionChineseNineGrid:
		return c.nineGrid(a.Value)
	case keyboard.ActionShortCommand:
		cmd, ok := a.Command()
		if !ok {
			return fmt.Errorf("%w: short command %q", ErrUnhandledAction, a.Value)
		}
		return c.command(cmd)
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledAction, a.String())
	}
}

// SelectSuggestion commits the item at rel on the published page.
func (c *Controller) SelectSuggestion(rel int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, err := c.pager.Select(rel)
	if err != nil {
		if errors.Is(err, candidate.ErrStalePage) {
			// Show what the engine holds now.
			return errors.Join(err, c.sync())
		}
		return err
	}
	c.proxy.InsertText(text)
	return c.sync()
}

// ShowPage publishes the page starting at the 1-based position start.
func (c *Controller) ShowPage(start int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.pager.Page(start, c.pageSize)
	if err != nil {
		return err
	}
	c.publishPage(page)
	return nil
}

// NextPage publishes the page after the current one. It is a no-op on the
// last page.
func (c *Controller) NextPage() error {
	cur := c.state.Load().Suggestions
	if cur.Len() < c.pageSize {
		return nil
	}
	return c.ShowPage(cur.Start + cur.Len())
}

// PreviousPage publishes the page before the current one.
func (c *Controller) PreviousPage() error {
	cur := c.state.Load().Suggestions
	if cur.Start <= 1 {
		return nil
	}
	return c.ShowPage(max(cur.Start-c.pageSize, 1))
}

// Refresh rereads the engine state.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync()
}

func (c *Controller) composing() bool {
	input, err := c.manager.Input()
	return err == nil && input != ""
}

func (c *Controller) character(text string, processByEngine bool) error {
	st := c.state.Load()
	if st.Shifted {
		text = strings.ToUpper(text)
		if !c.config().Keyboard.LockShiftState {
			c.state.Update(func(s State) State {
				s.Shifted = false
				return s
			})
		}
	}

	if !processByEngine || c.manager.ASCIIMode() || hasUpper(text) {
		if c.composing() {
			if err := c.commitFirst(); err != nil {
				return err
			}
		}
		c.proxy.InsertText(text)
		return nil
	}

	handled, err := c.manager.InputKey(text)
	if err != nil {
		if isUnavailable(err) {
			c.logger.Warn("engine unavailable, inserting directly", "error", err)
			c.proxy.InsertText(text)
			return nil
		}
		return err
	}
	if !handled {
		c.proxy.InsertText(text)
	}
	return c.sync()
}

func (c *Controller) space() error {
	if !c.composing() {
		c.proxy.InsertText(" ")
		return nil
	}
	return c.commitFirst()
}

func (c *Controller) enter() error {
	if !c.composing() {
		c.proxy.InsertText("\n")
		return nil
	}
	if _, err := c.manager.InputKeyCode(rime.KeyReturn, 0); err != nil {
		return err
	}
	return c.sync()
}

func (c *Controller) backspace() error {
	if !c.composing() {
		c.proxy.DeleteBackward()
		return nil
	}
	if _, err := c.manager.InputKeyCode(rime.KeyBackSpace, 0); err != nil {
		return err
	}
	return c.sync()
}

func (c *Controller) symbol(s string) error {
	if c.composing() {
		if err := c.commitFirst(); err != nil {
			return err
		}
	}
	c.proxy.InsertText(s)

	kb := c.config().Keyboard
	if isPair(s, kb.PairsOfSymbols) || isPair(s, kb.SymbolsOfCursorBack) {
		if n := pairRightLen(s); n > 0 {
			c.proxy.AdjustCursor(-n)
		}
	}
	return nil
}

func (c *Controller) nineGrid(group string) error {
	digit, ok := nineGridDigits[strings.ToUpper(group)]
	if !ok {
		return fmt.Errorf("%w: nine-grid group %q", ErrUnhandledAction, group)
	}
	handled, err := c.manager.InputKey(digit)
	if err != nil {
		return err
	}
	if !handled {
		c.proxy.InsertText(digit)
	}
	return c.sync()
}

func (c *Controller) command(cmd keyboard.Command) error {
	switch cmd {
	case keyboard.CommandLineStart:
		c.proxy.MoveToLineStart()
	case keyboard.CommandLineEnd:
		c.proxy.MoveToLineEnd()
	case keyboard.CommandReinput:
		if err := c.manager.ResetSession(); err != nil {
			return err
		}
		return c.sync()
	case keyboard.CommandSelectSecond:
		if !c.composing() {
			return nil
		}
		if err := c.selectAbsolute(1); err != nil {
			if errors.Is(err, candidate.ErrIndexOutOfRange) {
				return nil
			}
			return err
		}
	case keyboard.CommandNewLine:
		c.proxy.InsertText("\n")
	case keyboard.CommandPreviousSchema:
		if _, err := c.manager.SelectPreviousSchema(); err != nil {
			return err
		}
		return c.sync()
	case keyboard.CommandClear:
		if err := c.manager.CleanComposition(); err != nil {
			return err
		}
		return c.sync()
	case keyboard.CommandToggleASCII:
		if c.composing() {
			if _, err := c.manager.InputKeyCode(rime.KeyReturn, 0); err != nil {
				return err
			}
			if err := c.sync(); err != nil {
				return err
			}
		}
		on := c.manager.SetASCIIMode(!c.manager.ASCIIMode())
		c.state.Update(func(s State) State {
			s.ASCIIMode = on
			return s
		})
	case keyboard.CommandToggleSimplified:
		cur, err := c.manager.SimplifiedMode()
		if err != nil {
			return err
		}
		if _, err := c.manager.SetSimplifiedMode(!cur); err != nil {
			return err
		}
		return c.sync()
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledAction, cmd)
	}
	return nil
}

// commitFirst commits the first candidate, or the raw input when there is
// none.
func (c *Controller) commitFirst() error {
	err := c.selectAbsolute(0)
	if errors.Is(err, candidate.ErrIndexOutOfRange) {
		if _, err := c.manager.InputKeyCode(rime.KeyReturn, 0); err != nil {
			return err
		}
		return c.sync()
	}
	return err
}

// selectAbsolute commits the candidate at the 0-based index among all
// candidates. On failure the pager goes back to the page that was showing.
func (c *Controller) selectAbsolute(index int) error {
	shown, hadPage := c.pager.Last()
	restore := func() {
		if hadPage {
			c.pager.Restore(shown)
		} else {
			c.pager.Invalidate()
		}
	}

	if _, err := c.pager.Page(index+1, 1); err != nil {
		restore()
		return err
	}
	text, err := c.pager.Select(0)
	if err != nil {
		restore()
		return err
	}
	c.proxy.InsertText(text)
	return c.sync()
}

// sync inserts pending committed text and republishes the composition and
// the first page.
func (c *Controller) sync() error {
	text, err := c.manager.Commit()
	if err != nil {
		return err
	}
	c.proxy.InsertText(text)

	input, err := c.manager.Input()
	if err != nil {
		return err
	}
	var page candidate.Page
	if input != "" {
		if page, err = c.pager.PageFromStart(c.pageSize); err != nil {
			return err
		}
	} else {
		c.pager.Invalidate()
		page.Generation = c.manager.Generation()
	}

	schema, err := c.manager.CurrentSchema()
	if err != nil {
		return err
	}
	simplified, err := c.manager.SimplifiedMode()
	if err != nil {
		return err
	}

	c.state.Update(func(s State) State {
		s.Input = input
		s.Schema = schema
		s.Simplified = simplified
		s.ASCIIMode = c.manager.ASCIIMode()
		if page.Generation >= s.Suggestions.Generation {
			s.Suggestions = page
		}
		return s
	})
	return nil
}

// publishPage replaces the suggestions unless a fresher page is showing.
func (c *Controller) publishPage(page candidate.Page) {
	c.state.Update(func(s State) State {
		if page.Generation >= s.Suggestions.Generation {
			s.Suggestions = page
		}
		return s
	})
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func isUnavailable(err error) bool {
	return errors.Is(err, rime.ErrEngineNotReady) || errors.Is(err, rime.ErrSessionUnavailable)
}
