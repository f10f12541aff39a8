package rime

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"hamster/internal/notify"
	"hamster/internal/patch"
)

// State is the manager's lifecycle position.
type State int

const (
	StateUnconfigured State = iota
	StateConfiguring
	StateReady
	StateDeploying
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateDeploying:
		return "deploying"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

var (
	// ErrEngineNotReady is returned for calls outside Ready or Deploying.
	ErrEngineNotReady = errors.New("rime: engine not ready")

	// ErrSessionUnavailable is returned when no session can be created.
	ErrSessionUnavailable = errors.New("rime: session unavailable")

	// ErrDeployFailed is the result of a deployment the engine rejected.
	// The manager stays Ready and accepts another request.
	ErrDeployFailed = errors.New("rime: deploy failed")

	// ErrStale is returned when a selection refers to an older input state.
	ErrStale = errors.New("rime: input changed since candidates were read")
)

// DefaultSimplifiedOption is the engine option backing simplified mode.
const DefaultSimplifiedOption = "simplification"

// Manager is the only caller of the engine.
type Manager struct {
	engine Engine
	bridge *notify.Bridge
	logger *slog.Logger

	simplifiedOption string
	ascii            LocalASCIIMode

	// mu guards the fields below and serializes session calls into the engine.
	mu         sync.Mutex
	state      State
	traits     Traits
	session    SessionID
	generation uint64
	deploy     *Deployment
	previous   string
	configured chan struct{}

	events eventQueue
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBridge sets the bridge lifecycle events are delivered to.
func WithBridge(b *notify.Bridge) Option {
	return func(m *Manager) {
		if b != nil {
			m.bridge = b
		}
	}
}

// WithSimplifiedOption names the engine option behind simplified mode.
func WithSimplifiedOption(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.simplifiedOption = name
		}
	}
}

// NewManager creates an unconfigured manager for engine.
func NewManager(engine Engine, opts ...Option) *Manager {
	m := &Manager{
		engine:           engine,
		logger:           slog.Default().With("component", "rime"),
		simplifiedOption: DefaultSimplifiedOption,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bridge == nil {
		m.bridge = notify.NewBridge(notify.WithLogger(m.logger))
	}
	return m
}

// Bridge returns the bridge lifecycle events are delivered to.
func (m *Manager) Bridge() *notify.Bridge {
	return m.bridge
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Traits returns the traits passed to Configure.
func (m *Manager) Traits() Traits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.traits
}

// Configure sets the engine up and starts it. Only the first call does
// anything: the engine's setup runs when it reports a first run, then it
// is initialized and the manager becomes Ready. A call made while another
// is configuring waits for it and reports whether the engine came up.
func (m *Manager) Configure(t Traits) error {
	m.mu.Lock()
	switch m.state {
	case StateUnconfigured:
	case StateConfiguring:
		done := m.configured
		m.mu.Unlock()
		<-done
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.ready()
	default:
		m.mu.Unlock()
		return nil
	}
	m.state = StateConfiguring
	m.traits = t
	m.configured = make(chan struct{})
	m.mu.Unlock()

	m.engine.SetNotificationHandler(m.onNotification)
	if m.engine.IsFirstRun() {
		m.logger.Info("setting up engine", "shared_data_dir", t.SharedDataDir, "user_data_dir", t.UserDataDir)
		m.engine.Setup(t)
	}
	m.engine.Initialize(t)

	m.mu.Lock()
	defer close(m.configured)
	if m.state == StateShutdown {
		m.mu.Unlock()
		m.engine.Finalize()
		return fmt.Errorf("%w: shut down during configuration", ErrEngineNotReady)
	}
	m.state = StateReady
	m.mu.Unlock()

	m.logger.Info("engine ready", "distribution", t.DistributionName, "version", t.DistributionVersion)
	m.flush()
	return nil
}

// Shutdown stops the manager. It is safe at any time and more than once.
// No bridge callback is delivered after it returns. An in-flight
// deployment finishes before the engine is finalized.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	prev := m.state
	if prev == StateShutdown {
		m.mu.Unlock()
		return
	}
	m.state = StateShutdown
	m.bridge.Close()

	if prev == StateReady || prev == StateDeploying {
		m.engine.CleanAllSessions()
	}
	m.session = NoSession
	m.generation++
	m.mu.Unlock()

	m.events.clear()
	m.logger.Info("engine shutdown", "from", prev.String())

	// Configuring and Deploying finalize when their engine call returns.
	if prev == StateReady {
		m.engine.Finalize()
	}
}

// ready checks the state. Callers hold mu.
func (m *Manager) ready() error {
	switch m.state {
	case StateReady, StateDeploying:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrEngineNotReady, m.state)
	}
}

// ensureSession returns a live session, creating one when the handle is
// unset or the engine no longer knows it. Callers hold mu.
func (m *Manager) ensureSession() (SessionID, error) {
	if err := m.ready(); err != nil {
		return NoSession, err
	}
	if m.session != NoSession && m.engine.FindSession(m.session) {
		return m.session, nil
	}

	s := m.engine.CreateSession()
	if s == NoSession {
		m.session = NoSession
		return NoSession, ErrSessionUnavailable
	}
	if m.session != NoSession {
		m.logger.Debug("engine session recreated", "old", uint64(m.session), "new", uint64(s))
	}
	m.session = s
	m.generation++
	return s, nil
}

// withSession runs fn under mu with a live session, then delivers any
// engine notifications fn caused.
func (m *Manager) withSession(fn func(s SessionID) error) error {
	m.mu.Lock()
	s, err := m.ensureSession()
	if err == nil {
		err = fn(s)
	}
	m.mu.Unlock()
	m.flush()
	return err
}

// Session returns the current handle without checking it.
func (m *Manager) Session() SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Generation identifies the input state. It changes on every call that
// can alter the composition or candidates.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// InputKey feeds text to the engine.
func (m *Manager) InputKey(text string) (bool, error) {
	var handled bool
	err := m.withSession(func(s SessionID) error {
		handled = m.engine.ProcessKey(s, text)
		m.generation++
		return nil
	})
	return handled, err
}

// InputKeyCode feeds a keysym with a modifier mask to the engine.
func (m *Manager) InputKeyCode(code, mask int) (bool, error) {
	var handled bool
	err := m.withSession(func(s SessionID) error {
		handled = m.engine.ProcessKeyCode(s, code, mask)
		m.generation++
		return nil
	})
	return handled, err
}

// CleanComposition discards the current composition.
func (m *Manager) CleanComposition() error {
	return m.withSession(func(s SessionID) error {
		m.engine.CleanComposition(s)
		m.generation++
		return nil
	})
}

// ResetSession terminates every engine session and starts a fresh one.
func (m *Manager) ResetSession() error {
	m.mu.Lock()
	err := m.ready()
	if err == nil {
		m.engine.CleanAllSessions()
		m.session = m.engine.CreateSession()
		m.generation++
		if m.session == NoSession {
			err = ErrSessionUnavailable
		}
	}
	m.mu.Unlock()
	m.flush()
	return err
}

// Commit returns the text the engine committed since the last call.
func (m *Manager) Commit() (string, error) {
	var text string
	err := m.withSession(func(s SessionID) error {
		text = m.engine.Commit(s)
		return nil
	})
	return text, err
}

// Input returns the raw input keys of the composition.
func (m *Manager) Input() (string, error) {
	var input string
	err := m.withSession(func(s SessionID) error {
		input = m.engine.Input(s)
		return nil
	})
	return input, err
}

// Status returns the session status.
func (m *Manager) Status() (Status, error) {
	var st Status
	err := m.withSession(func(s SessionID) error {
		var ok bool
		if st, ok = m.engine.Status(s); !ok {
			return fmt.Errorf("%w: no status", ErrSessionUnavailable)
		}
		return nil
	})
	return st, err
}

// Context returns the composition context.
func (m *Manager) Context() (Context, error) {
	var ctx Context
	err := m.withSession(func(s SessionID) error {
		var ok bool
		if ctx, ok = m.engine.Context(s); !ok {
			return fmt.Errorf("%w: no context", ErrSessionUnavailable)
		}
		return nil
	})
	return ctx, err
}

// Window is a run of candidates read against one input state.
type Window struct {
	// Start is the 1-based position of the first candidate.
	Start      int
	Generation uint64
	Candidates []Candidate
}

// Candidates reads up to count candidates from the 1-based position start.
func (m *Manager) Candidates(start, count int) (Window, error) {
	if start < 1 {
		start = 1
	}
	var w Window
	err := m.withSession(func(s SessionID) error {
		w = Window{Start: start, Generation: m.generation}
		if count > 0 {
			w.Candidates = m.engine.Candidates(s, start, count)
		}
		return nil
	})
	return w, err
}

// SelectCandidate selects the candidate at the 0-based absolute index,
// provided the input has not changed since generation.
func (m *Manager) SelectCandidate(index int, generation uint64) (bool, error) {
	var ok bool
	err := m.withSession(func(s SessionID) error {
		if generation != m.generation {
			return ErrStale
		}
		ok = m.engine.SelectCandidate(s, index)
		m.generation++
		return nil
	})
	return ok, err
}

// Schemas lists the schemas the engine has deployed.
func (m *Manager) Schemas() ([]Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	list := UniqueSchemas(m.engine.SchemaList())
	return list, nil
}

// CurrentSchema returns the session's schema.
func (m *Manager) CurrentSchema() (Schema, error) {
	st, err := m.Status()
	if err != nil {
		return Schema{}, err
	}
	return Schema{ID: st.SchemaID, Name: st.SchemaName}, nil
}

// SelectSchema switches the session to id and remembers the schema it
// replaces for SelectPreviousSchema.
func (m *Manager) SelectSchema(id string) (bool, error) {
	var ok bool
	err := m.withSession(func(s SessionID) error {
		var current string
		if st, found := m.engine.Status(s); found {
			current = st.SchemaID
		}
		ok = m.engine.SelectSchema(s, id)
		m.generation++
		if ok && current != "" && current != id {
			m.previous = current
		}
		return nil
	})
	return ok, err
}

// SelectPreviousSchema switches back to the schema used before the last
// SelectSchema. It reports false when there is none.
func (m *Manager) SelectPreviousSchema() (bool, error) {
	m.mu.Lock()
	prev := m.previous
	m.mu.Unlock()
	if prev == "" {
		return false, nil
	}
	return m.SelectSchema(prev)
}

// PatchPath is the override document in the user data directory.
func (m *Manager) PatchPath() string {
	return filepath.Join(m.Traits().UserDataDir, patch.FileName)
}

// SetSelectedSchemas writes ids as the enabled schema list. The change
// takes effect on the next deployment.
func (m *Manager) SetSelectedSchemas(ids []string) error {
	t := m.Traits()
	if t.UserDataDir == "" {
		return fmt.Errorf("%w: no user data directory", ErrEngineNotReady)
	}
	if err := patch.WriteSchemaList(filepath.Join(t.UserDataDir, patch.FileName), ids); err != nil {
		return err
	}
	m.logger.Info("selected schemas updated", "schemas", ids)
	return nil
}

// SelectedSchemas reads the enabled schema list back.
func (m *Manager) SelectedSchemas() ([]string, error) {
	t := m.Traits()
	if t.UserDataDir == "" {
		return nil, fmt.Errorf("%w: no user data directory", ErrEngineNotReady)
	}
	return patch.ReadSchemaList(filepath.Join(t.UserDataDir, patch.FileName))
}
