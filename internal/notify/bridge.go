// Package notify delivers engine lifecycle events to the rest of the
// keyboard.
//
// Each event kind has at most one handler; registering again replaces the
// previous one. Events are delivered synchronously on the emitting
// goroutine, one at a time, in emission order.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Kind identifies a lifecycle event.
type Kind int

const (
	DeployStart Kind = iota
	DeploySuccess
	DeployFailure
	ModeChanged
	SchemaLoading
	numKinds
)

func (k Kind) String() string {
	switch k {
	case DeployStart:
		return "deployStart"
	case DeploySuccess:
		return "deploySuccess"
	case DeployFailure:
		return "deployFailure"
	case ModeChanged:
		return "modeChanged"
	case SchemaLoading:
		return "schemaLoading"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification. Value is the new mode for
// ModeChanged and the schema id for SchemaLoading.
type Event struct {
	Kind  Kind
	Value string
}

// Bridge holds one handler per event kind.
type Bridge struct {
	logger *slog.Logger

	hmu      sync.RWMutex
	handlers [numKinds]func(Event)

	// deliver serializes handler invocations.
	deliver sync.Mutex
	closed  atomic.Bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger events are recorded on.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge with no handlers.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{logger: slog.Default().With("component", "notify")}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnDeployStart sets the deployStart handler. A nil fn removes it.
func (b *Bridge) OnDeployStart(fn func()) { b.set(DeployStart, noArg(fn)) }

// OnDeploySuccess sets the deploySuccess handler.
func (b *Bridge) OnDeploySuccess(fn func()) { b.set(DeploySuccess, noArg(fn)) }

// OnDeployFailure sets the deployFailure handler.
func (b *Bridge) OnDeployFailure(fn func()) { b.set(DeployFailure, noArg(fn)) }

// OnModeChanged sets the modeChanged handler; it receives the new mode.
func (b *Bridge) OnModeChanged(fn func(mode string)) { b.set(ModeChanged, withValue(fn)) }

// OnSchemaLoading sets the schemaLoading handler; it receives the schema id.
func (b *Bridge) OnSchemaLoading(fn func(schemaID string)) { b.set(SchemaLoading, withValue(fn)) }

// Handle sets the handler for kind directly.
func (b *Bridge) Handle(kind Kind, fn func(Event)) {
	if kind < 0 || kind >= numKinds {
		return
	}
	b.set(kind, fn)
}

func (b *Bridge) set(kind Kind, fn func(Event)) {
	b.hmu.Lock()
	b.handlers[kind] = fn
	b.hmu.Unlock()
}

func noArg(fn func()) func(Event) {
	if fn == nil {
		return nil
	}
	return func(Event) { fn() }
}

func withValue(fn func(string)) func(Event) {
	if fn == nil {
		return nil
	}
	return func(ev Event) { fn(ev.Value) }
}

// Emit delivers ev to its handler and returns once the handler returns.
// Concurrent emitters are delivered one at a time, so a handler must not
// call Emit. After Close, Emit drops events and reports false.
func (b *Bridge) Emit(ev Event) bool {
	if ev.Kind < 0 || ev.Kind >= numKinds {
		return false
	}

	b.deliver.Lock()
	defer b.deliver.Unlock()

	if b.closed.Load() {
		return false
	}

	b.logger.Info("engine notification", "kind", ev.Kind.String(), "value", ev.Value)

	b.hmu.RLock()
	fn := b.handlers[ev.Kind]
	b.hmu.RUnlock()

	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

// Close stops delivery. No handler invocation begins after Close returns;
// one already running finishes. Close may be called from a handler.
func (b *Bridge) Close() {
	b.closed.Store(true)
}

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool {
	return b.closed.Load()
}
