package gesture

import (
	"time"

	"hamster/internal/keyboard"
)

// Gesture is one completed pointer interaction with a key.
type Gesture struct {
	Start Point
	// Path holds intermediate samples; it only decides whether the pointer
	// stayed put long enough for a long press.
	Path    []Point
	End     Point
	Elapsed time.Duration
}

// Kind is what a gesture resolved to.
type Kind int

const (
	KindNone Kind = iota
	KindTap
	KindSwipe
	KindLongPress
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTap:
		return "tap"
	case KindSwipe:
		return "swipe"
	case KindLongPress:
		return "longPress"
	default:
		return "unknown"
	}
}

// Outcome is the single action a gesture produces. KindNone carries no
// action: an ambiguous diagonal, a direction without a binding, or a
// gesture whose long press already fired.
type Outcome struct {
	Kind      Kind
	Direction keyboard.Direction
	Action    keyboard.Action
	// ProcessByEngine routes Action through the engine rather than the text buffer.
	ProcessByEngine bool
	// Ambiguous is set when the displacement fell between the axis cones.
	Ambiguous bool
}

// Fired reports whether the outcome carries an action.
func (o Outcome) Fired() bool {
	return o.Kind != KindNone
}

// Resolve resolves g on key. primary is the action a tap produces; key may
// be nil when the active layout declares no bindings for it.
func Resolve(key *keyboard.Key, primary keyboard.Action, g Gesture, th Thresholds) Outcome {
	dir, class := Classify(g.Start, g.End, th)
	switch class {
	case ClassResolved:
		if key == nil {
			return Outcome{Kind: KindNone, Direction: dir}
		}
		b, ok := key.Binding(dir)
		if !ok {
			return Outcome{Kind: KindNone, Direction: dir}
		}
		return Outcome{
			Kind:            KindSwipe,
			Direction:       dir,
			Action:          b.Action,
			ProcessByEngine: b.ProcessByEngine,
		}

	case ClassAmbiguous:
		return Outcome{Kind: KindNone, Ambiguous: true}
	}

	if key != nil && key.LongPress != nil && g.Elapsed >= th.LongPressDelay && stationary(g, th) {
		return Outcome{Kind: KindLongPress, Action: *key.LongPress, ProcessByEngine: true}
	}
	if primary.IsZero() {
		return Outcome{Kind: KindNone}
	}
	return Outcome{Kind: KindTap, Action: primary, ProcessByEngine: true}
}

// stationary reports whether every sample stayed below the swipe distance.
func stationary(g Gesture, th Thresholds) bool {
	for _, p := range g.Path {
		if p.Sub(g.Start).Len() >= th.Distance {
			return false
		}
	}
	return g.End.Sub(g.Start).Len() < th.Distance
}

// Source yields the active configuration snapshot. *keyboard.Loader is a Source.
type Source interface {
	Current() *keyboard.Configuration
}

// Static is a Source that always returns the same snapshot.
type Static struct {
	Config *keyboard.Configuration
}

func (s Static) Current() *keyboard.Configuration { return s.Config }

// Resolver resolves gestures against the active configuration snapshot.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver reading snapshots from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Thresholds returns the thresholds of the current snapshot.
func (r *Resolver) Thresholds() Thresholds {
	return FromSwipeConfig(r.config().Swipe)
}

// Key returns the bindings of primary in layout, if any.
func (r *Resolver) Key(layout string, primary keyboard.Action) (*keyboard.Key, bool) {
	return r.config().LookupKey(layout, primary)
}

// Resolve looks the key up in layout and resolves g on it. A key without
// declared bindings still taps.
func (r *Resolver) Resolve(layout string, primary keyboard.Action, g Gesture) Outcome {
	cfg := r.config()
	key, _ := cfg.LookupKey(layout, primary)
	return Resolve(key, primary, g, FromSwipeConfig(cfg.Swipe))
}

// Track starts a live gesture on primary in layout. The tracker keeps the
// snapshot current at this moment for the whole gesture.
func (r *Resolver) Track(layout string, primary keyboard.Action, p Point, at time.Time) *Tracker {
	cfg := r.config()
	key, _ := cfg.LookupKey(layout, primary)
	t := NewTracker(FromSwipeConfig(cfg.Swipe))
	t.Begin(key, primary, p, at)
	return t
}

func (r *Resolver) config() *keyboard.Configuration {
	if r.src == nil {
		return keyboard.Default()
	}
	if cfg := r.src.Current(); cfg != nil {
		return cfg
	}
	return keyboard.Default()
}
