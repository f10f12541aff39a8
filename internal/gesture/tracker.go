package gesture

import (
	"time"

	"hamster/internal/keyboard"
)

// Tracker follows one live gesture. It emits at most one outcome: either a
// long press from Poll or the result of End. A Tracker is owned by the
// goroutine delivering pointer events and is not safe for concurrent use.
type Tracker struct {
	th Thresholds

	key     *keyboard.Key
	primary keyboard.Action

	start   Point
	began   time.Time
	last    Point
	path    []Point
	active  bool
	emitted bool
}

// NewTracker creates an idle tracker.
func NewTracker(th Thresholds) *Tracker {
	return &Tracker{th: th}
}

// Begin starts a gesture at p. Any gesture in progress is discarded.
func (t *Tracker) Begin(key *keyboard.Key, primary keyboard.Action, p Point, at time.Time) {
	t.key = key
	t.primary = primary
	t.start = p
	t.last = p
	t.began = at
	t.path = t.path[:0]
	t.active = true
	t.emitted = false
}

// Active reports whether a gesture is in progress.
func (t *Tracker) Active() bool {
	return t.active
}

// Move records a sample and returns the live classification, which may
// change until release.
func (t *Tracker) Move(p Point, at time.Time) (keyboard.Direction, Class) {
	if !t.active {
		return "", ClassBelow
	}
	t.last = p
	t.path = append(t.path, p)
	return Classify(t.start, p, t.th)
}

// Poll fires the long press once the pointer has stayed within the swipe
// distance for the long-press delay and the key declares one.
func (t *Tracker) Poll(at time.Time) (Outcome, bool) {
	if !t.active || t.emitted || t.key == nil || t.key.LongPress == nil {
		return Outcome{}, false
	}
	g := t.gesture(t.last, at)
	if g.Elapsed < t.th.LongPressDelay || !stationary(g, t.th) {
		return Outcome{}, false
	}
	t.emitted = true
	return Outcome{Kind: KindLongPress, Action: *t.key.LongPress, ProcessByEngine: true}, true
}

// End finishes the gesture at p. It returns KindNone when the long press
// already fired.
func (t *Tracker) End(p Point, at time.Time) Outcome {
	if !t.active {
		return Outcome{}
	}
	t.active = false
	if t.emitted {
		return Outcome{}
	}
	t.emitted = true
	return Resolve(t.key, t.primary, t.gesture(p, at), t.th)
}

// Cancel abandons the gesture without emitting anything.
func (t *Tracker) Cancel() {
	t.active = false
	t.emitted = true
}

func (t *Tracker) gesture(end Point, at time.Time) Gesture {
	return Gesture{
		Start:   t.start,
		Path:    append([]Point(nil), t.path...),
		End:     end,
		Elapsed: at.Sub(t.began),
	}
}
