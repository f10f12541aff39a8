// Package gesture turns pointer paths on a key into taps, directional
// swipes and long presses, and looks up the action bound to the result.
//
// Coordinates are screen coordinates: y grows downward, so a swipe up has
// a negative dy.
package gesture

import (
	"math"
	"time"

	"hamster/internal/keyboard"
)

// Point is a position in logical units.
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Len returns the length of p as a vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Thresholds control classification.
type Thresholds struct {
	// Distance is the displacement a swipe must reach.
	Distance float64
	// Tangent bounds the off-axis ratio: a vector is horizontal when
	// |dy| <= Tangent*|dx| and vertical when |dx| <= Tangent*|dy|.
	Tangent float64
	// LongPressDelay is how long a pointer must stay put to long-press.
	LongPressDelay time.Duration
}

// DefaultThresholds returns distance 20, tangent 0.577 (about 30 degrees)
// and a 300ms long-press delay.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Distance:       20,
		Tangent:        0.577,
		LongPressDelay: 300 * time.Millisecond,
	}
}

// FromSwipeConfig reads thresholds from the swipe section, keeping defaults
// for unset values.
func FromSwipeConfig(c keyboard.SwipeConfiguration) Thresholds {
	th := DefaultThresholds()
	if c.DistanceThreshold > 0 {
		th.Distance = c.DistanceThreshold
	}
	if c.TangentThreshold > 0 {
		th.Tangent = c.TangentThreshold
	}
	if c.LongPressDelay > 0 {
		th.LongPressDelay = time.Duration(c.LongPressDelay * float64(time.Second))
	}
	return th
}

// Class is the outcome of classifying one displacement.
type Class int

const (
	// ClassBelow means the displacement has not reached the distance threshold.
	ClassBelow Class = iota
	// ClassResolved means the displacement lies inside an axis cone.
	ClassResolved
	// ClassAmbiguous means the displacement is a diagonal outside both cones.
	ClassAmbiguous
)

func (c Class) String() string {
	switch c {
	case ClassBelow:
		return "below"
	case ClassResolved:
		return "resolved"
	case ClassAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Classify classifies the straight-line displacement from start to end.
// Only the final vector matters, not the path taken.
//
// The horizontal cone is tested first and cone boundaries are inclusive,
// so a vector with |dy| == Tangent*|dx| is horizontal.
func Classify(start, end Point, th Thresholds) (keyboard.Direction, Class) {
	d := end.Sub(start)
	if d.Len() < th.Distance || d.Len() == 0 {
		return "", ClassBelow
	}

	dx, dy := math.Abs(d.X), math.Abs(d.Y)
	switch {
	case dy <= th.Tangent*dx:
		if d.X < 0 {
			return keyboard.Left, ClassResolved
		}
		return keyboard.Right, ClassResolved
	case dx <= th.Tangent*dy:
		if d.Y < 0 {
			return keyboard.Up, ClassResolved
		}
		return keyboard.Down, ClassResolved
	default:
		return "", ClassAmbiguous
	}
}
