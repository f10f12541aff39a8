package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamster/internal/keyboard"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	origin := Point{}

	tests := []struct {
		name  string
		end   Point
		dir   keyboard.Direction
		class Class
	}{
		{"swipe up", Point{0, -30}, keyboard.Up, ClassResolved},
		{"swipe down", Point{2, 25}, keyboard.Down, ClassResolved},
		{"swipe left", Point{-40, 5}, keyboard.Left, ClassResolved},
		{"swipe right", Point{21, -3}, keyboard.Right, ClassResolved},
		{"exactly at distance", Point{0, -20}, keyboard.Up, ClassResolved},
		{"just below distance", Point{0, -19.99}, "", ClassBelow},
		{"no movement", Point{}, "", ClassBelow},
		{"diagonal", Point{30, 30}, "", ClassAmbiguous},
		{"steep diagonal", Point{-20, -25}, "", ClassAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, class := Classify(origin, tt.end, th)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestClassifyNeverSwipesBelowDistance(t *testing.T) {
	th := DefaultThresholds()
	start := Point{X: 100, Y: 100}
	for deg := 0; deg < 360; deg += 5 {
		for _, r := range []float64{0, 1, 5, 10, 19.9} {
			rad := float64(deg) * math.Pi / 180
			end := Point{X: start.X + r*math.Cos(rad), Y: start.Y + r*math.Sin(rad)}
			_, class := Classify(start, end, th)
			assert.Equal(t, ClassBelow, class, "deg=%d r=%v", deg, r)
		}
	}
}

func TestClassifyTangentBoundary(t *testing.T) {
	th := Thresholds{Distance: 20, Tangent: 0.5}

	// |dy| == Tangent*|dx| lies on the horizontal cone boundary.
	dir, class := Classify(Point{}, Point{X: 40, Y: -20}, th)
	assert.Equal(t, ClassResolved, class)
	assert.Equal(t, keyboard.Right, dir)

	// |dx| == Tangent*|dy| lies on the vertical cone boundary.
	dir, class = Classify(Point{}, Point{X: -20, Y: 40}, th)
	assert.Equal(t, ClassResolved, class)
	assert.Equal(t, keyboard.Down, dir)

	// With Tangent >= 1 the cones overlap and horizontal wins.
	dir, class = Classify(Point{}, Point{X: -30, Y: 30}, Thresholds{Distance: 20, Tangent: 1})
	assert.Equal(t, ClassResolved, class)
	assert.Equal(t, keyboard.Left, dir)
}

func TestFromSwipeConfig(t *testing.T) {
	th := FromSwipeConfig(keyboard.SwipeConfiguration{DistanceThreshold: 35, LongPressDelay: 0.5})
	assert.Equal(t, 35.0, th.Distance)
	assert.Equal(t, 0.577, th.Tangent)
	assert.Equal(t, 500*time.Millisecond, th.LongPressDelay)
}

func testKey() *keyboard.Key {
	lp := keyboard.Character("1")
	return &keyboard.Key{
		Action:    keyboard.Character("q"),
		LongPress: &lp,
		Swipe: []keyboard.SwipeBinding{
			{Direction: keyboard.Up, Action: keyboard.Character("Q"), ProcessByEngine: true, Display: true},
			{Direction: keyboard.Left, Action: keyboard.ShortCommand(keyboard.CommandLineStart)},
		},
	}
}

func TestResolve(t *testing.T) {
	th := DefaultThresholds()
	key := testKey()
	q := keyboard.Character("q")

	tests := []struct {
		name string
		g    Gesture
		want Outcome
	}{
		{
			name: "tap",
			g:    Gesture{End: Point{3, 2}, Elapsed: 80 * time.Millisecond},
			want: Outcome{Kind: KindTap, Action: q, ProcessByEngine: true},
		},
		{
			name: "swipe up",
			g:    Gesture{End: Point{0, -30}},
			want: Outcome{Kind: KindSwipe, Direction: keyboard.Up, Action: keyboard.Character("Q"), ProcessByEngine: true},
		},
		{
			name: "swipe left bypasses engine",
			g:    Gesture{End: Point{-30, 0}},
			want: Outcome{Kind: KindSwipe, Direction: keyboard.Left, Action: keyboard.ShortCommand(keyboard.CommandLineStart)},
		},
		{
			name: "unbound direction is a no-op",
			g:    Gesture{End: Point{0, 30}},
			want: Outcome{Kind: KindNone, Direction: keyboard.Down},
		},
		{
			name: "diagonal is ambiguous",
			g:    Gesture{End: Point{30, -30}},
			want: Outcome{Kind: KindNone, Ambiguous: true},
		},
		{
			name: "long press",
			g:    Gesture{Path: []Point{{1, 1}, {2, 0}}, End: Point{1, 0}, Elapsed: 300 * time.Millisecond},
			want: Outcome{Kind: KindLongPress, Action: keyboard.Character("1"), ProcessByEngine: true},
		},
		{
			name: "wandering press is a tap",
			g:    Gesture{Path: []Point{{0, -25}}, End: Point{1, 0}, Elapsed: time.Second},
			want: Outcome{Kind: KindTap, Action: q, ProcessByEngine: true},
		},
		{
			name: "long swipe stays a swipe",
			g:    Gesture{End: Point{0, -30}, Elapsed: time.Second},
			want: Outcome{Kind: KindSwipe, Direction: keyboard.Up, Action: keyboard.Character("Q"), ProcessByEngine: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(key, q, tt.g, th))
		})
	}
}

func TestResolveWithoutKey(t *testing.T) {
	th := DefaultThresholds()
	got := Resolve(nil, keyboard.Space, Gesture{Elapsed: time.Second}, th)
	assert.Equal(t, Outcome{Kind: KindTap, Action: keyboard.Space, ProcessByEngine: true}, got)

	got = Resolve(nil, keyboard.Space, Gesture{End: Point{0, -30}}, th)
	assert.False(t, got.Fired())
}

func TestTrackerReclassifiesUntilRelease(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	now := time.Unix(0, 0)
	tr.Begin(testKey(), keyboard.Character("q"), Point{10, 10}, now)

	_, class := tr.Move(Point{12, 12}, now.Add(10*time.Millisecond))
	assert.Equal(t, ClassBelow, class)

	dir, class := tr.Move(Point{10, 40}, now.Add(20*time.Millisecond))
	assert.Equal(t, ClassResolved, class)
	assert.Equal(t, keyboard.Down, dir)

	dir, _ = tr.Move(Point{10, -20}, now.Add(30*time.Millisecond))
	assert.Equal(t, keyboard.Up, dir)

	out := tr.End(Point{10, -20}, now.Add(40*time.Millisecond))
	assert.Equal(t, KindSwipe, out.Kind)
	assert.Equal(t, keyboard.Up, out.Direction)
	assert.False(t, tr.Active())

	assert.Equal(t, Outcome{}, tr.End(Point{}, now), "second End emits nothing")
}

func TestTrackerLongPressFiresOnce(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	now := time.Unix(0, 0)
	tr.Begin(testKey(), keyboard.Character("q"), Point{}, now)

	_, ok := tr.Poll(now.Add(100 * time.Millisecond))
	assert.False(t, ok)

	out, ok := tr.Poll(now.Add(300 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, KindLongPress, out.Kind)
	assert.Equal(t, keyboard.Character("1"), out.Action)

	_, ok = tr.Poll(now.Add(400 * time.Millisecond))
	assert.False(t, ok)

	assert.False(t, tr.End(Point{}, now.Add(500*time.Millisecond)).Fired())
}

func TestTrackerNoLongPressAfterMoving(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	now := time.Unix(0, 0)
	tr.Begin(testKey(), keyboard.Character("q"), Point{}, now)
	tr.Move(Point{0, -25}, now.Add(50*time.Millisecond))
	tr.Move(Point{0, -2}, now.Add(100*time.Millisecond))

	_, ok := tr.Poll(now.Add(time.Second))
	assert.False(t, ok)

	out := tr.End(Point{0, -2}, now.Add(time.Second))
	assert.Equal(t, KindTap, out.Kind)
}

func TestTrackerCancel(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	now := time.Unix(0, 0)
	tr.Begin(testKey(), keyboard.Character("q"), Point{}, now)
	tr.Cancel()
	assert.False(t, tr.End(Point{0, -30}, now).Fired())
}

func TestResolverUsesSnapshot(t *testing.T) {
	cfg, err := keyboard.Load("../keyboard/testdata/hamster.yaml")
	require.NoError(t, err)
	r := NewResolver(Static{Config: cfg})

	out := r.Resolve("chinese", keyboard.Character("a"), Gesture{End: Point{0, -30}})
	assert.Equal(t, KindSwipe, out.Kind)
	assert.Equal(t, keyboard.Character("`"), out.Action)

	out = r.Resolve("chinese", keyboard.Character("z"), Gesture{End: Point{-30, 0}})
	assert.Equal(t, keyboard.ShortCommand(keyboard.CommandLineEnd).Kind, out.Action.Kind)
	assert.False(t, out.ProcessByEngine)

	out = r.Resolve("chinese", keyboard.Character("x"), Gesture{End: Point{1, 1}})
	assert.Equal(t, Outcome{Kind: KindTap, Action: keyboard.Character("x"), ProcessByEngine: true}, out)

	out = r.Resolve("仓颉", keyboard.Character("q"), Gesture{End: Point{0, -30}})
	assert.Equal(t, keyboard.Character("1"), out.Action)

	now := time.Unix(0, 0)
	tr := r.Track("chinese", keyboard.Character("q"), Point{}, now)
	lp, ok := tr.Poll(now.Add(300 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, keyboard.Character("1"), lp.Action)
}

func TestResolverDefaults(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, DefaultThresholds(), r.Thresholds())
	_, ok := r.Key("chinese", keyboard.Space)
	assert.False(t, ok)
}
