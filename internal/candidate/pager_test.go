package candidate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamster/internal/candidate"
	"hamster/internal/rime"
	"hamster/internal/rime/rimetest"
)

func setup(t *testing.T, opts ...candidate.Option) (*candidate.Pager, *rime.Manager, *rimetest.Fake) {
	t.Helper()
	fake := rimetest.NewFake()
	m := rime.NewManager(fake)
	require.NoError(t, m.Configure(rime.Traits{UserDataDir: t.TempDir()}))
	t.Cleanup(m.Shutdown)
	return candidate.NewPager(m, opts...), m, fake
}

func TestFirstPageAfterTyping(t *testing.T) {
	p, m, _ := setup(t)
	on, err := m.SimplifiedMode()
	require.NoError(t, err)
	require.True(t, on)

	_, err = m.InputKey("nihao")
	require.NoError(t, err)

	page, err := p.PageFromStart(10)
	require.NoError(t, err)
	require.False(t, page.Empty())
	assert.Equal(t, 1, page.Start)
	assert.Equal(t, 10, page.Len())

	first, ok := page.First()
	require.True(t, ok)
	assert.True(t, first.Autocomplete)
	assert.Equal(t, "你好", first.Text)
	assert.Equal(t, "你好", first.Title)
	assert.Equal(t, 0, first.Index)
	assert.NotEqual(t, uuid.Nil, first.ID)
	for _, it := range page.Items[1:] {
		assert.False(t, it.Autocomplete, it.Text)
	}
}

func TestContiguousPages(t *testing.T) {
	p, m, _ := setup(t)
	_, err := m.InputKey("nihao")
	require.NoError(t, err)

	all, err := m.Candidates(1, rimetest.NihaoCount)
	require.NoError(t, err)

	const size = 10
	var seen []string
	for start := 1; ; start += size {
		page, err := p.Page(start, size)
		require.NoError(t, err)
		if page.Empty() {
			break
		}
		for i, it := range page.Items {
			assert.Equal(t, start-1+i, it.Index)
			assert.Equal(t, i == 0, it.Autocomplete, "autocomplete is per page")
			seen = append(seen, it.Text)
		}
	}

	require.Len(t, seen, rimetest.NihaoCount)
	for i, c := range all.Candidates {
		assert.Equal(t, c.Text, seen[i])
	}
}

func TestPagesGetFreshIdentity(t *testing.T) {
	p, m, _ := setup(t)
	_, err := m.InputKey("nihao")
	require.NoError(t, err)

	a, err := p.PageFromStart(3)
	require.NoError(t, err)
	b, err := p.PageFromStart(3)
	require.NoError(t, err)
	assert.Equal(t, a.Items[0].Text, b.Items[0].Text)
	assert.NotEqual(t, a.Items[0].ID, b.Items[0].ID)
}

func TestPageCap(t *testing.T) {
	p, m, fake := setup(t, candidate.WithMax(20))
	assert.Equal(t, 20, p.Max())
	_, err := m.InputKey("nihao")
	require.NoError(t, err)

	page, err := p.Page(15, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Len())
	assert.Equal(t, 19, page.Items[5].Index)

	calls := fake.Calls("Candidates")
	page, err = p.Page(21, 10)
	require.NoError(t, err)
	assert.True(t, page.Empty())
	assert.Equal(t, calls, fake.Calls("Candidates"))
}

func TestDefaultCap(t *testing.T) {
	p, _, _ := setup(t)
	assert.Equal(t, candidate.DefaultMax, p.Max())
}

func TestSelectOutOfRange(t *testing.T) {
	p, m, fake := setup(t)
	_, err := m.InputKey("ni")
	require.NoError(t, err)

	page, err := p.PageFromStart(10)
	require.NoError(t, err)
	require.Equal(t, 3, page.Len())

	_, err = p.Select(5)
	assert.ErrorIs(t, err, candidate.ErrIndexOutOfRange)
	_, err = p.Select(-1)
	assert.ErrorIs(t, err, candidate.ErrIndexOutOfRange)
	assert.Equal(t, 0, fake.Calls("SelectCandidate"))

	input, err := m.Input()
	require.NoError(t, err)
	assert.Equal(t, "ni", input)
	_, ok := p.Last()
	assert.True(t, ok, "a rejected index keeps the page")
}

func TestSelectCommits(t *testing.T) {
	p, m, _ := setup(t)
	_, err := m.InputKey("nihao")
	require.NoError(t, err)

	_, err = p.Page(11, 10)
	require.NoError(t, err)
	text, err := p.Select(2)
	require.NoError(t, err)
	assert.Equal(t, "候选12", text)

	_, ok := p.Last()
	assert.False(t, ok)
	_, err = p.Select(0)
	assert.ErrorIs(t, err, candidate.ErrNoPage)
}

func TestSelectStalePage(t *testing.T) {
	p, m, fake := setup(t)
	_, err := m.InputKey("ni")
	require.NoError(t, err)
	_, err = p.PageFromStart(5)
	require.NoError(t, err)

	_, err = m.InputKey("hao")
	require.NoError(t, err)

	_, err = p.Select(0)
	assert.ErrorIs(t, err, candidate.ErrStalePage)
	assert.Equal(t, 0, fake.Calls("SelectCandidate"))
	_, ok := p.Last()
	assert.False(t, ok)
}

func TestSelectBeforePage(t *testing.T) {
	p, _, _ := setup(t)
	_, err := p.Select(0)
	assert.ErrorIs(t, err, candidate.ErrNoPage)
}

func TestPageNotReady(t *testing.T) {
	m := rime.NewManager(rimetest.NewFake())
	p := candidate.NewPager(m)
	_, err := p.PageFromStart(5)
	assert.ErrorIs(t, err, rime.ErrEngineNotReady)
}

func TestInvalidate(t *testing.T) {
	p, m, _ := setup(t)
	_, err := m.InputKey("ni")
	require.NoError(t, err)
	_, err = p.PageFromStart(5)
	require.NoError(t, err)

	p.Invalidate()
	_, err = p.Select(0)
	assert.ErrorIs(t, err, candidate.ErrNoPage)
}

func TestRestore(t *testing.T) {
	p, m, _ := setup(t)
	_, err := m.InputKey("ni")
	require.NoError(t, err)
	shown, err := p.PageFromStart(5)
	require.NoError(t, err)

	_, err = p.Page(4, 1)
	require.NoError(t, err)
	_, err = p.Select(0)
	require.ErrorIs(t, err, candidate.ErrIndexOutOfRange)

	p.Restore(shown)
	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, shown.Start, last.Start)

	text, err := p.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "尼", text)
}
