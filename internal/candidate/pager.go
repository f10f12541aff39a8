// Package candidate pages engine suggestions for the candidate bar.
package candidate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"hamster/internal/rime"
)

// DefaultMax is the number of candidates a pager exposes at most.
const DefaultMax = 100

var (
	// ErrIndexOutOfRange is returned when a selection lies outside the
	// last page. The engine is not called.
	ErrIndexOutOfRange = errors.New("candidate: index out of range")

	// ErrStalePage is returned when the input changed after the last page
	// was read.
	ErrStalePage = errors.New("candidate: page is stale")

	// ErrNoPage is returned by Select before any page was read.
	ErrNoPage = errors.New("candidate: no page")

	// ErrRejected is returned when the engine declined a selection.
	ErrRejected = errors.New("candidate: selection rejected")
)

// Source is the engine side of paging. rime.Manager implements it.
type Source interface {
	Candidates(start, count int) (rime.Window, error)
	SelectCandidate(index int, generation uint64) (bool, error)
	Generation() uint64
	Commit() (string, error)
}

var _ Source = (*rime.Manager)(nil)

// Item is one suggestion as presented.
type Item struct {
	ID uuid.UUID
	// Text is what gets inserted.
	Text  string
	Title string
	// Subtitle carries the engine comment, such as a pronunciation.
	Subtitle string
	// Index is the 0-based position among all candidates.
	Index int
	// Autocomplete marks the item a space commits.
	Autocomplete bool
	Unknown      bool
}

// Page is a window of items read against one input state.
type Page struct {
	// Start is the 1-based position of Items[0].
	Start      int
	Generation uint64
	Items      []Item
}

// Len returns the number of items.
func (p Page) Len() int { return len(p.Items) }

// Empty reports whether the page has no items.
func (p Page) Empty() bool { return len(p.Items) == 0 }

// First returns the autocomplete item.
func (p Page) First() (Item, bool) {
	if len(p.Items) == 0 {
		return Item{}, false
	}
	return p.Items[0], true
}

// Pager reads pages from a Source and validates selections against the
// last one.
type Pager struct {
	src    Source
	max    int
	logger *slog.Logger

	mu   sync.Mutex
	last *Page
}

// Option configures a Pager.
type Option func(*Pager)

// WithMax caps the candidates reachable through paging.
func WithMax(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.max = n
		}
	}
}

// WithLogger sets the pager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPager creates a pager over src.
func NewPager(src Source, opts ...Option) *Pager {
	p := &Pager{
		src:    src,
		max:    DefaultMax,
		logger: slog.Default().With("component", "candidate"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Max returns the candidate cap.
func (p *Pager) Max() int { return p.max }

// Page reads up to count candidates from the 1-based position start. The
// window is clipped to the cap; a window beyond it is empty and costs no
// engine call.
func (p *Pager) Page(start, count int) (Page, error) {
	if start < 1 {
		start = 1
	}
	count = min(count, p.max-start+1)

	var w rime.Window
	if count > 0 {
		var err error
		if w, err = p.src.Candidates(start, count); err != nil {
			return Page{}, fmt.Errorf("reading candidates from %d: %w", start, err)
		}
	} else {
		w = rime.Window{Start: start, Generation: p.src.Generation()}
	}

	page := Page{Start: start, Generation: w.Generation}
	if count > 0 && len(w.Candidates) > count {
		w.Candidates = w.Candidates[:count]
	}
	if len(w.Candidates) > 0 {
		page.Items = make([]Item, len(w.Candidates))
	}
	for i, c := range w.Candidates {
		page.Items[i] = Item{
			ID:           uuid.New(),
			Text:         c.Text,
			Title:        c.Text,
			Subtitle:     c.Comment,
			Index:        start - 1 + i,
			Autocomplete: i == 0,
		}
	}

	p.mu.Lock()
	p.last = &page
	p.mu.Unlock()
	return page, nil
}

// PageFromStart reads the first page.
func (p *Pager) PageFromStart(count int) (Page, error) {
	return p.Page(1, count)
}

// Select commits the item at the 0-based position rel of the last page
// and returns the committed text. The page is spent afterwards.
func (p *Pager) Select(rel int) (string, error) {
	p.mu.Lock()
	page := p.last
	p.mu.Unlock()

	if page == nil {
		return "", ErrNoPage
	}
	if rel < 0 || rel >= len(page.Items) {
		return "", fmt.Errorf("%w: %d, page holds %d", ErrIndexOutOfRange, rel, len(page.Items))
	}
	if p.src.Generation() != page.Generation {
		p.Invalidate()
		return "", ErrStalePage
	}

	item := page.Items[rel]
	ok, err := p.src.SelectCandidate(item.Index, page.Generation)
	switch {
	case errors.Is(err, rime.ErrStale):
		p.Invalidate()
		return "", ErrStalePage
	case err != nil:
		return "", fmt.Errorf("selecting %q: %w", item.Text, err)
	}
	p.Invalidate()
	if !ok {
		p.logger.Debug("selection rejected", "index", item.Index, "text", item.Text)
		return "", fmt.Errorf("%w: %q", ErrRejected, item.Text)
	}
	return p.src.Commit()
}

// Last returns the page Select works against, if any.
func (p *Pager) Last() (Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Page{}, false
	}
	return *p.last, true
}

// Restore makes page the one Select works against again.
func (p *Pager) Restore(page Page) {
	p.mu.Lock()
	p.last = &page
	p.mu.Unlock()
}

// Invalidate forgets the last page.
func (p *Pager) Invalidate() {
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()
}
