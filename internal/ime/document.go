package ime

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// TextProxy is the host text field the controller edits. Offsets are in
// runes.
type TextProxy interface {
	InsertText(text string)
	DeleteBackward()
	AdjustCursor(offset int)
	MoveToLineStart()
	MoveToLineEnd()
}

var _ TextProxy = (*Document)(nil)

// Document is an in-memory TextProxy with a cursor. It backs the command
// line and tests.
type Document struct {
	mu     sync.Mutex
	text   []rune
	cursor int
}

// NewDocument returns a document holding text with the cursor at its end.
func NewDocument(text string) *Document {
	r := []rune(text)
	return &Document{text: r, cursor: len(r)}
}

// InsertText inserts text at the cursor and moves the cursor past it.
func (d *Document) InsertText(text string) {
	if text == "" {
		return
	}
	ins := []rune(text)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = append(d.text[:d.cursor], append(ins, d.text[d.cursor:]...)...)
	d.cursor += len(ins)
}

// DeleteBackward removes the rune before the cursor.
func (d *Document) DeleteBackward() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor == 0 {
		return
	}
	d.text = append(d.text[:d.cursor-1], d.text[d.cursor:]...)
	d.cursor--
}

// AdjustCursor moves the cursor by offset runes, clamped to the text.
func (d *Document) AdjustCursor(offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = min(max(d.cursor+offset, 0), len(d.text))
}

// MoveToLineStart moves the cursor after the previous newline.
func (d *Document) MoveToLineStart() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.cursor > 0 && d.text[d.cursor-1] != '\n' {
		d.cursor--
	}
}

// MoveToLineEnd moves the cursor before the next newline.
func (d *Document) MoveToLineEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.cursor < len(d.text) && d.text[d.cursor] != '\n' {
		d.cursor++
	}
}

// String returns the text.
func (d *Document) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

// Cursor returns the cursor position in runes.
func (d *Document) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// BeforeCursor returns the text left of the cursor.
func (d *Document) BeforeCursor() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text[:d.cursor])
}

// pairRightLen counts the runes of the right half of a paired symbol such as
// 《》 or “”. It returns 0 for anything that is not an even pair.
func pairRightLen(symbol string) int {
	n := utf8.RuneCountInString(symbol)
	if n < 2 || n%2 != 0 {
		return 0
	}
	return n / 2
}

// isPair reports whether symbol is listed in pairs.
func isPair(symbol string, pairs []string) bool {
	for _, p := range pairs {
		if strings.TrimSpace(p) == symbol {
			return true
		}
	}
	return false
}
