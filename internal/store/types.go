// Package store provides SQLite-based dictionary storage for the table engine.
package store

import "time"

// SchemaRecord describes an imported input schema.
type SchemaRecord struct {
	ID      string
	Name    string
	Version string
	// Dictionary names the dict file the entries came from.
	Dictionary string
	// Alphabet holds the keys that compose input.
	Alphabet string
	// Position orders schemas as the user listed them.
	Position   int
	Entries    int
	ImportedAt time.Time
}

// Entry is one dictionary line: a phrase and the code that produces it.
type Entry struct {
	Text   string
	Code   string
	Weight int64
}

// Match is a dictionary entry found for an input code.
type Match struct {
	Text      string
	Code      string
	Weight    int64
	Frequency int64
	// Exact is set when Code equals the input rather than extending it.
	Exact bool
}

// Score orders matches of the same exactness.
func (m Match) Score() int64 { return m.Weight + m.Frequency }

// Deploy is one recorded deployment.
type Deploy struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	OK       bool
	Schemas  int
	Detail   string
}
