package rime

import "sync/atomic"

// ASCIIModer is the keyboard's ASCII mode: a process-local intent that
// never reaches the engine.
type ASCIIModer interface {
	ASCIIMode() bool
	SetASCIIMode(on bool) bool
}

// SimplifiedModer is the simplified/traditional switch, backed by an
// engine option and so needing a session.
type SimplifiedModer interface {
	SimplifiedMode() (bool, error)
	SetSimplifiedMode(on bool) (bool, error)
}

var (
	_ ASCIIModer      = (*LocalASCIIMode)(nil)
	_ ASCIIModer      = (*Manager)(nil)
	_ SimplifiedModer = (*Manager)(nil)
)

// LocalASCIIMode is an ASCIIModer held in memory.
type LocalASCIIMode struct {
	on atomic.Bool
}

func (l *LocalASCIIMode) ASCIIMode() bool { return l.on.Load() }

// SetASCIIMode sets the flag and returns the applied value.
func (l *LocalASCIIMode) SetASCIIMode(on bool) bool {
	l.on.Store(on)
	return l.on.Load()
}

// ASCIIMode reports the local ASCII flag. It makes no engine call.
func (m *Manager) ASCIIMode() bool { return m.ascii.ASCIIMode() }

// SetASCIIMode sets the local ASCII flag and returns the applied value.
func (m *Manager) SetASCIIMode(on bool) bool { return m.ascii.SetASCIIMode(on) }

// SimplifiedMode reads the engine option. The option is set when the
// engine converts to the other script, so simplified mode is its negation.
func (m *Manager) SimplifiedMode() (bool, error) {
	var on bool
	err := m.withSession(func(s SessionID) error {
		on = !m.engine.Option(s, m.simplifiedOption)
		return nil
	})
	return on, err
}

// SetSimplifiedMode asks the engine for simplified (or traditional) output
// and returns the mode the engine reports afterwards.
func (m *Manager) SetSimplifiedMode(on bool) (bool, error) {
	var applied bool
	err := m.withSession(func(s SessionID) error {
		m.engine.SetOption(s, m.simplifiedOption, !on)
		applied = !m.engine.Option(s, m.simplifiedOption)
		m.generation++
		return nil
	})
	return applied, err
}
