package rime

import (
	"strings"
	"sync"

	"hamster/internal/notify"
)

// eventQueue keeps engine notifications in emission order until they can
// be delivered outside the manager's lock.
type eventQueue struct {
	mu     sync.Mutex
	events []notify.Event

	// draining is held by the goroutine delivering events.
	draining sync.Mutex
}

func (q *eventQueue) push(ev notify.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

func (q *eventQueue) pop() (notify.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return notify.Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *eventQueue) clear() {
	q.mu.Lock()
	q.events = nil
	q.mu.Unlock()
}

// flush delivers queued events to the bridge. One goroutine delivers at a
// time; a flush that finds another in progress leaves the work to it, so a
// handler that calls back into the manager does not deadlock.
func (m *Manager) flush() {
	for {
		if !m.events.draining.TryLock() {
			return
		}
		for ev, ok := m.events.pop(); ok; ev, ok = m.events.pop() {
			m.bridge.Emit(ev)
		}
		m.events.draining.Unlock()
		if m.events.len() == 0 {
			return
		}
	}
}

// onNotification translates engine messages into bridge events. Deploy
// messages are dropped because the manager reports deployments itself.
func (m *Manager) onNotification(messageType, value string) {
	switch messageType {
	case "deploy":
		m.logger.Debug("engine deploy message", "value", value)
	case "schema":
		m.events.push(notify.Event{Kind: notify.SchemaLoading, Value: ParseSchema(value).ID})
	case "option":
		m.events.push(notify.Event{Kind: notify.ModeChanged, Value: value})
	default:
		m.logger.Debug("engine message ignored", "type", messageType, "value", value)
	}
}

// OptionState splits an option message such as "!ascii_mode" into the
// option name and its new value.
func OptionState(mode string) (name string, on bool) {
	if name, found := strings.CutPrefix(mode, "!"); found {
		return name, false
	}
	return mode, true
}
