package agentproc

import (
	"sync"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

// Emitter delivers canonical events to the engine and enforces the
// stream contract: exactly one terminal marker, then no further events,
// then channel close.
type Emitter struct {
	events chan item.Event

	mu       sync.Mutex
	terminal bool
}

// NewEmitter returns an emitter with a buffered event channel.
func NewEmitter(buf int) *Emitter {
	if buf <= 0 {
		buf = 64
	}
	return &Emitter{events: make(chan item.Event, buf)}
}

// Events returns the channel the engine drains.
func (e *Emitter) Events() <-chan item.Event { return e.events }

// Item emits one item event. Dropped silently once the terminal marker
// is out.
func (e *Emitter) Item(it item.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.events <- item.Event{Type: item.EventItem, Item: it}
}

// Session emits the tool's continuity token.
func (e *Emitter) Session(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal || id == "" {
		return
	}
	e.events <- item.Event{Type: item.EventSession, SessionID: id}
}

// Terminal emits the end-of-invocation marker. Only the first call wins;
// later calls report false and emit nothing.
func (e *Emitter) Terminal(outcome item.Outcome, d time.Duration, errMsg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return false
	}
	e.terminal = true
	e.events <- item.TerminalEvent(outcome, d, errMsg)
	return true
}

// Close closes the event channel. Callers must have emitted the terminal
// marker first.
func (e *Emitter) Close() {
	close(e.events)
}
