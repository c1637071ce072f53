// Package item defines the canonical agent item model: the shared
// vocabulary every agent runner must translate its tool's raw stream into.
package item

import "time"

// Kind identifies the variant of a canonical agent item.
type Kind string

const (
	KindMessage    Kind = "message"
	KindReasoning  Kind = "reasoning"
	KindCommand    Kind = "command_execution"
	KindFileChange Kind = "file_change"
	KindToolCall   Kind = "tool_call"
	KindTodoList   Kind = "todo_list"
	KindWebSearch  Kind = "web_search"
	KindError      Kind = "error"
)

// Status is the lifecycle state of an item within one runner invocation.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal indicates Status is done or failed.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Todo is one entry of a todo_list item.
type Todo struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// FileUpdate describes one file touched by a file_change item.
type FileUpdate struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "add", "update", "delete"
}

// Item is one normalized unit of agent activity. Its ID is stable within
// the runner invocation that produced it; repeated emissions sharing an ID
// are updates in place, never duplicates.
type Item struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	// Text carries the message body, reasoning summary or error message.
	Text string `json:"text,omitempty"`

	// Command execution fields.
	Command  string `json:"command,omitempty"`
	Output   string `json:"output,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`

	// Tool call fields.
	Tool string `json:"tool,omitempty"`
	Args string `json:"args,omitempty"`

	Files []FileUpdate `json:"files,omitempty"`
	Todos []Todo       `json:"todos,omitempty"`
	Query string       `json:"query,omitempty"`

	FirstSeenAt time.Time  `json:"first_seen_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the span from first emission to terminal status, or
// zero if the item never reached a terminal status.
func (it *Item) Duration() time.Duration {
	if it.CompletedAt == nil {
		return 0
	}
	return it.CompletedAt.Sub(it.FirstSeenAt)
}

// List is an ordered collection of items collapsed by ID: first emission
// fixes the position, later emissions replace the payload.
type List struct {
	items []Item
	index map[string]int
}

// NewList returns an empty item list.
func NewList() *List {
	return &List{index: make(map[string]int)}
}

// Upsert merges an emission into the list. A new ID appends; a known ID
// replaces the stored payload, keeping the original position and
// first-seen timestamp. CompletedAt is stamped the first time the item
// reaches a terminal status.
func (l *List) Upsert(it Item, at time.Time) {
	if i, ok := l.index[it.ID]; ok {
		prev := l.items[i]
		it.FirstSeenAt = prev.FirstSeenAt
		it.CompletedAt = prev.CompletedAt
		if it.CompletedAt == nil && it.Status.Terminal() {
			t := at
			it.CompletedAt = &t
		}
		l.items[i] = it
		return
	}
	it.FirstSeenAt = at
	if it.Status.Terminal() {
		t := at
		it.CompletedAt = &t
	}
	l.index[it.ID] = len(l.items)
	l.items = append(l.items, it)
}

// Items returns the collapsed items in first-seen order.
func (l *List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of distinct items.
func (l *List) Len() int { return len(l.items) }

// Get returns the collapsed item with the given id.
func (l *List) Get(id string) (Item, bool) {
	if i, ok := l.index[id]; ok {
		return l.items[i], true
	}
	return Item{}, false
}

// Clone returns an independent copy of the list.
func (l *List) Clone() *List {
	cp := NewList()
	cp.items = make([]Item, len(l.items))
	copy(cp.items, l.items)
	for id, i := range l.index {
		cp.index[id] = i
	}
	return cp
}

// Outcome is the reason a runner invocation ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// EventType discriminates runner stream events.
type EventType string

const (
	// EventItem carries an item emission (new or update in place).
	EventItem EventType = "item"
	// EventSession surfaces the external tool's continuity token so it
	// can be replayed on later turns of the same thread.
	EventSession EventType = "session"
	// EventTerminal is the exactly-once end-of-invocation marker.
	EventTerminal EventType = "terminal"
)

// Event is one element of the ordered stream a runner invocation emits.
type Event struct {
	Type EventType

	Item Item // EventItem

	SessionID string // EventSession

	// EventTerminal fields.
	Outcome  Outcome
	Duration time.Duration
	ErrorMsg string
}

// TerminalEvent builds an end-of-invocation marker.
func TerminalEvent(outcome Outcome, d time.Duration, errMsg string) Event {
	return Event{Type: EventTerminal, Outcome: outcome, Duration: d, ErrorMsg: errMsg}
}
