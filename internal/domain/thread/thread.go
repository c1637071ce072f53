// Package thread defines the durable conversation entities: threads and
// their append-only entry logs.
package thread

import (
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
)

// Thread is a durable conversation unit within a workspace. Threads are
// never deleted, only archived (removed from the visible tab set).
type Thread struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Title       string `json:"title"`

	// AgentSessionID is the external tool's continuity token, bound on
	// first use and replayed on subsequent turns.
	AgentSessionID string `json:"agent_session_id,omitempty"`

	Config turn.RunConfig `json:"config"`

	Archived    bool  `json:"archived"`
	TabPosition int   `json:"tab_position"`
	EntryCount  int64 `json:"entry_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryKind discriminates entry payloads.
type EntryKind string

const (
	// EntryUser is a user message with optional attachment references.
	EntryUser EntryKind = "user"
	// EntryAgent is one completed agent turn: its collapsed items plus
	// the terminal outcome.
	EntryAgent EntryKind = "agent"
	// EntrySystem records status transitions (cancellation and failure
	// markers).
	EntrySystem EntryKind = "system"
)

// UserEvent is the payload of an EntryUser entry.
type UserEvent struct {
	Text        string   `json:"text"`
	Attachments []string `json:"attachments,omitempty"`
}

// AgentEvent is the payload of an EntryAgent entry.
type AgentEvent struct {
	Items    []item.Item   `json:"items"`
	Outcome  item.Outcome  `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// SystemEvent is the payload of an EntrySystem entry.
type SystemEvent struct {
	Status  string `json:"status"` // "canceled", "failed"
	Message string `json:"message,omitempty"`
}

// Entry is one immutable element of a thread's append-only log. Seq is
// the append sequence, which is also the replay and pagination key.
type Entry struct {
	ThreadID int64     `json:"thread_id"`
	Seq      int64     `json:"seq"`
	Kind     EntryKind `json:"kind"`

	User   *UserEvent   `json:"user,omitempty"`
	Agent  *AgentEvent  `json:"agent,omitempty"`
	System *SystemEvent `json:"system,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EntryPage is an offset-paginated slice of a thread's entry log.
type EntryPage struct {
	Entries   []Entry `json:"entries"`
	Total     int64   `json:"total"`
	Truncated bool    `json:"truncated"`
}
