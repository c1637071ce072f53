// Package engine implements the orchestration core: a single serialized
// mutation loop applying a pure reducer to incoming intents, dispatching
// the returned effects asynchronously, and feeding effect outcomes back
// through the same loop as follow-up intents.
package engine

import (
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
)

// Intent is one unit of input to the reducer. Public intents arrive from
// observers; follow-up intents are produced internally by effect
// completion and runner streams.
type Intent interface {
	intentKind() string
}

// BusyPolicy selects what a send does when the target thread already has
// a running turn.
type BusyPolicy string

const (
	// BusyReject fails the send with ErrTurnRunning.
	BusyReject BusyPolicy = "reject"
	// BusyEnqueue appends the message to the thread's prompt queue.
	BusyEnqueue BusyPolicy = "enqueue"
	// BusyCancel cancels the running turn and starts the new one as soon
	// as the cancellation is confirmed (atomic cancel-and-send).
	BusyCancel BusyPolicy = "cancel"
)

// --- entity lifecycle ---

type CreateProject struct {
	Name    string
	RepoURL string
}

type RenameProject struct {
	ProjectID int64
	Name      string
}

type ArchiveProject struct {
	ProjectID int64
}

type CreateWorkspace struct {
	ProjectID int64
	Name      string
	Path      string
}

type RenameWorkspace struct {
	WorkspaceID int64
	Name        string
}

type ArchiveWorkspace struct {
	WorkspaceID int64
}

// --- thread / tab lifecycle ---

type CreateThread struct {
	WorkspaceID int64
	Title       string
}

type RenameThread struct {
	ThreadID int64
	Title    string
}

// CloseTab archives a thread: it leaves the visible tab set but its log
// is retained and it can be restored later.
type CloseTab struct {
	ThreadID int64
}

type RestoreTab struct {
	ThreadID int64
}

// MoveTab places a thread's tab at the given position among open tabs.
type MoveTab struct {
	ThreadID int64
	Position int
}

type ActivateTab struct {
	ThreadID int64
}

// --- message lifecycle ---

type SendMessage struct {
	ThreadID    int64
	Text        string
	Attachments []string
	IfBusy      BusyPolicy
}

type ReorderQueuedPrompt struct {
	ThreadID int64
	PromptID string
	Position int
}

// UpdateQueuedPrompt replaces the text and, when Config is non-nil, the
// captured run configuration of a queued prompt.
type UpdateQueuedPrompt struct {
	ThreadID int64
	PromptID string
	Text     string
	Config   *turn.RunConfig
}

type RemoveQueuedPrompt struct {
	ThreadID int64
	PromptID string
}

type CancelTurn struct {
	ThreadID int64
}

// PauseQueue suspends automatic dequeue after turn completion.
type PauseQueue struct {
	ThreadID int64
}

// ResumeQueue dequeues the queue head and starts a turn with it.
type ResumeQueue struct {
	ThreadID int64
}

// --- configuration ---

type SetThreadConfig struct {
	ThreadID int64
	Config   turn.RunConfig
}

type SetDefaults struct {
	Config turn.RunConfig
}

// --- follow-up intents (internal) ---

// turnItemSeen carries one canonical item emission from a runner stream.
type turnItemSeen struct {
	ThreadID   int64
	Invocation uint64
	Item       item.Item
}

// turnSessionBound surfaces the external tool's continuity token.
type turnSessionBound struct {
	ThreadID   int64
	Invocation uint64
	SessionID  string
}

// turnEnded is the runner's exactly-once terminal marker.
type turnEnded struct {
	ThreadID   int64
	Invocation uint64
	Outcome    item.Outcome
	Duration   time.Duration
	ErrorMsg   string
}

// effectFailed reports a failed effect (storage write, spawn, import).
// The engine keeps running; the affected entity keeps its last-known-good
// in-memory state and observers see a toast.
type effectFailed struct {
	Op       string
	ThreadID int64
	Err      string
}

func (CreateProject) intentKind() string       { return "create_project" }
func (RenameProject) intentKind() string       { return "rename_project" }
func (ArchiveProject) intentKind() string      { return "archive_project" }
func (CreateWorkspace) intentKind() string     { return "create_workspace" }
func (RenameWorkspace) intentKind() string     { return "rename_workspace" }
func (ArchiveWorkspace) intentKind() string    { return "archive_workspace" }
func (CreateThread) intentKind() string        { return "create_thread" }
func (RenameThread) intentKind() string        { return "rename_thread" }
func (CloseTab) intentKind() string            { return "close_tab" }
func (RestoreTab) intentKind() string          { return "restore_tab" }
func (MoveTab) intentKind() string             { return "move_tab" }
func (ActivateTab) intentKind() string         { return "activate_tab" }
func (SendMessage) intentKind() string         { return "send_message" }
func (ReorderQueuedPrompt) intentKind() string { return "reorder_queued_prompt" }
func (UpdateQueuedPrompt) intentKind() string  { return "update_queued_prompt" }
func (RemoveQueuedPrompt) intentKind() string  { return "remove_queued_prompt" }
func (CancelTurn) intentKind() string          { return "cancel_turn" }
func (PauseQueue) intentKind() string          { return "pause_queue" }
func (ResumeQueue) intentKind() string         { return "resume_queue" }
func (SetThreadConfig) intentKind() string     { return "set_thread_config" }
func (SetDefaults) intentKind() string         { return "set_defaults" }
func (turnItemSeen) intentKind() string        { return "turn_item_seen" }
func (turnSessionBound) intentKind() string    { return "turn_session_bound" }
func (turnEnded) intentKind() string           { return "turn_ended" }
func (effectFailed) intentKind() string        { return "effect_failed" }
