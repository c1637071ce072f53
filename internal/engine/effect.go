package engine

import (
	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
)

// Effect is a description of I/O the reducer wants performed. The reducer
// never performs I/O itself; the engine dispatches effects asynchronously
// and funnels their outcomes back through the loop as follow-up intents.
type Effect interface {
	effectKind() string
}

// StartTurn spawns a runner invocation for a thread.
type StartTurn struct {
	WorkspaceID int64
	ThreadID    int64
	Invocation  uint64
	Prompt      string
	WorkDir     string
	SessionID   string
	Config      turn.RunConfig
}

// StopTurn signals the thread's current invocation to terminate. The
// turn stays running until its terminal marker arrives; "signal sent" is
// never "turn ended".
type StopTurn struct {
	ThreadID   int64
	Invocation uint64
}

// PersistEntry appends one immutable entry to durable storage.
type PersistEntry struct {
	Entry thread.Entry
}

// PersistThread writes thread metadata (create when New, update otherwise).
type PersistThread struct {
	Thread thread.Thread
	New    bool
}

// PersistProject writes project metadata.
type PersistProject struct {
	Project workspace.Project
	New     bool
}

// PersistWorkspace writes workspace metadata.
type PersistWorkspace struct {
	Workspace workspace.Workspace
	New       bool
}

// PersistDefaults writes the durable default run configuration.
type PersistDefaults struct {
	Config turn.RunConfig
}

func (StartTurn) effectKind() string        { return "start_turn" }
func (StopTurn) effectKind() string         { return "stop_turn" }
func (PersistEntry) effectKind() string     { return "persist_entry" }
func (PersistThread) effectKind() string    { return "persist_thread" }
func (PersistProject) effectKind() string   { return "persist_project" }
func (PersistWorkspace) effectKind() string { return "persist_workspace" }
func (PersistDefaults) effectKind() string  { return "persist_defaults" }
