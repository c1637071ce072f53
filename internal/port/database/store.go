// Package database defines the port interface for durable storage.
//
// All store calls run as effects off the engine's mutation loop; the
// loop itself never blocks on storage.
package database

import (
	"context"

	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
)

// Store is the port interface for persisting projects, workspaces,
// threads, their append-only entry logs, and durable defaults.
type Store interface {
	// LoadProjects returns every project, archived ones included.
	LoadProjects(ctx context.Context) ([]workspace.Project, error)
	CreateProject(ctx context.Context, p *workspace.Project) (*workspace.Project, error)
	UpdateProject(ctx context.Context, p *workspace.Project) error

	LoadWorkspaces(ctx context.Context) ([]workspace.Workspace, error)
	CreateWorkspace(ctx context.Context, w *workspace.Workspace) (*workspace.Workspace, error)
	UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error

	// LoadThreads returns every thread with its entry count, which is
	// the next append sequence.
	LoadThreads(ctx context.Context) ([]thread.Thread, error)
	CreateThread(ctx context.Context, t *thread.Thread) (*thread.Thread, error)
	UpdateThread(ctx context.Context, t *thread.Thread) error

	// AppendEntry atomically appends one immutable entry to a thread's
	// log. The caller assigns Seq; a duplicate (thread_id, seq) is a
	// conflict.
	AppendEntry(ctx context.Context, e *thread.Entry) error

	// ListEntries returns one offset/limit page of a thread's log in
	// append order, with the total count and a truncation flag.
	ListEntries(ctx context.Context, threadID int64, offset, limit int) (*thread.EntryPage, error)

	// LoadDefaults reads the durable default run configuration.
	LoadDefaults(ctx context.Context) (*turn.RunConfig, error)
	SaveDefaults(ctx context.Context, cfg *turn.RunConfig) error
}
