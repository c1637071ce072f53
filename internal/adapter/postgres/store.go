package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
	"github.com/Strob0t/AgentDeck/internal/port/database"
)

// Store implements database.Store using PostgreSQL. Ids are assigned by
// the engine, never by the database; inserts carry them explicitly.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Projects ---

func (s *Store) LoadProjects(ctx context.Context) ([]workspace.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, repo_url, archived, created_at, updated_at
		 FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	defer rows.Close()

	var projects []workspace.Project
	for rows.Next() {
		var p workspace.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RepoURL, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p *workspace.Project) (*workspace.Project, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, repo_url, archived, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.RepoURL, p.Archived, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, conflictWrap(err, "create project %d", p.ID)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *workspace.Project) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET name = $2, repo_url = $3, archived = $4, updated_at = $5
		 WHERE id = $1`,
		p.ID, p.Name, p.RepoURL, p.Archived, p.UpdatedAt)
	return execExpectOne(tag, err, "update project %d", p.ID)
}

// --- Workspaces ---

func (s *Store) LoadWorkspaces(ctx context.Context) ([]workspace.Workspace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, path, archived, created_at, updated_at
		 FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []workspace.Workspace
	for rows.Next() {
		var w workspace.Workspace
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Name, &w.Path, &w.Archived, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

func (s *Store) CreateWorkspace(ctx context.Context, w *workspace.Workspace) (*workspace.Workspace, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspaces (id, project_id, name, path, archived, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.ProjectID, w.Name, w.Path, w.Archived, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return nil, conflictWrap(err, "create workspace %d", w.ID)
	}
	return w, nil
}

func (s *Store) UpdateWorkspace(ctx context.Context, w *workspace.Workspace) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workspaces SET name = $2, path = $3, archived = $4, updated_at = $5
		 WHERE id = $1`,
		w.ID, w.Name, w.Path, w.Archived, w.UpdatedAt)
	return execExpectOne(tag, err, "update workspace %d", w.ID)
}

// --- Threads ---

func (s *Store) LoadThreads(ctx context.Context) ([]thread.Thread, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, title, agent_session_id, config, archived,
		        tab_position, entry_count, created_at, updated_at
		 FROM threads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load threads: %w", err)
	}
	defer rows.Close()

	var threads []thread.Thread
	for rows.Next() {
		var t thread.Thread
		var cfg []byte
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.AgentSessionID, &cfg,
			&t.Archived, &t.TabPosition, &t.EntryCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		if len(cfg) > 0 {
			if err := json.Unmarshal(cfg, &t.Config); err != nil {
				return nil, fmt.Errorf("unmarshal thread %d config: %w", t.ID, err)
			}
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *Store) CreateThread(ctx context.Context, t *thread.Thread) (*thread.Thread, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal thread config: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO threads (id, workspace_id, title, agent_session_id, config, archived,
		                      tab_position, entry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.WorkspaceID, t.Title, t.AgentSessionID, cfg, t.Archived,
		t.TabPosition, t.EntryCount, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, conflictWrap(err, "create thread %d", t.ID)
	}
	return t, nil
}

func (s *Store) UpdateThread(ctx context.Context, t *thread.Thread) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal thread config: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE threads SET title = $2, agent_session_id = $3, config = $4, archived = $5,
		        tab_position = $6, entry_count = $7, updated_at = $8
		 WHERE id = $1`,
		t.ID, t.Title, t.AgentSessionID, cfg, t.Archived, t.TabPosition, t.EntryCount, t.UpdatedAt)
	return execExpectOne(tag, err, "update thread %d", t.ID)
}
