package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	admcp "github.com/Strob0t/AgentDeck/internal/adapter/mcp"
	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
	"github.com/Strob0t/AgentDeck/internal/engine"
)

// --- Mocks ---

type mockSnapshots struct {
	snap engine.Snapshot
	err  error
}

func (m *mockSnapshots) Snapshot(context.Context) (engine.Snapshot, error) {
	return m.snap, m.err
}

type mockEntries struct {
	page *thread.EntryPage
	err  error
}

func (m *mockEntries) Entries(context.Context, int64, int, int) (*thread.EntryPage, error) {
	return m.page, m.err
}

type mockTurns struct {
	views map[int64]*engine.ThreadView
}

func (m *mockTurns) TurnStatus(_ context.Context, threadID int64) (*engine.ThreadView, error) {
	if v, ok := m.views[threadID]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func callTool(t *testing.T, s *admcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.Tools()[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

// --- Tests ---

func TestNewServer(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, admcp.ServerDeps{}, nil)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
	if len(s.Tools()) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(s.Tools()))
	}
	for _, name := range []string{"list_workspaces", "list_threads", "get_thread_entries", "get_turn_status"} {
		if _, ok := s.Tools()[name]; !ok {
			t.Errorf("expected tool %q registered", name)
		}
	}
}

func TestServerStartStopWithoutAddr(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, admcp.ServerDeps{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHandleListWorkspaces(t *testing.T) {
	deps := admcp.ServerDeps{
		Snapshots: &mockSnapshots{snap: engine.Snapshot{
			Projects:   []workspace.Project{{ID: 1, Name: "Alpha"}},
			Workspaces: []workspace.Workspace{{ID: 2, ProjectID: 1, Name: "main", Path: "/w/alpha"}},
		}},
	}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps, nil)

	var got struct {
		Projects   []workspace.Project   `json:"projects"`
		Workspaces []workspace.Workspace `json:"workspaces"`
	}
	text := resultText(t, callTool(t, s, "list_workspaces", nil))
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Projects) != 1 || len(got.Workspaces) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleListThreads(t *testing.T) {
	deps := admcp.ServerDeps{
		Snapshots: &mockSnapshots{snap: engine.Snapshot{
			Threads: []engine.ThreadView{
				{Thread: thread.Thread{ID: 1, Title: "one"}, Status: turn.StatusIdle},
				{Thread: thread.Thread{ID: 2, Title: "two"}, Status: turn.StatusRunning},
			},
		}},
	}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps, nil)

	var views []engine.ThreadView
	text := resultText(t, callTool(t, s, "list_threads", nil))
	if err := json.Unmarshal([]byte(text), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 2 || views[1].Status != turn.StatusRunning {
		t.Fatalf("views = %+v", views)
	}
}

func TestHandleGetThreadEntries(t *testing.T) {
	deps := admcp.ServerDeps{
		Entries: &mockEntries{page: &thread.EntryPage{
			Entries: []thread.Entry{{ThreadID: 5, Seq: 1, Kind: thread.EntryUser}},
			Total:   1,
		}},
	}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps, nil)

	var page thread.EntryPage
	text := resultText(t, callTool(t, s, "get_thread_entries", map[string]any{"thread_id": float64(5)}))
	if err := json.Unmarshal([]byte(text), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestHandleGetThreadEntriesMissingArg(t *testing.T) {
	deps := admcp.ServerDeps{Entries: &mockEntries{page: &thread.EntryPage{}}}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps, nil)

	result := callTool(t, s, "get_thread_entries", nil)
	if !result.IsError {
		t.Fatal("expected error result for missing thread_id")
	}
}

func TestHandleGetTurnStatus(t *testing.T) {
	deps := admcp.ServerDeps{
		Turns: &mockTurns{views: map[int64]*engine.ThreadView{
			7: {Thread: thread.Thread{ID: 7}, Status: turn.StatusPaused},
		}},
	}
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps, nil)

	var view engine.ThreadView
	text := resultText(t, callTool(t, s, "get_turn_status", map[string]any{"thread_id": float64(7)}))
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Status != turn.StatusPaused {
		t.Fatalf("status = %q", view.Status)
	}

	if result := callTool(t, s, "get_turn_status", map[string]any{"thread_id": float64(99)}); !result.IsError {
		t.Fatal("expected error result for unknown thread")
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := admcp.NewServer(admcp.ServerConfig{Name: "test", Version: "0.1.0"}, admcp.ServerDeps{}, nil)

	for _, name := range []string{"list_workspaces", "list_threads", "get_thread_entries", "get_turn_status"} {
		if result := callTool(t, s, name, map[string]any{"thread_id": float64(1)}); !result.IsError {
			t.Errorf("tool %q: expected error result with nil deps", name)
		}
	}
}
