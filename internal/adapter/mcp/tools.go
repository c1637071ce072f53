package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers the read-only tool set.
func (s *Server) registerTools() {
	s.addTool(s.listWorkspacesTool())
	s.addTool(s.listThreadsTool())
	s.addTool(s.getThreadEntriesTool())
	s.addTool(s.getTurnStatusTool())
}

func toolResultJSON(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err)
	}
	return mcplib.NewToolResultText(string(data))
}

// threadIDArg extracts the required thread_id tool argument.
func threadIDArg(req mcplib.CallToolRequest) (int64, bool) {
	id, ok := req.GetArguments()["thread_id"].(float64)
	if !ok || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

func intArg(req mcplib.CallToolRequest, name string) int {
	v, _ := req.GetArguments()[name].(float64)
	return int(v)
}

func (s *Server) listWorkspacesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_workspaces",
		mcplib.WithDescription("List all projects and their workspaces"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListWorkspaces}
}

func (s *Server) handleListWorkspaces(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return mcplib.NewToolResultError("snapshot reader not configured"), nil
	}
	snap, err := s.deps.Snapshots.Snapshot(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read snapshot", err), nil
	}
	return toolResultJSON(map[string]any{
		"projects":   snap.Projects,
		"workspaces": snap.Workspaces,
	}), nil
}

func (s *Server) listThreadsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_threads",
		mcplib.WithDescription("List all threads with their derived turn status and queue"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListThreads}
}

func (s *Server) handleListThreads(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return mcplib.NewToolResultError("snapshot reader not configured"), nil
	}
	snap, err := s.deps.Snapshots.Snapshot(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read snapshot", err), nil
	}
	return toolResultJSON(snap.Threads), nil
}

func (s *Server) getThreadEntriesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_thread_entries",
		mcplib.WithDescription("Read one page of a thread's append-only entry log"),
		mcplib.WithNumber("thread_id",
			mcplib.Required(),
			mcplib.Description("The thread id"),
		),
		mcplib.WithNumber("offset",
			mcplib.Description("Entries to skip from the start of the log"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum entries to return (default 100, max 500)"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetThreadEntries}
}

func (s *Server) handleGetThreadEntries(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Entries == nil {
		return mcplib.NewToolResultError("entry reader not configured"), nil
	}
	threadID, ok := threadIDArg(req)
	if !ok {
		return mcplib.NewToolResultError("thread_id is required"), nil
	}
	page, err := s.deps.Entries.Entries(ctx, threadID, intArg(req, "offset"), intArg(req, "limit"))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read entries", err), nil
	}
	return toolResultJSON(page), nil
}

func (s *Server) getTurnStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_turn_status",
		mcplib.WithDescription("Get the derived turn status of one thread: running, idle, awaiting or paused, plus queue and live items"),
		mcplib.WithNumber("thread_id",
			mcplib.Required(),
			mcplib.Description("The thread id"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetTurnStatus}
}

func (s *Server) handleGetTurnStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Turns == nil {
		return mcplib.NewToolResultError("turn reader not configured"), nil
	}
	threadID, ok := threadIDArg(req)
	if !ok {
		return mcplib.NewToolResultError("thread_id is required"), nil
	}
	view, err := s.deps.Turns.TurnStatus(ctx, threadID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read turn status", err), nil
	}
	return toolResultJSON(view), nil
}
