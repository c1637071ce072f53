package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers the snapshot mirror resource.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentdeck://snapshot",
			"State Snapshot",
			mcplib.WithResourceDescription("Full current state with its revision stamp"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleSnapshotResource,
	)
}

func (s *Server) handleSnapshotResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Snapshots == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"snapshot reader not configured"}`,
			},
		}, nil
	}
	snap, err := s.deps.Snapshots.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
