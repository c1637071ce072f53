// Package mcp exposes a read-only Model Context Protocol surface so
// automation clients can inspect workspaces, threads, entry logs and
// turn status without holding a WebSocket connection. It never submits
// intents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/engine"
)

// ServerConfig holds the MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// SnapshotReader serves the live state.
type SnapshotReader interface {
	Snapshot(ctx context.Context) (engine.Snapshot, error)
}

// EntryReader serves entry log pages.
type EntryReader interface {
	Entries(ctx context.Context, threadID int64, offset, limit int) (*thread.EntryPage, error)
}

// TurnReader serves derived per-thread turn status.
type TurnReader interface {
	TurnStatus(ctx context.Context, threadID int64) (*engine.ThreadView, error)
}

// ServerDeps holds the readers the tools are built on. A nil reader
// degrades the corresponding tools to error results instead of failing
// server construction.
type ServerDeps struct {
	Snapshots SnapshotReader
	Entries   EntryReader
	Turns     TurnReader
}

// Server wraps the mcp-go server plus its HTTP transport.
type Server struct {
	log  *slog.Logger
	cfg  ServerConfig
	deps ServerDeps

	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
	tools      map[string]mcpserver.ServerTool
}

// NewServer creates the MCP server with all tools and resources
// registered.
func NewServer(cfg ServerConfig, deps ServerDeps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:   log.With("component", "mcp"),
		cfg:   cfg,
		deps:  deps,
		tools: make(map[string]mcpserver.ServerTool),
	}
	s.mcpServer = mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tools by name.
func (s *Server) Tools() map[string]mcpserver.ServerTool {
	return s.tools
}

// Start serves MCP over streamable HTTP on the configured address. An
// empty address disables the listener; the server is then only usable
// in-process (tests, embedding).
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}

	stream := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: AuthMiddleware(s.cfg.APIKey, stream),
	}

	go func() {
		s.log.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) addTool(tool mcpserver.ServerTool) {
	s.tools[tool.Tool.Name] = tool
	s.mcpServer.AddTools(tool)
}
