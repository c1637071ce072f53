// Package pty multiplexes shell sessions over pseudo-terminals: one
// shell per (workspace, session id), a bounded ring of recent output
// replayed on attach, and fan-out to every observer.
package pty

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/AgentDeck/internal/config"
)

// ErrSessionLimit indicates the configured session cap is reached.
var ErrSessionLimit = errors.New("pty session limit reached")

// Manager owns all live PTY sessions, keyed by (workspace, session id).
type Manager struct {
	log         *slog.Logger
	shell       string
	ringBytes   int
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates the multiplexer from config. An empty shell falls
// back to $SHELL, then /bin/sh.
func NewManager(cfg config.PTY, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	shell := cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Manager{
		log:         log.With("component", "pty"),
		shell:       shell,
		ringBytes:   cfg.RingBytes,
		maxSessions: cfg.MaxPerUser,
		sessions:    make(map[string]*Session),
	}
}

func sessionKey(workspaceID int64, sessionID string) string {
	return fmt.Sprintf("%d/%s", workspaceID, sessionID)
}

// Session returns the live session for (workspaceID, sessionID),
// starting a shell in dir when none exists. An empty sessionID starts a
// fresh session under a new id.
func (m *Manager) Session(workspaceID int64, sessionID, dir string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if s, ok := m.sessions[sessionKey(workspaceID, sessionID)]; ok {
			return s, nil
		}
	} else {
		sessionID = uuid.NewString()
	}

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w: %d active", ErrSessionLimit, len(m.sessions))
	}

	s, err := startSession(sessionID, workspaceID, m.shell, dir, m.ringBytes, m.log)
	if err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	key := sessionKey(workspaceID, sessionID)
	m.sessions[key] = s
	m.log.Info("pty session started", "workspace_id", workspaceID, "session", sessionID, "shell", m.shell)

	// Reap the slot once the shell exits.
	go func() {
		<-s.Done()
		m.mu.Lock()
		if m.sessions[key] == s {
			delete(m.sessions, key)
		}
		m.mu.Unlock()
	}()

	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
