// Package agentrunner defines the agent runner port: the normalization
// contract every external coding-agent CLI adapter must satisfy.
package agentrunner

import (
	"context"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
)

// Capabilities declares which options an agent runner supports.
type Capabilities struct {
	Resume bool `json:"resume"` // can continue a prior session by token
	Effort bool `json:"effort"` // honors a reasoning-effort setting
	Model  bool `json:"model"`  // honors a model override
}

// StartSpec describes one runner invocation.
type StartSpec struct {
	WorkspaceID int64
	ThreadID    int64

	// Invocation is the engine-assigned sequence number. Every event the
	// invocation emits is attributed to this number so completions of a
	// superseded turn can be discarded.
	Invocation uint64

	Prompt  string
	WorkDir string

	// SessionID is the tool's continuity token from a prior turn of the
	// same thread; empty on first use.
	SessionID string

	Config turn.RunConfig
}

// Invocation is one in-flight execution of an external agent tool.
//
// Events yields an ordered stream of canonical events and is closed
// after exactly one terminal marker has been emitted. This holds for
// success, failure and cancellation alike. Stop requests cooperative
// termination; callers must keep draining Events until the terminal
// marker arrives rather than treat Stop as the end of the turn.
type Invocation interface {
	Events() <-chan item.Event
	Stop(ctx context.Context) error
}

// Runner is the port interface wrapping exactly one external agent tool.
// Adding a tool requires only a new implementation of this contract plus
// a registry entry; the reducer, turn state machine and event bus are
// untouched.
type Runner interface {
	// Name returns the unique runner identifier (e.g. "claude", "codex").
	Name() string

	// Capabilities returns what this runner supports.
	Capabilities() Capabilities

	// Start spawns the underlying tool and begins translating its raw
	// stream. Malformed or unrecognized stream content is skipped, never
	// fatal; a tool that fails to spawn is reported via the returned
	// error and produces no invocation.
	Start(ctx context.Context, spec StartSpec) (Invocation, error)
}
