// Package codex implements the agentrunner.Runner contract for the
// Codex CLI, consuming its `exec --json` event stream.
package codex

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/AgentDeck/internal/adapter/agentproc"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
)

const runnerName = "codex"

// Options configures the Codex runner.
type Options struct {
	// Bin is the CLI binary, "codex" when empty.
	Bin string
	// ExtraArgs are prepended tool flags from configuration.
	ExtraArgs []string
	Env       map[string]string
	StopGrace time.Duration
	Logger    *slog.Logger
}

// Runner spawns one Codex process per turn.
type Runner struct {
	opts Options
	log  *slog.Logger
}

var _ agentrunner.Runner = (*Runner)(nil)

// New creates a Codex runner.
func New(opts Options) *Runner {
	if opts.Bin == "" {
		opts.Bin = "codex"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{opts: opts, log: log.With("runner", runnerName)}
}

// Register registers the Codex runner factory.
func Register(opts Options) {
	agentrunner.Register(runnerName, func(_ map[string]string) (agentrunner.Runner, error) {
		return New(opts), nil
	})
}

// Name returns "codex".
func (r *Runner) Name() string { return runnerName }

// Capabilities returns what Codex supports.
func (r *Runner) Capabilities() agentrunner.Capabilities {
	return agentrunner.Capabilities{Resume: true, Model: true, Effort: true}
}

// Start spawns `codex exec --json`, resuming the prior session when the
// thread carries a continuity token.
func (r *Runner) Start(_ context.Context, spec agentrunner.StartSpec) (agentrunner.Invocation, error) {
	args := append([]string(nil), r.opts.ExtraArgs...)
	args = append(args, "exec", "--json", "--skip-git-repo-check")
	if spec.Config.Model != "" {
		args = append(args, "--model", spec.Config.Model)
	}
	if spec.Config.Effort != "" {
		args = append(args, "-c", "model_reasoning_effort="+spec.Config.Effort)
	}
	if spec.SessionID != "" {
		args = append(args, "resume", spec.SessionID)
	}
	args = append(args, spec.Prompt)

	proc, err := agentproc.Start(agentproc.Options{
		Bin:       r.opts.Bin,
		Args:      args,
		Env:       r.opts.Env,
		WorkDir:   spec.WorkDir,
		StopGrace: r.opts.StopGrace,
		Logger:    r.log,
	})
	if err != nil {
		return nil, err
	}

	run := agentproc.NewRun(proc)
	p := newParser(run.Emitter, r.log.With("thread_id", spec.ThreadID, "invocation", spec.Invocation))
	go run.Pump(p.handleLine)
	return run, nil
}
