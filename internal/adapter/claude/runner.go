// Package claude implements the agentrunner.Runner contract for the
// Claude Code CLI, consuming its `--output-format stream-json` protocol.
package claude

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/AgentDeck/internal/adapter/agentproc"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
)

const runnerName = "claude"

// Options configures the Claude Code runner.
type Options struct {
	// Bin is the CLI binary, "claude" when empty.
	Bin string
	// ExtraArgs are prepended tool flags from configuration.
	ExtraArgs []string
	Env       map[string]string
	StopGrace time.Duration
	Logger    *slog.Logger
}

// Runner spawns one Claude Code process per turn.
type Runner struct {
	opts Options
	log  *slog.Logger
}

var _ agentrunner.Runner = (*Runner)(nil)

// New creates a Claude Code runner.
func New(opts Options) *Runner {
	if opts.Bin == "" {
		opts.Bin = "claude"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{opts: opts, log: log.With("runner", runnerName)}
}

// Register registers the Claude Code runner factory.
func Register(opts Options) {
	agentrunner.Register(runnerName, func(_ map[string]string) (agentrunner.Runner, error) {
		return New(opts), nil
	})
}

// Name returns "claude".
func (r *Runner) Name() string { return runnerName }

// Capabilities returns what Claude Code supports.
func (r *Runner) Capabilities() agentrunner.Capabilities {
	return agentrunner.Capabilities{Resume: true, Model: true}
}

// Start spawns the CLI in print mode with the stream-json output format.
func (r *Runner) Start(_ context.Context, spec agentrunner.StartSpec) (agentrunner.Invocation, error) {
	args := append([]string(nil), r.opts.ExtraArgs...)
	args = append(args, "-p", spec.Prompt, "--output-format", "stream-json", "--verbose")
	if spec.SessionID != "" {
		args = append(args, "--resume", spec.SessionID)
	}
	if spec.Config.Model != "" {
		args = append(args, "--model", spec.Config.Model)
	}
	if spec.Config.Mode != "" {
		args = append(args, "--permission-mode", spec.Config.Mode)
	}

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
