// Package agentproc provides the shared process plumbing for agent
// runner adapters: spawning the external CLI, scanning its stdout line
// stream, and the SIGINT-then-SIGKILL stop sequence.
package agentproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxLineBytes bounds a single stdout line. Agent tools embed whole file
// diffs in one JSON line, so this is generous.
const maxLineBytes = 16 * 1024 * 1024

// Options configures one spawned agent process.
type Options struct {
	Bin     string
	Args    []string
	Env     map[string]string
	WorkDir string

	// StopGrace is how long Stop waits after SIGINT before SIGKILL.
	StopGrace time.Duration

	Logger *slog.Logger
}

// Process is one running agent CLI. Exactly one goroutine must consume
// Stream; Stop may be called from any goroutine.
type Process struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	grace  time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// Start spawns the process. The prompt and all tool flags travel in
// Args; stdin is closed immediately.
func Start(opts Options) (*Process, error) {
	if opts.Bin == "" {
		return nil, errors.New("agentproc: bin is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	grace := opts.StopGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}

	cmd := exec.Command(opts.Bin, opts.Args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdin = strings.NewReader("")

	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agentproc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agentproc: start %s: %w", opts.Bin, err)
	}
	log.Debug("agent process started", "bin", opts.Bin, "pid", cmd.Process.Pid, "dir", opts.WorkDir)

	return &Process{
		log:    log,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		grace:  grace,
		done:   make(chan struct{}),
	}, nil
}

// Stream invokes handle for every stdout line until the stream ends,
// then reaps the process. The returned error is the process exit error,
// with the stderr tail attached when there is one.
func (p *Process) Stream(handle func(line []byte)) error {
	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		handle(line)
	}
	scanErr := scanner.Err()

	waitErr := p.cmd.Wait()
	close(p.done)

	if waitErr != nil {
		if tail := p.stderr.String(); tail != "" {
			return fmt.Errorf("%w: %s", waitErr, tail)
		}
		return waitErr
	}
	if scanErr != nil {
		return fmt.Errorf("agentproc: read stdout: %w", scanErr)
	}
	return nil
}

// Stop requests cooperative termination with SIGINT and escalates to
// SIGKILL after the grace period (or when ctx expires first). It returns
// once the process has been reaped by Stream.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
			p.log.Debug("interrupt agent process", "pid", p.cmd.Process.Pid, "error", err)
		}
		select {
		case <-p.done:
			return
		case <-time.After(p.grace):
			p.log.Warn("agent process ignored interrupt, killing", "pid", p.cmd.Process.Pid)
		case <-ctx.Done():
			p.log.Warn("stop context expired, killing agent process", "pid", p.cmd.Process.Pid)
		}
		if err := p.cmd.Process.Kill(); err != nil {
			p.log.Debug("kill agent process", "pid", p.cmd.Process.Pid, "error", err)
		}
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("agentproc: process %d not reaped before deadline", p.cmd.Process.Pid)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, data...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(data), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
