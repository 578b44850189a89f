// Package jobs contains the concrete Job implementations the daemon runs.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// outputCap bounds how much combined output is kept for error reporting.
const outputCap = 8 * 1024

// CommandJob runs an external command. Cancellation is cooperative from the
// scheduler's point of view and hard for the child: when the context is
// cancelled the process group gets killed and Run returns.
type CommandJob struct {
	id       string
	priority int
	argv     []string
	timeout  time.Duration
}

func NewCommand(id string, priority int, argv []string, timeout time.Duration) (*CommandJob, error) {
	if id == "" {
		return nil, errors.New("command job needs an id")
	}
	if len(argv) == 0 {
		return nil, errors.New("command job needs an argv")
	}
	return &CommandJob{id: id, priority: priority, argv: argv, timeout: timeout}, nil
}

func (j *CommandJob) ID() string    { return j.id }
func (j *CommandJob) Priority() int { return j.priority }

func (j *CommandJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, j.argv[0], j.argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = newCapWriter(&out, outputCap)
	cmd.Stderr = cmd.Stdout
	// Give the child a moment to exit after the kill signal before Wait
	// gives up on its pipes.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Interrupted or timed out; the context error is the real story.
		return ctx.Err()
	}
	msg := bytes.TrimSpace(out.Bytes())
	if len(msg) > 0 {
		return fmt.Errorf("%s: %w: %s", j.argv[0], err, msg)
	}
	return fmt.Errorf("%s: %w", j.argv[0], err)
}

// capWriter keeps the first limit bytes and discards the rest.
type capWriter struct {
	dst   *bytes.Buffer
	limit int
}

func newCapWriter(dst *bytes.Buffer, limit int) *capWriter {
	return &capWriter{dst: dst, limit: limit}
}

func (w *capWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.dst.Len(); room > 0 {
		if len(p) > room {
			w.dst.Write(p[:room])
		} else {
			w.dst.Write(p)
		}
	}
	return len(p), nil
}
