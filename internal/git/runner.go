// Package git runs git CLI commands with a bound on concurrent processes.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Runner executes git commands. Readers serving concurrent analyses share
// one Runner so the process count stays bounded.
type Runner struct {
	slots *semaphore.Weighted
}

// NewRunner creates a Runner that allows at most limit concurrent processes.
func NewRunner(limit int) *Runner {
	if limit < 1 {
		limit = 1
	}
	return &Runner{slots: semaphore.NewWeighted(int64(limit))}
}

// ExitError is returned when git ran and exited non-zero.
type ExitError struct {
	Args   []string
	Stderr string
	Err    *exec.ExitError
}

func (e *ExitError) Error() string {
	msg := "git " + strings.Join(e.Args, " ") + ": " + e.Err.Error()
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Output runs git with args in dir and returns its stdout. It waits for a
// free slot first and returns ctx.Err() if ctx ends while waiting. A nil
// Runner does not limit concurrency.
func (r *Runner) Output(ctx context.Context, dir string, args ...string) (string, error) {
	var out string
	err := r.do(ctx, func() error {
		var err error
		out, err = output(ctx, dir, args)
		return err
	})
	return out, err
}

func (r *Runner) do(ctx context.Context, fn func() error) error {
	if r == nil || r.slots == nil {
		return fn()
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.slots.Release(1)
	return fn()
}

func output(ctx context.Context, dir string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: exitErr}
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}
