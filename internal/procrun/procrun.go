package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Command describes a single external tool invocation.
type Command struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Binary)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Result captures the outcome of a bounded run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Success reports whether the process exited cleanly within its timeout.
func (r Result) Success() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Executor runs bounded commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Starter spawns long-running commands.
type Starter interface {
	Start(ctx context.Context, cmd Command) (Handle, error)
}

// Runner is the production Executor and Starter.
type Runner struct {
	// WaitDelay bounds how long Run waits for output pipes after the child
	// has been killed.
	WaitDelay time.Duration
}

// New returns a Runner with default settings.
func New() *Runner {
	return &Runner{WaitDelay: 2 * time.Second}
}

// Run executes cmd, waiting for it to exit or for cmd.Timeout to elapse.
// The returned error is non-nil only when the process could not be spawned
// or ctx was cancelled by the caller.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Binary) == "" {
		return Result{}, errors.New("procrun: binary required")
	}
	runCtx := ctx
	cancel := func() {}
	if cmd.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	}
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return signalGroup(c.Process.Pid, unix.SIGKILL)
	}
	c.WaitDelay = r.waitDelay()
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	started := time.Now()
	if err := c.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", cmd.Binary, err)
	}
	waitErr := c.Wait()
	result := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		return result, nil
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return result, fmt.Errorf("wait %s: %w", cmd.Binary, waitErr)
	}
	return result, nil
}

func (r *Runner) waitDelay() time.Duration {
	if r == nil || r.WaitDelay <= 0 {
		return 2 * time.Second
	}
	return r.WaitDelay
}

func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
