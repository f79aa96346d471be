package procrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Exit describes how a started process ended.
type Exit struct {
	Code     int
	Signaled bool
	Err      error
}

// Handle controls a running child process.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	Wait() Exit
	Interrupt() error
	Kill() error
}

// Process is the Handle returned by Runner.Start.
type Process struct {
	cmd    *exec.Cmd
	done   chan struct{}
	exit   Exit
	stderr *tailBuffer
}

// Start spawns cmd in its own process group. The context only bounds the
// spawn; the child keeps running until it exits or is stopped via its Handle.
func (r *Runner) Start(ctx context.Context, cmd Command) (Handle, error) {
	if strings.TrimSpace(cmd.Binary) == "" {
		return nil, errors.New("procrun: binary required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stderr := newTailBuffer(8 << 10)
	c.Stdout = io.Discard
	c.Stderr = stderr
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Binary, err)
	}

	p := &Process{cmd: c, done: make(chan struct{}), stderr: stderr}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	exit := Exit{Code: -1}
	if state := p.cmd.ProcessState; state != nil {
		exit.Code = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			exit.Signaled = true
		}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		exit.Err = err
	}
	p.exit = exit
	close(p.done)
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process exits and reports how it ended.
func (p *Process) Wait() Exit {
	<-p.done
	return p.exit
}

// Interrupt delivers SIGINT to the process group.
func (p *Process) Interrupt() error {
	if p.exited() {
		return nil
	}
	return signalGroup(p.PID(), unix.SIGINT)
}

// Kill delivers SIGKILL to the process group.
func (p *Process) Kill() error {
	if p.exited() {
		return nil
	}
	return signalGroup(p.PID(), unix.SIGKILL)
}

// StderrTail returns the last few kilobytes the process wrote to stderr.
func (p *Process) StderrTail() string {
	return p.stderr.String()
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Shutdown stops h in two phases: an interrupt, then a kill if the process
// is still running after grace. It blocks until the process has exited and
// reports whether the kill was needed.
func Shutdown(h Handle, grace time.Duration) (escalated bool) {
	select {
	case <-h.Done():
		return false
	default:
	}
	_ = h.Interrupt()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.Done():
		return false
	case <-timer.C:
	}
	_ = h.Kill()
	<-h.Done()
	return true
}

// StderrTail returns the captured stderr tail when h exposes one.
func StderrTail(h Handle) string {
	if t, ok := h.(interface{ StderrTail() string }); ok {
		return strings.TrimSpace(t.StderrTail())
	}
	return ""
}

type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
