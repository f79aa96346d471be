package testsupport

import (
	"context"
	"errors"
	"sync"

	"vodwatch/internal/procrun"
)

// FakeHandle is a controllable procrun.Handle.
type FakeHandle struct {
	mu          sync.Mutex
	pid         int
	done        chan struct{}
	exit        procrun.Exit
	interrupts  int
	kills       int
	exitOnInt   bool
	intExitCode int
}

// NewFakeHandle returns a running fake process.
func NewFakeHandle(pid int) *FakeHandle {
	return &FakeHandle{pid: pid, done: make(chan struct{})}
}

// ExitOnInterrupt makes the fake exit with code when interrupted.
func (f *FakeHandle) ExitOnInterrupt(code int) *FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitOnInt = true
	f.intExitCode = code
	return f
}

// Exit ends the fake process with code. Later calls are ignored.
func (f *FakeHandle) Exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitLocked(procrun.Exit{Code: code})
}

func (f *FakeHandle) exitLocked(exit procrun.Exit) {
	select {
	case <-f.done:
		return
	default:
	}
	f.exit = exit
	close(f.done)
}

func (f *FakeHandle) PID() int { return f.pid }

func (f *FakeHandle) Done() <-chan struct{} { return f.done }

func (f *FakeHandle) Wait() procrun.Exit {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exit
}

func (f *FakeHandle) Interrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	if f.exitOnInt {
		f.exitLocked(procrun.Exit{Code: f.intExitCode})
	}
	return nil
}

func (f *FakeHandle) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	f.exitLocked(procrun.Exit{Code: -1, Signaled: true})
	return nil
}

// Signals reports how many interrupts and kills the fake received.
func (f *FakeHandle) Signals() (interrupts, kills int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupts, f.kills
}

// FakeStarter records Start calls and hands out FakeHandles.
type FakeStarter struct {
	mu       sync.Mutex
	commands []procrun.Command
	handles  []*FakeHandle
	// Err, when set, fails every Start.
	Err error
	// OnStart, when set, runs for every successful Start with the new handle.
	OnStart func(cmd procrun.Command, h *FakeHandle)
	// ExitOnInterrupt configures spawned handles to exit with this code when interrupted; nil leaves them running.
	ExitOnInterrupt *int
}

// Start implements procrun.Starter.
func (s *FakeStarter) Start(ctx context.Context, cmd procrun.Command) (procrun.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return nil, err
	}
	h := NewFakeHandle(1000 + len(s.handles))
	if s.ExitOnInterrupt != nil {
		h.ExitOnInterrupt(*s.ExitOnInterrupt)
	}
	s.handles = append(s.handles, h)
	hook := s.OnStart
	s.mu.Unlock()
	if hook != nil {
		hook(cmd, h)
	}
	return h, nil
}

// Calls returns the number of Start invocations, including failed ones.
func (s *FakeStarter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands)
}

// Commands returns a copy of the recorded commands.
func (s *FakeStarter) Commands() []procrun.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]procrun.Command(nil), s.commands...)
}

// Handle returns the i-th spawned handle.
func (s *FakeStarter) Handle(i int) *FakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.handles) {
		return nil
	}
	return s.handles[i]
}

// ErrSpawn is a convenience spawn failure for tests.
var ErrSpawn = errors.New("spawn failed")
