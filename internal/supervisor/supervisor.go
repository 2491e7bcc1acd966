// Package supervisor runs the application under development as a child
// process and restarts it on demand.
//
// At most one child is alive at a time: Restart kills the current child and
// waits for it to exit before the next one is spawned. Exits caused by
// Restart or Stop are expected and never reported; any other exit is
// delivered on the Exits channel.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// LaunchError reports a main file that does not exist at launch time.
type LaunchError struct {
	Main string
	Err  error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("main file not found: %s", e.Main)
}

// Unwrap provides compatibility for errors.Is and errors.As.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Command is what the supervisor runs: Executable with Main as its first
// argument followed by Args.
type Command struct {
	Executable string
	Main       string
	Args       []string
	Env        []string
	Dir        string
}

// Exit is an unexpected child exit.
type Exit struct {
	Pid  int
	Code int
	Err  error
}

type child struct {
	proc     Process
	done     chan struct{}
	expected atomic.Bool
}

// Supervisor owns the single child process handle.
type Supervisor struct {
	starter Starter
	cmd     Command

	mu      sync.Mutex
	current *child
	starts  int
	exits   chan Exit
}

// New creates a Supervisor for cmd.
func New(starter Starter, cmd Command) *Supervisor {
	return &Supervisor{
		starter: starter,
		cmd:     cmd,
		exits:   make(chan Exit, 1),
	}
}

// Exits delivers unexpected child exits.
func (s *Supervisor) Exits() <-chan Exit {
	return s.exits
}

// Starts returns how many children have been spawned.
func (s *Supervisor) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Restart stops the current child, if any, and spawns a new one. The main
// file is checked before anything is killed.
func (s *Supervisor) Restart(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if _, err := os.Stat(s.cmd.Main); err != nil {
		return &LaunchError{Main: s.cmd.Main, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	logger.Info("Run main file.", "main", s.cmd.Main)
	proc, err := s.starter.Start(ctx, Spec{
		Path:   s.cmd.Executable,
		Args:   append([]string{s.cmd.Main}, s.cmd.Args...),
		Env:    s.cmd.Env,
		Dir:    s.cmd.Dir,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return err
	}
	s.starts++

	c := &child{proc: proc, done: make(chan struct{})}
	s.current = c
	go s.watch(logger, c)
	return nil
}

// Stop kills the current child and waits for it to exit. The exit is not
// reported on Exits.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	c := s.current
	if c == nil {
		return
	}
	s.current = nil
	c.expected.Store(true)
	_ = c.proc.Kill()
	<-c.done
}

func (s *Supervisor) watch(logger *slog.Logger, c *child) {
	err := c.proc.Wait()
	close(c.done)
	if c.expected.Load() {
		return
	}

	exit := Exit{Pid: c.proc.Pid(), Code: exitCode(err), Err: err}
	logger.Warn("Main process exit.", "pid", exit.Pid, "code", exit.Code)
	select {
	case s.exits <- exit:
	default:
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
