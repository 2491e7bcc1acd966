package supervisor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Spec describes one child process.
type Spec struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started child process.
type Process interface {
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
	Kill() error
	Pid() int
}

// Starter starts child processes.
type Starter interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}

// ExecStarter starts real OS processes.
type ExecStarter struct{}

// Start implements Starter. The process is not bound to ctx; it lives until
// it exits or is killed.
func (ExecStarter) Start(_ context.Context, spec Spec) (Process, error) {
	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("locating %s: %w", spec.Path, err)
	}
	cmd := exec.Command(path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}
	return execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error { return p.cmd.Wait() }
func (p execProcess) Kill() error { return p.cmd.Process.Kill() }
func (p execProcess) Pid() int    { return p.cmd.Process.Pid }
