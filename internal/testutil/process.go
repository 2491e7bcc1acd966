package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/omnibuild/internal/supervisor"
)

// FakeStarter is a supervisor.Starter that records every start and kill in
// order and never runs a real process.
type FakeStarter struct {
	mu      sync.Mutex
	events  []string
	procs   []*FakeProcess
	Err     error
	started chan struct{}
}

// NewFakeStarter creates a FakeStarter.
func NewFakeStarter() *FakeStarter {
	return &FakeStarter{started: make(chan struct{}, 64)}
}

// Start implements supervisor.Starter.
func (f *FakeStarter) Start(_ context.Context, spec supervisor.Spec) (supervisor.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	p := &FakeProcess{
		pid:   len(f.procs) + 1,
		Spec:  spec,
		owner: f,
		exit:  make(chan error, 1),
	}
	f.procs = append(f.procs, p)
	f.events = append(f.events, fmt.Sprintf("start %d", p.pid))
	select {
	case f.started <- struct{}{}:
	default:
	}
	return p, nil
}

// Started signals once per started process. Signals beyond the channel's
// buffer are dropped when nobody drains it, so Start never blocks.
func (f *FakeStarter) Started() <-chan struct{} {
	return f.started
}

// Events returns the recorded "start N" and "kill N" events.
func (f *FakeStarter) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Processes returns every process started so far.
func (f *FakeStarter) Processes() []*FakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeProcess(nil), f.procs...)
}

func (f *FakeStarter) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// FakeProcess is a process started by FakeStarter.
type FakeProcess struct {
	Spec supervisor.Spec

	pid   int
	owner *FakeStarter
	once  sync.Once
	exit  chan error
}

// Wait implements supervisor.Process.
func (p *FakeProcess) Wait() error {
	return <-p.exit
}

// Kill implements supervisor.Process.
func (p *FakeProcess) Kill() error {
	p.owner.record(fmt.Sprintf("kill %d", p.pid))
	p.Exit(fmt.Errorf("signal: killed"))
	return nil
}

// Pid implements supervisor.Process.
func (p *FakeProcess) Pid() int {
	return p.pid
}

// Exit makes the process exit on its own with err as the result of Wait.
func (p *FakeProcess) Exit(err error) {
	p.once.Do(func() { p.exit <- err })
}
