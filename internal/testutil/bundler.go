package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/omnibuild/internal/bundler"
)

// FakeBundler is a bundler.Bundler that builds nothing. Every Build call is
// recorded and counts as one successful initial build, so OnSuccess is
// called once before Build returns. Later rebuilds are simulated with
// Signal.
type FakeBundler struct {
	mu    sync.Mutex
	calls []bundler.TaskOptions

	// Errs maps a call index to the error that call returns.
	Errs map[int]error
	// BeforeSuccess runs inside Build before OnSuccess is called.
	BeforeSuccess func(opts bundler.TaskOptions)
}

// Build implements bundler.Bundler.
func (f *FakeBundler) Build(ctx context.Context, opts bundler.TaskOptions, _ bool) error {
	f.mu.Lock()
	index := len(f.calls)
	f.calls = append(f.calls, opts)
	err := f.Errs[index]
	hook := f.BeforeSuccess
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(opts)
	}
	if opts.OnSuccess != nil {
		return opts.OnSuccess(ctx)
	}
	return nil
}

// Calls returns the options of every Build call so far.
func (f *FakeBundler) Calls() []bundler.TaskOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bundler.TaskOptions(nil), f.calls...)
}

// Signal simulates a successful rebuild of the task built by call index.
func (f *FakeBundler) Signal(ctx context.Context, index int) error {
	f.mu.Lock()
	if index >= len(f.calls) {
		f.mu.Unlock()
		return fmt.Errorf("no build call %d", index)
	}
	opts := f.calls[index]
	f.mu.Unlock()

	if opts.OnSuccess == nil {
		return nil
	}
	return opts.OnSuccess(ctx)
}
