// Package lifecycle collects cleanup work that must run when the tool exits,
// whether the run succeeded or failed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/omnibuild/internal/ctxlog"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Hooks is an ordered list of shutdown callbacks. The zero value is ready to
// use.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
}

// OnShutdown registers fn. Hooks run in reverse registration order.
func (h *Hooks) OnShutdown(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Shutdown runs and removes every registered hook, so a second call does
// nothing. All hooks run even if some fail; their errors are joined.
func (h *Hooks) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		logger.Debug("Running shutdown hook.", "hook", hooks[i].name)
		if err := hooks[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
