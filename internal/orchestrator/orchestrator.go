package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/omnibuild/internal/bundler"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/env"
	"github.com/vk/omnibuild/internal/lifecycle"
	"github.com/vk/omnibuild/internal/npm"
	"github.com/vk/omnibuild/internal/packager"
	"github.com/vk/omnibuild/internal/readiness"
	"github.com/vk/omnibuild/internal/resolve"
	"github.com/vk/omnibuild/internal/stager"
	"github.com/vk/omnibuild/internal/supervisor"
)

// Waiter blocks until renderer URLs are reachable.
type Waiter interface {
	Wait(ctx context.Context, urls []string, timeout time.Duration) error
}

// RuntimeProber locates the desktop runtime of the project in cwd.
type RuntimeProber func(cwd string) (*npm.DesktopRuntime, error)

// Options are the collaborators of an Orchestrator. Zero fields get the
// production implementation.
type Options struct {
	Bundler  bundler.Bundler
	Packager packager.Packager
	Waiter   Waiter
	Starter  supervisor.Starter
	Hooks    *lifecycle.Hooks
	Runtime  RuntimeProber
}

// Orchestrator drives one resolved configuration.
type Orchestrator struct {
	cfg      *resolve.ResolvedConfig
	bundler  bundler.Bundler
	packager packager.Packager
	waiter   Waiter
	starter  supervisor.Starter
	hooks    *lifecycle.Hooks
	runtime  RuntimeProber

	mu       sync.Mutex
	state    State
	restarts atomic.Int64

	// fatal carries errors raised inside bundler callbacks that must end Dev.
	fatal chan error
}

// New creates an Orchestrator for cfg.
func New(cfg *resolve.ResolvedConfig, opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		bundler:  opts.Bundler,
		packager: opts.Packager,
		waiter:   opts.Waiter,
		starter:  opts.Starter,
		hooks:    opts.Hooks,
		runtime:  opts.Runtime,
		state:    StateIdle,
		fatal:    make(chan error, 1),
	}
	if o.bundler == nil {
		o.bundler = bundler.NewESBuild()
	}
	if o.packager == nil {
		o.packager = packager.NewElectronBuilder()
	}
	if o.waiter == nil {
		o.waiter = readiness.New()
	}
	if o.starter == nil {
		o.starter = supervisor.ExecStarter{}
	}
	if o.hooks == nil {
		o.hooks = &lifecycle.Hooks{}
	}
	if o.runtime == nil {
		o.runtime = npm.ProbeDesktopRuntime
	}
	return o
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Restarts returns how many successful rebuilds were observed after the
// initial builds.
func (o *Orchestrator) Restarts() int {
	return int(o.restarts.Load())
}

func (o *Orchestrator) setState(ctx context.Context, s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if prev != s {
		ctxlog.FromContext(ctx).Debug("State changed.", "from", prev, "to", s)
	}
}

// Build runs the production build: every task once in order, the after
// build hook, then renderer staging and packaging for desktop applications.
func (o *Orchestrator) Build(ctx context.Context) error {
	cfg := o.cfg
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	defer o.setState(ctx, StateExited)

	logger.Info("Mode: production.", "type", cfg.Type)

	if cfg.IsElectron() {
		if _, err := o.runtime(cfg.Cwd); err != nil {
			return err
		}
	}

	vars, err := env.Compose(cfg, env.Production)
	if err != nil {
		return err
	}

	o.setState(ctx, StatePrebuilding)
	watch := false
	for _, task := range cfg.Tasks {
		opts := withEnv(task, vars)
		opts.Watch = &watch
		opts.OnSuccess = nil
		if err := o.bundler.Build(ctx, opts, true); err != nil {
			return err
		}
	}
	logger.Info("Prebuild succeeded.", "duration", time.Since(start))

	if err := cfg.AfterBuild.Run(ctx); err != nil {
		return err
	}

	if cfg.IsElectron() && !cfg.Packager.Disabled {
		o.setState(ctx, StatePackaging)
		if err := stager.Stage(ctx, cfg.Renderer); err != nil {
			return err
		}
		if err := o.packager.Package(ctx, cfg.Packager, cfg.Cwd); err != nil {
			return err
		}
		if err := cfg.Packager.AfterBuild.Run(ctx); err != nil {
			return err
		}
	}

	logger.Info("Build succeeded.", "duration", time.Since(start))
	return nil
}

// Dev runs the development loop. It returns when ctx is done, when the
// application exits on its own, or right after the prebuild in build-only
// mode when no task watches. A non-zero application exit is returned as
// *ChildExitError. A restart after a rebuild that fails to launch the
// application also ends the run with that error. The child is stopped by the
// shutdown hooks.
func (o *Orchestrator) Dev(ctx context.Context) error {
	cfg := o.cfg
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	logger.Info("Mode: development.", "type", cfg.Type, "debug", cfg.Debug.Enabled)

	vars, err := env.Compose(cfg, env.Development)
	if err != nil {
		return err
	}

	executable := "node"
	if cfg.IsElectron() {
		rt, err := o.runtime(cfg.Cwd)
		if err != nil {
			return err
		}
		executable = rt.Executable
	}

	sup := supervisor.New(o.starter, supervisor.Command{
		Executable: executable,
		Main:       cfg.Main,
		Args:       cfg.ProcessArgs(),
		Env:        env.Environ(os.Environ(), vars),
		Dir:        cfg.Cwd,
	})
	o.hooks.OnShutdown("main process", func(context.Context) error {
		sup.Stop()
		return nil
	})

	watching := false
	if cfg.RunOnly {
		logger.Info("Run only, prebuild will be skipped.")
	} else {
		o.setState(ctx, StatePrebuilding)
		for _, task := range cfg.Tasks {
			opts := o.devTask(ctx, task, vars, sup)
			watching = watching || opts.Watching()
			if err := o.bundler.Build(ctx, opts, true); err != nil {
				return err
			}
		}
		logger.Info("Prebuild succeeded.", "duration", time.Since(start))
	}

	if cfg.BuildOnly {
		o.setState(ctx, StateBuildOnly)
		logger.Info("Build only, application won't start.")
		if watching {
			select {
			case <-ctx.Done():
			case err := <-o.fatal:
				return err
			}
		}
		return nil
	}

	if cfg.IsElectron() && cfg.Renderer != nil && cfg.Renderer.WaitForRenderer {
		if urls := cfg.Renderer.WaitURLs(); len(urls) > 0 {
			if err := o.waiter.Wait(ctx, urls, cfg.Renderer.WaitTimeout); err != nil {
				return err
			}
		}
	}

	if err := sup.Restart(ctx); err != nil {
		return err
	}
	o.setState(ctx, StateRunning)

	select {
	case <-ctx.Done():
		return nil
	case err := <-o.fatal:
		o.setState(ctx, StateExited)
		return err
	case exit := <-sup.Exits():
		o.setState(ctx, StateExited)
		if exit.Code != 0 {
			return &ChildExitError{Pid: exit.Pid, Code: exit.Code}
		}
		return nil
	}
}

// devTask wraps the task's success callback so that the first success is
// swallowed and every later one restarts the application.
func (o *Orchestrator) devTask(ctx context.Context, task bundler.TaskOptions, vars map[string]string, sup *supervisor.Supervisor) bundler.TaskOptions {
	logger := ctxlog.FromContext(ctx).With("task", task.Name())
	opts := withEnv(task, vars)

	watch := opts.Watching()
	if !watch {
		logger.Info("Watch mode is disabled.")
	}
	if opts.OnSuccessCommand != "" {
		logger.Warn("onSuccess only supports a function, ignored.", "on_success", opts.OnSuccessCommand)
	}

	userHook := opts.OnSuccess
	var first atomic.Bool
	first.Store(true)

	opts.OnSuccess = func(ctx context.Context) error {
		if !watch {
			return nil
		}
		if userHook != nil {
			if err := userHook(ctx); err != nil {
				return err
			}
		}
		if first.CompareAndSwap(true, false) {
			return nil
		}

		o.restarts.Add(1)
		logger.Info("Rebuild succeeded.")
		if o.cfg.BuildOnly {
			return nil
		}

		o.setState(ctx, StateRestarting)
		if err := sup.Restart(ctx); err != nil {
			err = fmt.Errorf("restarting main process: %w", err)
			o.fail(err)
			return err
		}
		o.setState(ctx, StateRunning)
		return nil
	}
	return opts
}

// withEnv returns a copy of task whose environment is the task's own
// overlaid with vars.
func withEnv(task bundler.TaskOptions, vars map[string]string) bundler.TaskOptions {
	merged := make(map[string]string, len(task.Env)+len(vars))
	for k, v := range task.Env {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	task.Env = merged
	return task
}

// fail hands err to Dev, which returns it. Only the first error is kept.
func (o *Orchestrator) fail(err error) {
	select {
	case o.fatal <- err:
	default:
	}
}
