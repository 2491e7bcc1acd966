package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/omnibuild/internal/bundler"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/lifecycle"
	"github.com/vk/omnibuild/internal/npm"
	"github.com/vk/omnibuild/internal/resolve"
	"github.com/vk/omnibuild/internal/supervisor"
	"github.com/vk/omnibuild/internal/testutil"
)

type fakePackager struct {
	mu    sync.Mutex
	calls []resolve.Packager
	onRun func()
	err   error
}

func (p *fakePackager) Package(_ context.Context, cfg resolve.Packager, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cfg)
	if p.onRun != nil {
		p.onRun()
	}
	return p.err
}

type fakeWaiter struct {
	mu      sync.Mutex
	urls    []string
	timeout time.Duration
	err     error
}

func (w *fakeWaiter) Wait(_ context.Context, urls []string, timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = urls
	w.timeout = timeout
	return w.err
}

type harness struct {
	cfg      *resolve.ResolvedConfig
	bundler  *testutil.FakeBundler
	starter  *testutil.FakeStarter
	packager *fakePackager
	waiter   *fakeWaiter
	hooks    *lifecycle.Hooks
	orch     *Orchestrator
}

func newHarness(t *testing.T, cfg *resolve.ResolvedConfig) *harness {
	t.Helper()
	h := &harness{
		cfg:      cfg,
		bundler:  &testutil.FakeBundler{},
		starter:  testutil.NewFakeStarter(),
		packager: &fakePackager{},
		waiter:   &fakeWaiter{},
		hooks:    &lifecycle.Hooks{},
	}
	h.orch = New(cfg, Options{
		Bundler:  h.bundler,
		Packager: h.packager,
		Waiter:   h.waiter,
		Starter:  h.starter,
		Hooks:    h.hooks,
		Runtime: func(string) (*npm.DesktopRuntime, error) {
			return &npm.DesktopRuntime{Executable: "/fake/electron"}, nil
		},
	})
	t.Cleanup(func() { _ = h.hooks.Shutdown(context.Background()) })
	return h
}

// runDev starts Dev in the background and returns a function that cancels
// it and returns its result.
func (h *harness) runDev(t *testing.T) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Dev(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Dev did not return after cancellation")
			return nil
		}
	}
}

func waitStarted(t *testing.T, starter *testutil.FakeStarter) {
	t.Helper()
	select {
	case <-starter.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("no child process was started")
	}
}

func nodeConfig(t *testing.T) *resolve.ResolvedConfig {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{"dist/main.js": "console.log('hi')"})
	return &resolve.ResolvedConfig{
		Cwd:      dir,
		Type:     resolve.TypeNode,
		Main:     filepath.Join(dir, "dist", "main.js"),
		Args:     config.Args{Node: []string{"--trace-warnings"}, Electron: []string{"--trace-warnings"}},
		Tasks:    []bundler.TaskOptions{{Cwd: dir, Entry: []string{"src/main.ts"}, OutDir: "dist"}},
		Packager: resolve.Packager{Disabled: true},
	}
}

func falsePtr() *bool {
	f := false
	return &f
}

func TestDev_RestartsAfterEveryRebuild(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHarness(t, nodeConfig(t))
	var eventsAtInitialSuccess []string
	h.bundler.BeforeSuccess = func(bundler.TaskOptions) {
		eventsAtInitialSuccess = h.starter.Events()
	}

	// --- Act ---
	stop := h.runDev(t)
	waitStarted(t, h.starter)
	require.NoError(t, h.bundler.Signal(context.Background(), 0))
	require.NoError(t, h.bundler.Signal(context.Background(), 0))

	// --- Assert ---
	require.Empty(t, eventsAtInitialSuccess, "the initial build must not spawn anything")
	require.Equal(t, []string{"start 1", "kill 1", "start 2", "kill 2", "start 3"}, h.starter.Events())
	require.Equal(t, 2, h.orch.Restarts())
	require.Equal(t, StateRunning, h.orch.State())

	require.NoError(t, stop())
	require.NoError(t, h.hooks.Shutdown(context.Background()))
	require.Equal(t, "kill 3", h.starter.Events()[5], "shutdown must stop the last child")
}

func TestDev_ChildSpec(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	h := newHarness(t, cfg)

	// --- Act ---
	stop := h.runDev(t)
	waitStarted(t, h.starter)

	// --- Assert ---
	spec := h.starter.Processes()[0].Spec
	require.Equal(t, "node", spec.Path)
	require.Equal(t, []string{cfg.Main, "--trace-warnings"}, spec.Args)
	require.Equal(t, cfg.Cwd, spec.Dir)
	require.Contains(t, spec.Env, "OMNI_MODE=development")
	require.Contains(t, spec.Env, "OMNI_APP_TYPE=node")

	calls := h.bundler.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "development", calls[0].Env["NODE_ENV"])
	require.True(t, calls[0].Watching())

	require.NoError(t, stop())
}

func TestDev_BuildOnlyWithoutWatchReturns(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.BuildOnly = true
	cfg.Tasks[0].Watch = falsePtr()
	h := newHarness(t, cfg)

	// --- Act ---
	err := h.orch.Dev(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, h.bundler.Calls(), 1)
	require.Empty(t, h.starter.Events())
	require.Equal(t, StateBuildOnly, h.orch.State())
}

func TestDev_BuildOnlyKeepsWatching(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.BuildOnly = true
	h := newHarness(t, cfg)

	// --- Act ---
	stop := h.runDev(t)
	require.Eventually(t, func() bool { return h.orch.State() == StateBuildOnly }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, h.bundler.Signal(context.Background(), 0))

	// --- Assert ---
	require.NoError(t, stop())
	require.Equal(t, 1, h.orch.Restarts())
	require.Empty(t, h.starter.Events())
}

func TestDev_WatchDisabledNeverRestarts(t *testing.T) {
	t.Parallel()

	cfg := nodeConfig(t)
	cfg.Tasks[0].Watch = falsePtr()
	h := newHarness(t, cfg)

	stop := h.runDev(t)
	waitStarted(t, h.starter)
	require.NoError(t, h.bundler.Signal(context.Background(), 0))
	require.NoError(t, h.bundler.Signal(context.Background(), 0))

	require.Equal(t, []string{"start 1"}, h.starter.Events())
	require.Zero(t, h.orch.Restarts())
	require.NoError(t, stop())
}

func TestDev_UserOnSuccessRunsFirst(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	var calls int
	cfg.Tasks[0].OnSuccess = func(context.Context) error {
		calls++
		return nil
	}
	h := newHarness(t, cfg)

	// --- Act ---
	stop := h.runDev(t)
	waitStarted(t, h.starter)
	require.NoError(t, h.bundler.Signal(context.Background(), 0))

	// --- Assert ---
	require.Equal(t, 2, calls, "the user hook sees the initial build and the rebuild")
	require.NoError(t, stop())
}

func TestDev_RunOnlySkipsPrebuild(t *testing.T) {
	t.Parallel()

	cfg := nodeConfig(t)
	cfg.RunOnly = true
	h := newHarness(t, cfg)

	stop := h.runDev(t)
	waitStarted(t, h.starter)

	require.Empty(t, h.bundler.Calls())
	require.Equal(t, []string{"start 1"}, h.starter.Events())
	require.NoError(t, stop())
}

func TestDev_RunOnlyMissingMain(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.RunOnly = true
	require.NoError(t, os.Remove(cfg.Main))
	h := newHarness(t, cfg)

	// --- Act ---
	err := h.orch.Dev(context.Background())

	// --- Assert ---
	var launchErr *supervisor.LaunchError
	require.True(t, errors.As(err, &launchErr), "expected LaunchError, got %v", err)
	require.Empty(t, h.starter.Events())
}

func TestDev_RestartLaunchFailureEndsRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	h := newHarness(t, cfg)
	done := make(chan error, 1)
	go func() { done <- h.orch.Dev(context.Background()) }()
	waitStarted(t, h.starter)
	require.NoError(t, os.Remove(cfg.Main))

	// --- Act ---
	signalErr := h.bundler.Signal(context.Background(), 0)

	// --- Assert ---
	require.Error(t, signalErr)
	select {
	case err := <-done:
		var launchErr *supervisor.LaunchError
		require.True(t, errors.As(err, &launchErr), "expected LaunchError, got %v", err)
		require.Equal(t, cfg.Main, launchErr.Main)
	case <-time.After(5 * time.Second):
		t.Fatal("Dev did not return after the restart failed to launch")
	}
	require.Equal(t, []string{"start 1"}, h.starter.Events(), "the running child is left to the shutdown hooks")
	require.Equal(t, StateExited, h.orch.State())
}

func TestDev_BuildOnlyRestartFailureIsIgnored(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.BuildOnly = true
	require.NoError(t, os.Remove(cfg.Main))
	h := newHarness(t, cfg)
	stop := h.runDev(t)

	// --- Act ---
	require.Eventually(t, func() bool { return h.orch.State() == StateBuildOnly }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, h.bundler.Signal(context.Background(), 0))

	// --- Assert ---
	require.NoError(t, stop(), "build only never launches, so a missing main file is not fatal")
	require.Empty(t, h.starter.Events())
}

func TestDev_UnexpectedExitEndsRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHarness(t, nodeConfig(t))
	done := make(chan error, 1)
	go func() { done <- h.orch.Dev(context.Background()) }()
	waitStarted(t, h.starter)

	// --- Act ---
	h.starter.Processes()[0].Exit(errors.New("segfault"))

	// --- Assert ---
	select {
	case err := <-done:
		var exitErr *ChildExitError
		require.True(t, errors.As(err, &exitErr), "expected ChildExitError, got %v", err)
		require.Equal(t, 1, exitErr.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("Dev did not return after the child exited")
	}
	require.Equal(t, StateExited, h.orch.State())
}

func TestDev_CleanExitEndsRunWithoutError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nodeConfig(t))
	done := make(chan error, 1)
	go func() { done <- h.orch.Dev(context.Background()) }()
	waitStarted(t, h.starter)

	h.starter.Processes()[0].Exit(nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Dev did not return after the child exited")
	}
}

func TestDev_BuildErrorAborts(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.Tasks = append(cfg.Tasks, bundler.TaskOptions{Entry: []string{"src/preload.ts"}})
	h := newHarness(t, cfg)
	buildErr := &bundler.BuildError{Task: "src/main.ts", Messages: []string{"boom"}}
	h.bundler.Errs = map[int]error{0: buildErr}

	// --- Act ---
	err := h.orch.Dev(context.Background())

	// --- Assert ---
	require.ErrorIs(t, err, buildErr)
	require.Len(t, h.bundler.Calls(), 1, "later tasks must not be built")
	require.Empty(t, h.starter.Events())
}

func electronConfig(t *testing.T) *resolve.ResolvedConfig {
	t.Helper()
	cfg := nodeConfig(t)
	cfg.Type = resolve.TypeElectron
	cfg.Renderer = &resolve.Renderer{
		Cwd:             cfg.Cwd,
		URL:             []string{"http://localhost:5173"},
		DevURL:          "http://localhost:3000",
		WaitTimeout:     2 * time.Second,
		WaitForRenderer: true,
	}
	return cfg
}

func TestDev_ElectronWaitsForRenderer(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHarness(t, electronConfig(t))

	// --- Act ---
	stop := h.runDev(t)
	waitStarted(t, h.starter)

	// --- Assert ---
	h.waiter.mu.Lock()
	require.Equal(t, []string{"http://localhost:3000"}, h.waiter.urls)
	require.Equal(t, 2*time.Second, h.waiter.timeout)
	h.waiter.mu.Unlock()
	require.Equal(t, "/fake/electron", h.starter.Processes()[0].Spec.Path)
	require.NoError(t, stop())
}

func TestDev_ElectronWaitTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, electronConfig(t))
	h.waiter.err = errors.New("timed out")

	err := h.orch.Dev(context.Background())

	require.EqualError(t, err, "timed out")
	require.Empty(t, h.starter.Events())
}

func TestDev_ElectronWaitDisabled(t *testing.T) {
	t.Parallel()

	cfg := electronConfig(t)
	cfg.Renderer.WaitForRenderer = false
	h := newHarness(t, cfg)

	stop := h.runDev(t)
	waitStarted(t, h.starter)

	require.Nil(t, h.waiter.urls)
	require.NoError(t, stop())
}

func TestDev_ElectronRuntimeMissing(t *testing.T) {
	t.Parallel()

	cfg := electronConfig(t)
	h := newHarness(t, cfg)
	missing := &npm.DependencyMissingError{Package: "electron", Feature: "electron"}
	h.orch.runtime = func(string) (*npm.DesktopRuntime, error) { return nil, missing }

	err := h.orch.Dev(context.Background())

	require.ErrorIs(t, err, missing)
	require.Empty(t, h.bundler.Calls())
}

func TestBuild_NodeBuildsTasksOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := nodeConfig(t)
	cfg.Tasks = append(cfg.Tasks, bundler.TaskOptions{Entry: []string{"src/worker.ts"}})
	var hookRan bool
	cfg.AfterBuild = func(context.Context) error {
		require.Len(t, cfg.Tasks, 2)
		hookRan = true
		return nil
	}
	h := newHarness(t, cfg)

	// --- Act ---
	err := h.orch.Build(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	calls := h.bundler.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []string{"src/main.ts"}, calls[0].Entry)
	require.Equal(t, []string{"src/worker.ts"}, calls[1].Entry)
	for _, c := range calls {
		require.False(t, c.Watching())
		require.Nil(t, c.OnSuccess)
		require.Equal(t, "production", c.Env["OMNI_MODE"])
	}
	require.True(t, hookRan)
	require.Empty(t, h.packager.calls, "node applications are never packaged")
	require.Equal(t, StateExited, h.orch.State())
}

func TestBuild_ElectronStagesThenPackages(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := electronConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Cwd, "index.html"), []byte("<html>"), 0o644))
	cfg.Renderer = &resolve.Renderer{Cwd: cfg.Cwd, OutDir: "dist/renderer", Entry: "index.html"}
	cfg.Packager = resolve.Packager{Disabled: false}

	var order []string
	cfg.AfterBuild = func(context.Context) error {
		order = append(order, "after build")
		return nil
	}
	cfg.Packager.AfterBuild = func(context.Context) error {
		order = append(order, "after package")
		return nil
	}
	h := newHarness(t, cfg)
	h.packager.onRun = func() {
		_, err := os.Stat(filepath.Join(cfg.Cwd, "dist", "renderer", "index.html"))
		require.NoError(t, err, "the renderer must be staged before packaging")
		order = append(order, "package")
	}

	// --- Act ---
	err := h.orch.Build(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, []string{"after build", "package", "after package"}, order)
	require.Len(t, h.packager.calls, 1)
}

func TestBuild_PackagerDisabled(t *testing.T) {
	t.Parallel()

	cfg := electronConfig(t)
	cfg.Packager = resolve.Packager{Disabled: true}
	h := newHarness(t, cfg)

	require.NoError(t, h.orch.Build(context.Background()))
	require.Empty(t, h.packager.calls)
}

func TestBuild_Failures(t *testing.T) {
	t.Parallel()

	t.Run("bundler error stops the build", func(t *testing.T) {
		t.Parallel()
		cfg := electronConfig(t)
		cfg.Tasks = append(cfg.Tasks, bundler.TaskOptions{Entry: []string{"src/preload.ts"}})
		cfg.Packager = resolve.Packager{}
		h := newHarness(t, cfg)
		h.bundler.Errs = map[int]error{0: errors.New("syntax error")}

		err := h.orch.Build(context.Background())

		require.EqualError(t, err, "syntax error")
		require.Len(t, h.bundler.Calls(), 1)
		require.Empty(t, h.packager.calls)
	})

	t.Run("missing packager dependency", func(t *testing.T) {
		t.Parallel()
		cfg := electronConfig(t)
		cfg.Packager = resolve.Packager{}
		h := newHarness(t, cfg)
		missing := &npm.DependencyMissingError{Package: "electron-builder", Feature: "electron.build"}
		h.packager.err = missing

		err := h.orch.Build(context.Background())

		require.ErrorIs(t, err, missing)
	})

	t.Run("after build hook error", func(t *testing.T) {
		t.Parallel()
		cfg := nodeConfig(t)
		cfg.AfterBuild = func(context.Context) error { return errors.New("hook failed") }
		h := newHarness(t, cfg)

		require.EqualError(t, h.orch.Build(context.Background()), "hook failed")
	})
}

func TestWithEnv_ProjectionWins(t *testing.T) {
	t.Parallel()

	task := bundler.TaskOptions{Env: map[string]string{"NODE_ENV": "custom", "KEEP": "1"}}

	got := withEnv(task, map[string]string{"NODE_ENV": "production"})

	require.Equal(t, map[string]string{"NODE_ENV": "production", "KEEP": "1"}, got.Env)
	require.Equal(t, "custom", task.Env["NODE_ENV"], "the input task is not modified")
}
