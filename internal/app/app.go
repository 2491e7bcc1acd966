package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/lifecycle"
	"github.com/vk/omnibuild/internal/orchestrator"
	"github.com/vk/omnibuild/internal/resolve"
)

// Loader finds config files and reports which extensions it can decode.
type Loader interface {
	config.Loader
	Extensions() []string
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	logger   *slog.Logger
	config   *Config
	resolver *resolve.Resolver
	opts     orchestrator.Options
	hooks    *lifecycle.Hooks

	ctx        context.Context
	httpServer *http.Server

	mu   sync.Mutex
	orch *orchestrator.Orchestrator
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. Zero fields of opts
// get the production collaborators.
func NewApp(outW io.Writer, cfg *Config, loader Loader, opts orchestrator.Options) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if opts.Hooks == nil {
		opts.Hooks = &lifecycle.Hooks{}
	}

	return &App{
		logger:   logger,
		config:   cfg,
		resolver: resolve.New(loader, loader.Extensions()),
		opts:     opts,
		hooks:    opts.Hooks,
		ctx:      ctxlog.WithLogger(context.Background(), logger),
	}
}

// Orchestrator returns the orchestrator of the current run, or nil before the
// configuration has been resolved.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orch
}

func (a *App) setOrchestrator(o *orchestrator.Orchestrator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orch = o
}
