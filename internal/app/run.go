package app

import (
	"context"
	"errors"
	"time"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/orchestrator"
)

// shutdownTimeout bounds the cleanup that runs after the command returns.
const shutdownTimeout = 10 * time.Second

// Run resolves the configuration and executes the configured command. Every
// shutdown hook runs before Run returns, whatever the outcome.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.", "command", a.config.Command, "cwd", a.config.Cwd)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if herr := a.hooks.Shutdown(shutdownCtx); herr != nil {
			a.logger.Error("Shutdown hooks failed.", "error", herr)
			err = errors.Join(err, herr)
		}
		a.logger.Debug("App.Run method finished.")
	}()

	a.healthCheckServer()
	a.hooks.OnShutdown("health check server", func(context.Context) error {
		return a.closeHealthCheckServer()
	})

	resolved, err := a.resolver.Resolve(ctx, a.config.Inline, a.config.Cwd)
	if err != nil {
		return err
	}

	orch := orchestrator.New(resolved, a.opts)
	a.setOrchestrator(orch)

	switch a.config.Command {
	case CommandBuild:
		err = orch.Build(ctx)
	default:
		err = orch.Dev(ctx)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("Interrupted, shutting down.")
		return nil
	}
	return err
}
