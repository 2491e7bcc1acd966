package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/omnibuild/internal/app"
	"github.com/vk/omnibuild/internal/cli"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/hcl"
	"github.com/vk/omnibuild/internal/orchestrator"
)

// main is the entrypoint for the omnibuild application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewFileLoader(map[string]config.Decoder{".hcl": hcl.NewDecoder()})
	omniApp := app.NewApp(outW, appConfig, loader, orchestrator.Options{})

	return exitError(omniApp.Run(ctx))
}

// exitError gives an application that exited with a failure status the same
// status.
func exitError(err error) error {
	var childErr *orchestrator.ChildExitError
	if errors.As(err, &childErr) {
		return &cli.ExitError{Code: childErr.Code, Message: childErr.Error()}
	}
	return err
}
