package resolve

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// Hook runs after a build step. A nil Hook does nothing.
type Hook func(ctx context.Context) error

// Run invokes the hook if it is set.
func (h Hook) Run(ctx context.Context) error {
	if h == nil {
		return nil
	}
	return h(ctx)
}

// ShellHook returns a Hook that runs command through the platform shell in
// dir, with the tool's standard output and error. An empty command yields nil.
func ShellHook(command, dir string) Hook {
	if command == "" {
		return nil
	}
	return func(ctx context.Context) error {
		ctxlog.FromContext(ctx).Info("Running hook.", "command", command)

		var cmd *exec.Cmd
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd", "/C", command)
		} else {
			cmd = exec.CommandContext(ctx, "sh", "-c", command)
		}
		cmd.Dir = dir
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("hook %q failed: %w", command, err)
		}
		return nil
	}
}
