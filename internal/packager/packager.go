// Package packager hands a resolved packaging configuration to the installer
// packager. The packager runs as a separate process from the project's
// node_modules.
package packager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/npm"
	"github.com/vk/omnibuild/internal/resolve"
)

// Packager produces installable artifacts for the project in cwd.
type Packager interface {
	Package(ctx context.Context, cfg resolve.Packager, cwd string) error
}

// PackageName is the npm package providing the packager.
const PackageName = "electron-builder"

// feature names what needs the packager in DependencyMissingError messages.
const feature = `"electron.build"`

// ElectronBuilder runs the project's electron-builder.
type ElectronBuilder struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewElectronBuilder creates a Packager writing the packager's output to
// the tool's standard streams.
func NewElectronBuilder() *ElectronBuilder {
	return &ElectronBuilder{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Package implements Packager. It fails with *npm.DependencyMissingError
// before doing anything else when electron-builder is not installed.
func (b *ElectronBuilder) Package(ctx context.Context, cfg resolve.Packager, cwd string) error {
	logger := ctxlog.FromContext(ctx)

	if _, err := npm.Require(cwd, PackageName, feature); err != nil {
		return err
	}
	bin, err := npm.Bin(cwd, PackageName)
	if err != nil {
		return err
	}

	configPath := cfg.ConfigPath
	if configPath == "" {
		f, err := os.CreateTemp("", "omnibuild-packager-*.json")
		if err != nil {
			return fmt.Errorf("creating packager config: %w", err)
		}
		defer os.Remove(f.Name())

		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg.Config); err != nil {
			f.Close()
			return fmt.Errorf("writing packager config: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing packager config: %w", err)
		}
		configPath = f.Name()
	}

	args := append([]string{"--config", configPath, "--projectDir", cwd}, Flags(cfg.CLIOptions)...)
	logger.Info("Start electron build.", "args", args)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", PackageName, err)
	}
	return nil
}

// Flags renders packager options as command-line flags, sorted by name.
// true becomes --name, false --name=false, lists repeat the flag name once
// followed by every value, and nested objects use dotted names.
func Flags(opts config.Map) []string {
	return flags("", opts)
}

func flags(prefix string, opts config.Map) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		name := prefix + k
		switch v := opts[k].(type) {
		case nil:
		case bool:
			if v {
				out = append(out, "--"+name)
			} else {
				out = append(out, "--"+name+"=false")
			}
		case []any:
			if len(v) == 0 {
				continue
			}
			out = append(out, "--"+name)
			for _, item := range v {
				out = append(out, fmt.Sprint(item))
			}
		case config.Map:
			out = append(out, flags(name+".", v)...)
		default:
			out = append(out, "--"+name+"="+strings.TrimSpace(fmt.Sprint(v)))
		}
	}
	return out
}
