package resolve

import (
	"context"
	"path/filepath"

	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/pathutil"
)

// defaultPackagerOutput is the packager output directory, relative to the
// project, when the packager config sets none.
const defaultPackagerOutput = "release"

// resolvePackager loads the packager configuration, applies the default
// output directory and removes file entries that would make the packager
// ingest its own output.
func (r *Resolver) resolvePackager(ctx context.Context, build *config.PackagerConfig, cwd string) (Packager, error) {
	logger := ctxlog.FromContext(ctx)

	resolved := Packager{
		Disabled:   build.Disabled,
		AfterBuild: ShellHook(build.AfterBuild, cwd),
		CLIOptions: build.CLIOptions,
	}

	userConfig, err := r.loadRef(ctx, build.Config, cwd)
	if err != nil {
		if !isUnsupported(err) {
			return Packager{}, &ConfigError{Message: "loading packager config", Err: err}
		}
		resolved.ConfigPath = pathutil.Resolve(build.Config.Path, cwd)
		logger.Warn("Packager config is passed through unchecked.", "path", resolved.ConfigPath)
		return resolved, nil
	}
	if build.Config != nil && build.Config.Path != "" && userConfig == nil {
		return Packager{}, configErrorf("packager config %s not found", build.Config.Path)
	}

	defaults := config.Map{
		"directories": config.Map{"output": filepath.Join(cwd, defaultPackagerOutput)},
	}
	merged := config.Merge(defaults, userConfig)

	if _, ok := merged["files"]; ok {
		merged["files"] = filterFiles(ctx, config.ToSlice(merged["files"]), outputDir(merged), cwd)
	}
	resolved.Config = merged
	return resolved, nil
}

// filterFiles drops every files entry whose location, or whose from or to
// location, is the output directory or one of its ancestors. Surviving
// entries keep their order.
func filterFiles(ctx context.Context, files []any, output, cwd string) []any {
	logger := ctxlog.FromContext(ctx)
	kept := make([]any, 0, len(files))
	if output == "" {
		for _, f := range files {
			if f != nil {
				kept = append(kept, f)
			}
		}
		return kept
	}
	output = pathutil.Resolve(output, cwd)

	conflicts := func(p string) bool {
		return p != "" && pathutil.IsAncestorOrEqual(pathutil.Resolve(p, cwd), output)
	}

	for _, f := range files {
		switch entry := f.(type) {
		case nil:
			continue
		case string:
			if conflicts(entry) {
				logger.Warn("Packager files entry conflicts with the output directory, it will be filtered.", "files", entry, "output", output)
				continue
			}
		case config.Map:
			from, _ := entry["from"].(string)
			to, _ := entry["to"].(string)
			if conflicts(from) {
				logger.Warn("Packager files.from entry conflicts with the output directory, it will be filtered.", "from", from, "output", output)
				continue
			}
			if conflicts(to) {
				logger.Warn("Packager files.to entry conflicts with the output directory, it will be filtered.", "to", to, "output", output)
				continue
			}
		}
		kept = append(kept, f)
	}
	return kept
}
