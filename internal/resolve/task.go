package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/omnibuild/internal/bundler"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/npm"
	"github.com/vk/omnibuild/internal/pathutil"
)

// defaultOutDir is the bundler output directory when none is configured.
const defaultOutDir = "dist"

// declarationExtensions maps a script extension to its type-declaration
// extension.
var declarationExtensions = map[string]string{
	".js":  ".ts",
	".cjs": ".cts",
	".mjs": ".mts",
}

// primaryDefaults computes the defaults of the application task: the module
// format and, when the bundle lands exactly where the main file is expected,
// the main file's extension.
func primaryDefaults(cwd, format, mainFile string, uc config.UserConfig) bundler.TaskOptions {
	outDir := uc.OutDir
	if outDir == "" {
		outDir = defaultOutDir
	}
	defaults := bundler.TaskOptions{Cwd: cwd, Format: format, OutDir: outDir}

	ext, dts := inferOutExtension(cwd, mainFile, firstEntry(uc.Entry), outDir)
	defaults.OutExtension = ext
	defaults.DtsExtension = dts
	return defaults
}

// inferOutExtension compares the main file (relative to cwd, without
// extension) with the expected bundle path (outDir plus the entry's base name
// without extension). On a match it returns the main file's extension and
// the matching declaration extension; otherwise both are empty.
func inferOutExtension(cwd, mainFile, entry, outDir string) (string, string) {
	if entry == "" {
		return "", ""
	}
	mainRel := mainFile
	if rel, err := filepath.Rel(cwd, mainFile); err == nil {
		mainRel = rel
	}
	ext := filepath.Ext(mainRel)

	output := filepath.Join(filepath.Dir(mainRel), strings.TrimSuffix(filepath.Base(mainRel), ext))
	expected := filepath.Join(outDir, pathutil.TrimExt(filepath.Base(entry)))
	if filepath.Clean(output) != filepath.Clean(expected) {
		return "", ""
	}
	return ext, declarationExtensions[ext]
}

func firstEntry(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0]
}

// buildTask merges the explicit task fields over defaults, applies the
// task's extra bundler configuration and expands manifest references in the
// external list.
func (r *Resolver) buildTask(ctx context.Context, cwd string, defaults bundler.TaskOptions, in config.TaskConfig) (bundler.TaskOptions, error) {
	logger := ctxlog.FromContext(ctx)

	base, err := config.Encode(defaults)
	if err != nil {
		return bundler.TaskOptions{}, &ConfigError{Message: "encoding task defaults", Err: err}
	}
	overrides, err := config.Encode(config.TaskConfig{
		Entry:    in.Entry,
		OutDir:   in.OutDir,
		Tsconfig: in.Tsconfig,
		External: in.External,
	})
	if err != nil {
		return bundler.TaskOptions{}, &ConfigError{Message: "encoding task", Err: err}
	}
	merged := config.Merge(base, overrides)

	extra, err := r.loadRef(ctx, in.BundlerConfig, cwd)
	if err != nil {
		return bundler.TaskOptions{}, &ConfigError{Message: "loading bundler config", Err: err}
	}
	if in.BundlerConfig != nil && in.BundlerConfig.Path != "" && extra == nil {
		logger.Warn("Bundler config file not found, ignored.", "path", in.BundlerConfig.Path)
	}
	for k, v := range extra {
		if k == config.EntryKey {
			continue
		}
		merged[k] = v
	}

	var task bundler.TaskOptions
	if err := config.Decode(merged, &task); err != nil {
		return bundler.TaskOptions{}, &ConfigError{Message: "malformed bundler options", Err: err}
	}
	task.Cwd = cwd

	task.External, err = expandExternal(task.External, cwd)
	if err != nil {
		return bundler.TaskOptions{}, err
	}
	return task, nil
}

// expandExternal replaces every external entry that names a manifest with
// that manifest's runtime and peer dependencies. The result is
// de-duplicated and keeps first-seen order.
func expandExternal(external []string, cwd string) ([]string, error) {
	expand := false
	for _, item := range external {
		if strings.Contains(item, npm.ManifestFile) {
			expand = true
			break
		}
	}
	if !expand {
		return external, nil
	}

	seen := make(map[string]struct{}, len(external))
	out := make([]string, 0, len(external))
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, item := range external {
		if !strings.Contains(item, npm.ManifestFile) {
			add(item)
			continue
		}
		manifest, err := npm.ReadManifest(pathutil.Resolve(item, cwd))
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("expanding external %q", item), Err: err}
		}
		for _, dep := range manifest.RuntimeDependencies() {
			add(dep)
		}
	}
	return out, nil
}
