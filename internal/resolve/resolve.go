package resolve

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/vk/omnibuild/internal/bundler"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/npm"
	"github.com/vk/omnibuild/internal/pathutil"
)

// mainExtensions are the script extensions a main file may have.
var mainExtensions = []string{".cjs", ".mjs", ".js"}

// Resolver resolves configuration using a config Loader.
type Resolver struct {
	loader     config.Loader
	extensions []string
}

// New creates a Resolver. extensions are the candidate extensions tried for
// the conventional config file name, in order.
func New(loader config.Loader, extensions []string) *Resolver {
	return &Resolver{loader: loader, extensions: extensions}
}

// Resolve produces the ResolvedConfig for the project in cwd.
func (r *Resolver) Resolve(ctx context.Context, inline config.Inline, cwd string) (*ResolvedConfig, error) {
	logger := ctxlog.FromContext(ctx)
	inlineMap := inline.Map()

	exported, configPath, err := r.loadUserConfig(ctx, inline, inlineMap, cwd)
	if err != nil {
		return nil, err
	}

	merged := config.Merge(exported, inlineMap)
	var uc config.UserConfig
	if err := config.Decode(merged, &uc); err != nil {
		return nil, &ConfigError{Message: "malformed configuration", Err: err}
	}

	appType := uc.Type
	if appType == "" {
		appType = TypeNode
	}
	if appType != TypeNode && appType != TypeElectron {
		return nil, configErrorf("unknown application type %q, expected %q or %q", appType, TypeNode, TypeElectron)
	}

	manifest, err := npm.FindManifest(cwd)
	if err != nil {
		return nil, &ConfigError{Message: "reading project manifest", Err: err}
	}

	mainFile, err := resolveMain(cwd, uc.Main, manifest)
	if err != nil {
		return nil, err
	}

	if len(uc.Entry) == 0 {
		return nil, configErrorf("entry file is required")
	}

	format := bundler.FormatCJS
	if manifest.ModuleType() == npm.ModuleTypeModule {
		format = bundler.FormatESM
	}
	primary, err := r.buildTask(ctx, cwd, primaryDefaults(cwd, format, mainFile, uc), config.TaskConfig{
		Entry:         uc.Entry,
		OutDir:        uc.OutDir,
		Tsconfig:      uc.Tsconfig,
		External:      uc.External,
		BundlerConfig: uc.BundlerConfig,
	})
	if err != nil {
		return nil, err
	}
	resolved := &ResolvedConfig{
		Cwd:        cwd,
		ConfigPath: configPath,
		Type:       appType,
		Main:       mainFile,
		Args:       uc.Args,
		Tasks:      append(make([]bundler.TaskOptions, 0, 2), primary),
		AfterBuild: ShellHook(uc.AfterBuild, cwd),
	}

	electron := uc.Electron
	if electron == nil {
		electron = &config.Electron{}
	}

	if electron.Preload != nil || inline.Preload != "" {
		preload := config.TaskConfig{}
		if electron.Preload != nil {
			preload = *electron.Preload
		}
		if inline.Preload != "" {
			preload.Entry = config.StringList{inline.Preload}
		}
		if len(preload.Entry) == 0 {
			logger.Warn("Preload entry is not specified, preload is ignored.")
		} else {
			task, err := r.buildTask(ctx, cwd, primary, preload)
			if err != nil {
				return nil, err
			}
			resolved.Tasks = append(resolved.Tasks, task)
		}
	}

	resolved.Packager = Packager{Disabled: true}
	if electron.Build != nil || inline.PackagerConfig != "" {
		build := electron.Build
		if build == nil {
			build = &config.PackagerConfig{Config: &config.Ref{Path: inline.PackagerConfig}}
		}
		resolved.Packager, err = r.resolvePackager(ctx, build, cwd)
		if err != nil {
			return nil, err
		}
	}

	renderer := electron.Renderer
	if renderer == nil {
		renderer = inline.Renderer
	}
	if renderer != nil {
		resolved.Renderer = resolveRenderer(renderer, cwd)
	}

	debug := Debug{}
	if uc.DebugCfg != nil {
		debug = Debug{
			Enabled:       uc.DebugCfg.Enabled,
			Args:          uc.DebugCfg.Args,
			Env:           uc.DebugCfg.Env,
			SourcemapType: uc.DebugCfg.SourcemapType,
			BuildOnly:     uc.DebugCfg.BuildOnly,
		}
	}
	debug.Enabled = debug.Enabled || inline.Debug
	if debug.Enabled {
		mode := bundler.Sourcemap(bundler.SourcemapInline)
		if debug.SourcemapType == bundler.SourcemapFile {
			mode = bundler.SourcemapFile
		}
		for i := range resolved.Tasks {
			resolved.Tasks[i].Sourcemap = mode
		}
	}
	resolved.Debug = debug

	resolved.BuildOnly = inline.BuildOnly || uc.BuildOnly || debug.BuildOnly
	resolved.RunOnly = inline.RunOnly || uc.RunOnly

	for _, f := range uc.EnvFile {
		resolved.EnvFiles = append(resolved.EnvFiles, pathutil.Resolve(f, cwd))
	}

	logger.Debug("Configuration resolved.",
		"type", resolved.Type,
		"main", resolved.Main,
		"task_count", len(resolved.Tasks),
		"packager_disabled", resolved.Packager.Disabled,
		"build_only", resolved.BuildOnly,
		"run_only", resolved.RunOnly,
	)
	return resolved, nil
}

// loadUserConfig loads and evaluates the config file selected by inline.
func (r *Resolver) loadUserConfig(ctx context.Context, inline config.Inline, inlineMap config.Map, cwd string) (config.Map, string, error) {
	if inline.DisableConfig {
		return config.Map{}, "", nil
	}

	src := config.Source{Files: []string{config.FileName}, Extensions: r.extensions}
	if inline.ConfigFile != "" {
		src = config.Source{Files: []string{inline.ConfigFile}}
	}

	loaded, err := r.loader.Load(ctx, src, cwd)
	if err != nil {
		return nil, "", &ConfigError{Message: "loading config file", Err: err}
	}
	if loaded == nil {
		if inline.ConfigFile != "" {
			return nil, "", configErrorf("config file %s not found", inline.ConfigFile)
		}
		return config.Map{}, "", nil
	}
	ctxlog.FromContext(ctx).Info("Using config.", "path", loaded.Path)

	exported, err := loaded.Export.Evaluate(ctx, inlineMap)
	if err != nil {
		return nil, "", &ConfigError{Message: fmt.Sprintf("evaluating %s", loaded.Path), Err: err}
	}
	return exported, loaded.Path, nil
}

// resolveMain returns the absolute main file: the explicit value, or the
// manifest's main field.
func resolveMain(cwd, explicit string, manifest *npm.Manifest) (string, error) {
	mainFile := explicit
	if mainFile == "" {
		if manifest == nil {
			return "", configErrorf("main file is not specified, and no %s found", npm.ManifestFile)
		}
		if manifest.Main == "" {
			return "", configErrorf("main file is not specified, and %s has no main field", manifest.Path)
		}
		mainFile = manifest.Main
	}
	mainFile = pathutil.Resolve(mainFile, cwd)

	if !slices.Contains(mainExtensions, filepath.Ext(mainFile)) {
		return "", configErrorf("main file must be .cjs or .(m)js: %s", mainFile)
	}
	return mainFile, nil
}

// loadRef returns the object a Ref stands for. A path that does not exist
// yields (nil, nil).
func (r *Resolver) loadRef(ctx context.Context, ref *config.Ref, cwd string) (config.Map, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.Path == "" {
		return ref.Value, nil
	}
	loaded, err := r.loader.Load(ctx, config.Source{Files: []string{ref.Path}}, cwd)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, nil
	}
	return loaded.Export.Evaluate(ctx, nil)
}

// isUnsupported reports whether err means the file exists in a format the
// loader cannot read.
func isUnsupported(err error) bool {
	return errors.Is(err, config.ErrUnsupportedFormat)
}
