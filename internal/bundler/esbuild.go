package bundler

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/vk/omnibuild/internal/ctxlog"
)

// envKeyPattern matches keys that can be exposed as process.env.KEY defines.
var envKeyPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ESBuild bundles tasks in-process with esbuild.
type ESBuild struct{}

// NewESBuild creates an esbuild-backed Bundler.
func NewESBuild() *ESBuild {
	return &ESBuild{}
}

// Build implements Bundler. When the task watches, the esbuild context stays
// alive until ctx is cancelled.
func (b *ESBuild) Build(ctx context.Context, opts TaskOptions, silent bool) error {
	logger := ctxlog.FromContext(ctx).With("task", opts.Name())
	if opts.DtsExtension != "" {
		logger.Debug("Declaration extension recorded; esbuild does not emit declarations.", "dts_extension", opts.DtsExtension)
	}

	var (
		first     = make(chan error, 1)
		firstOnce sync.Once
		built     atomic.Bool
	)
	deliver := func(err error) {
		firstOnce.Do(func() { first <- err })
	}

	buildOpts := Options(opts, silent)
	buildOpts.Plugins = []api.Plugin{{
		Name: "omnibuild-notify",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					err := newBuildError(opts.Name(), result.Errors)
					if built.Load() {
						logger.Error("Rebuild failed.", "error", err)
					}
					deliver(err)
					return api.OnEndResult{}, nil
				}
				built.Store(true)
				if opts.OnSuccess != nil {
					if err := opts.OnSuccess(ctx); err != nil {
						logger.Error("Build success hook failed.", "error", err)
					}
				}
				deliver(nil)
				return api.OnEndResult{}, nil
			})
		},
	}}

	bctx, cerr := api.Context(buildOpts)
	if cerr != nil {
		return newBuildError(opts.Name(), cerr.Errors)
	}

	if !opts.Watching() {
		defer bctx.Dispose()
		result := bctx.Rebuild()
		if len(result.Errors) > 0 {
			return newBuildError(opts.Name(), result.Errors)
		}
		return nil
	}

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()
		return err
	}
	logger.Debug("Watching for changes.")

	select {
	case err := <-first:
		if err != nil {
			bctx.Dispose()
			return err
		}
		go func() {
			<-ctx.Done()
			logger.Debug("Stopping watcher.")
			bctx.Dispose()
		}()
		return nil
	case <-ctx.Done():
		bctx.Dispose()
		return ctx.Err()
	}
}

// Options translates TaskOptions into esbuild build options.
func Options(opts TaskOptions, silent bool) api.BuildOptions {
	outDir := opts.OutDir
	if outDir != "" && !filepath.IsAbs(outDir) && opts.Cwd != "" {
		outDir = filepath.Join(opts.Cwd, outDir)
	}

	buildOpts := api.BuildOptions{
		AbsWorkingDir: opts.Cwd,
		EntryPoints:   opts.Entry,
		Outdir:        outDir,
		Bundle:        true,
		Write:         true,
		Platform:      api.PlatformNode,
		Format:        api.FormatCommonJS,
		Target:        api.ESNext,
		Tsconfig:      opts.Tsconfig,
		External:      opts.External,
		LogLevel:      api.LogLevelWarning,
	}
	if silent {
		buildOpts.LogLevel = api.LogLevelSilent
	}

	switch opts.Platform {
	case "browser":
		buildOpts.Platform = api.PlatformBrowser
	case "neutral":
		buildOpts.Platform = api.PlatformNeutral
	}
	if opts.Format == FormatESM {
		buildOpts.Format = api.FormatESModule
	}
	if opts.OutExtension != "" {
		buildOpts.OutExtension = map[string]string{".js": opts.OutExtension}
	}
	switch opts.Sourcemap {
	case SourcemapFile:
		buildOpts.Sourcemap = api.SourceMapLinked
	case SourcemapInline:
		buildOpts.Sourcemap = api.SourceMapInline
	}
	if opts.Minify {
		buildOpts.MinifyWhitespace = true
		buildOpts.MinifyIdentifiers = true
		buildOpts.MinifySyntax = true
	}

	if len(opts.Env) > 0 {
		buildOpts.Define = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			if envKeyPattern.MatchString(k) {
				buildOpts.Define["process.env."+k] = strconv.Quote(v)
			}
		}
	}
	return buildOpts
}
