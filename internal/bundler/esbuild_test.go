package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func boolPtr(b bool) *bool { return &b }

func TestOptions_Translation(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	opts := TaskOptions{
		Cwd:          "/proj",
		Entry:        []string{"src/main.ts"},
		OutDir:       "dist-electron",
		External:     []string{"electron"},
		Format:       FormatESM,
		OutExtension: ".mjs",
		Sourcemap:    SourcemapInline,
		Env:          map[string]string{"OMNI_MODE": "development", "not-valid": "x"},
	}

	// --- Act ---
	got := Options(opts, true)

	// --- Assert ---
	require.Equal(t, filepath.Join("/proj", "dist-electron"), got.Outdir)
	require.Equal(t, api.FormatESModule, got.Format)
	require.Equal(t, map[string]string{".js": ".mjs"}, got.OutExtension)
	require.Equal(t, api.SourceMapInline, got.Sourcemap)
	require.Equal(t, api.LogLevelSilent, got.LogLevel)
	require.Equal(t, map[string]string{"process.env.OMNI_MODE": `"development"`}, got.Define)
	require.Equal(t, api.PlatformNode, got.Platform)
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	got := Options(TaskOptions{Entry: []string{"a.ts"}}, false)

	require.Equal(t, api.FormatCommonJS, got.Format)
	require.Nil(t, got.OutExtension)
	require.Equal(t, api.SourceMapNone, got.Sourcemap)
	require.Equal(t, api.LogLevelWarning, got.LogLevel)
}

func TestESBuild_OneShotBuild(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "src", "main.ts"), "const greeting: string = process.env.OMNI_MODE ?? 'none';\nconsole.log(greeting);\n")

	opts := TaskOptions{
		Cwd:          dir,
		Entry:        []string{"src/main.ts"},
		OutDir:       "dist",
		Format:       FormatESM,
		OutExtension: ".mjs",
		Watch:        boolPtr(false),
		Env:          map[string]string{"OMNI_MODE": "production"},
	}

	// --- Act ---
	err := NewESBuild().Build(context.Background(), opts, true)

	// --- Assert ---
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(dir, "dist", "main.mjs"))
	require.NoError(t, err)
	require.Contains(t, string(out), "production")
}

func TestESBuild_FailureIsBuildError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "src", "main.ts"), "import './missing';\n")

	err := NewESBuild().Build(context.Background(), TaskOptions{
		Cwd:    dir,
		Entry:  []string{"src/main.ts"},
		OutDir: "dist",
		Watch:  boolPtr(false),
	}, true)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr), "expected a BuildError, got %v", err)
	require.NotEmpty(t, buildErr.Messages)
	require.Contains(t, buildErr.Error(), "src/main.ts")
}

func TestESBuild_WatchSignalsEveryBuild(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "main.ts")
	writeSource(t, src, "console.log(1);\n")

	var successes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts := TaskOptions{
		Cwd:    dir,
		Entry:  []string{"src/main.ts"},
		OutDir: "dist",
		OnSuccess: func(context.Context) error {
			successes.Add(1)
			return nil
		},
	}

	// --- Act ---
	err := NewESBuild().Build(ctx, opts, true)
	require.NoError(t, err)
	require.Equal(t, int32(1), successes.Load(), "the initial build signals exactly once before Build returns")

	writeSource(t, src, "console.log(2);\n")

	// --- Assert ---
	require.Eventually(t, func() bool { return successes.Load() >= 2 }, 15*time.Second, 50*time.Millisecond)
}
