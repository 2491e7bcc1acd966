// Package stager copies the static renderer files of a desktop application
// into the renderer output directory before packaging.
package stager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/fsutil"
	"github.com/vk/omnibuild/internal/pathutil"
	"github.com/vk/omnibuild/internal/resolve"
)

// Stage copies the renderer assets and entry file from r.Cwd into
// r.Cwd/r.OutDir. The leading path components shared by all assets and the
// entry are dropped, so the entry lands at the output root. A renderer that is
// not in static mode is left alone.
func Stage(ctx context.Context, r *resolve.Renderer) error {
	if !r.StaticMode() {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	outDir := filepath.Join(r.Cwd, filepath.FromSlash(r.OutDir))
	_, levels := pathutil.LongestCommonPrefix(append(append([]string{}, r.Assets...), r.Entry))

	for _, item := range append(append([]string{}, r.Assets...), r.Entry) {
		src := filepath.Join(r.Cwd, filepath.FromSlash(item))
		dst := filepath.Join(outDir, pathutil.RemovePrefix(item, levels))

		logger.Debug("Staging renderer file.", "src", src, "dst", dst)
		if err := fsutil.Copy(src, dst); err != nil {
			return fmt.Errorf("staging renderer file %s: %w", item, err)
		}
	}
	logger.Info("Renderer staged.", "out_dir", outDir, "asset_count", len(r.Assets))
	return nil
}
