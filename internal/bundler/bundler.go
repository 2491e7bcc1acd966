// Package bundler defines the contract between the orchestrator and the
// source bundler, and provides an esbuild-backed implementation.
//
// A Bundler receives fully resolved TaskOptions. In watch mode Build
// returns after the first successful build and keeps rebuilding in the
// background, calling OnSuccess after every successful build, including the
// first one.
package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Bundler builds one task.
type Bundler interface {
	Build(ctx context.Context, opts TaskOptions, silent bool) error
}

// Output module formats.
const (
	FormatESM = "esm"
	FormatCJS = "cjs"
)

// Source map emission modes. The zero value disables source maps.
const (
	SourcemapFile   = "file"
	SourcemapInline = "inline"
)

// TaskOptions is one resolved bundling task.
type TaskOptions struct {
	// Cwd is the project directory; relative paths resolve against it.
	Cwd      string   `json:"cwd,omitempty"`
	Entry    []string `json:"entry,omitempty"`
	OutDir   string   `json:"outDir,omitempty"`
	Tsconfig string   `json:"tsconfig,omitempty"`
	External []string `json:"external,omitempty"`
	Format   string   `json:"format,omitempty"`
	// OutExtension forces the extension of emitted scripts, e.g. ".mjs".
	OutExtension string `json:"outExtension,omitempty"`
	// DtsExtension is the matching type-declaration extension, e.g. ".mts".
	DtsExtension string            `json:"dtsExtension,omitempty"`
	Platform     string            `json:"platform,omitempty"`
	Minify       bool              `json:"minify,omitempty"`
	Watch        *bool             `json:"watch,omitempty"`
	Sourcemap    Sourcemap         `json:"sourcemap,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	// OnSuccessCommand is a string onSuccess from a config file, which is
	// not supported and only kept so it can be reported.
	OnSuccessCommand string `json:"onSuccess,omitempty"`

	OnSuccess func(ctx context.Context) error `json:"-"`
}

// Watching reports whether the task keeps rebuilding after the first build.
// Watching is on unless explicitly disabled.
func (o TaskOptions) Watching() bool {
	return o.Watch == nil || *o.Watch
}

// Name is a short label for log output.
func (o TaskOptions) Name() string {
	return strings.Join(o.Entry, ",")
}

// Sourcemap is a source map mode. Config files may also use true for
// SourcemapFile.
type Sourcemap string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sourcemap) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = SourcemapFile
		} else {
			*s = ""
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("sourcemap must be a boolean, %q or %q", SourcemapFile, SourcemapInline)
	}
	switch str {
	case "", SourcemapFile, SourcemapInline:
		*s = Sourcemap(str)
		return nil
	}
	return fmt.Errorf("unknown sourcemap mode %q", str)
}
