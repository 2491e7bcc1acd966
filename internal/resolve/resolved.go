package resolve

import (
	"path/filepath"
	"time"

	"github.com/vk/omnibuild/internal/bundler"
	"github.com/vk/omnibuild/internal/config"
)

// Application types.
const (
	TypeNode     = "node"
	TypeElectron = "electron"
)

// DefaultWaitTimeout applies to renderer readiness waits without an explicit
// timeout.
const DefaultWaitTimeout = 5 * time.Second

// ResolvedConfig is the fully resolved configuration of one invocation. It
// is created once by a Resolver and never modified afterwards.
type ResolvedConfig struct {
	Cwd string
	// ConfigPath is the loaded config file, or "" if none was used.
	ConfigPath string
	Type       string
	// Main is the absolute path of the file the child process runs.
	Main      string
	Args      config.Args
	Debug     Debug
	BuildOnly bool
	RunOnly   bool
	// Tasks holds the application task first and the preload task, if any,
	// second.
	Tasks      []bundler.TaskOptions
	Packager   Packager
	Renderer   *Renderer
	AfterBuild Hook
	// EnvFiles are absolute dotenv file paths, loaded in order.
	EnvFiles []string
}

// IsElectron reports whether the application is a desktop application.
func (c *ResolvedConfig) IsElectron() bool {
	return c.Type == TypeElectron
}

// ProcessArgs returns the arguments passed to the child after the main file:
// the configured arguments for the application type followed by the debug
// arguments when debugging is enabled.
func (c *ResolvedConfig) ProcessArgs() []string {
	args := append([]string{}, c.Args.For(c.Type)...)
	if c.Debug.Enabled {
		args = append(args, c.Debug.Args.For(c.Type)...)
	}
	return args
}

// Debug is the resolved debug configuration.
type Debug struct {
	Enabled       bool
	Args          config.Args
	Env           map[string]string
	SourcemapType string
	BuildOnly     bool
}

// Packager is the resolved installer packaging configuration.
type Packager struct {
	Disabled bool
	// Config is the packager configuration object. It always carries an
	// output directory.
	Config config.Map
	// ConfigPath is set instead of Config when the configuration file is in
	// a format only the packager itself can read.
	ConfigPath string
	AfterBuild Hook
	CLIOptions config.Map
}

// OutputDir returns the configured output directory, or "".
func (p Packager) OutputDir() string {
	return outputDir(p.Config)
}

func outputDir(m config.Map) string {
	dirs, ok := m["directories"].(config.Map)
	if !ok {
		return ""
	}
	out, _ := dirs["output"].(string)
	return out
}

// Renderer is the resolved renderer configuration of a desktop application.
type Renderer struct {
	// Cwd is the absolute renderer working directory.
	Cwd             string
	URL             []string
	DevURL          string
	WaitTimeout     time.Duration
	WaitForRenderer bool
	Assets          []string
	// OutDir and Entry are only set in static mode. Both are relative to Cwd.
	OutDir string
	Entry  string
}

// ServerMode reports whether the renderer is served from a URL.
func (r *Renderer) ServerMode() bool {
	return r != nil && len(r.URL) > 0
}

// StaticMode reports whether the renderer is a built output directory.
func (r *Renderer) StaticMode() bool {
	return r != nil && !r.ServerMode() && r.OutDir != "" && r.Entry != ""
}

// File returns OutDir joined with Entry in static mode, or "".
func (r *Renderer) File() string {
	if !r.StaticMode() {
		return ""
	}
	return filepath.Join(r.OutDir, r.Entry)
}

// WaitURLs returns the URLs to wait for before launching the application:
// the dev URL if set, the renderer URLs otherwise.
func (r *Renderer) WaitURLs() []string {
	if r == nil {
		return nil
	}
	if r.DevURL != "" {
		return []string{r.DevURL}
	}
	return r.URL
}
