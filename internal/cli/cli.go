package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/vk/omnibuild/internal/app"
	"github.com/vk/omnibuild/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usageHeader = `
omnibuild - build and run Node.js and Electron applications.

Usage:
  omnibuild [dev] [options]    bundle, watch and restart the application
  omnibuild build [options]    bundle for production and package installers

Options:
`

// globalFlags are accepted by every command.
type globalFlags struct {
	logLevel        string
	logFormat       string
	healthcheckPort int
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.StringVar(&g.logFormat, "log-format", "pretty", "Log output format. Options: 'pretty', 'text' or 'json'.")
	fs.IntVar(&g.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
}

// commonFlags are the bundling options shared by dev and build.
type commonFlags struct {
	appType       string
	configFile    string
	disableConfig bool
	entry         string
	outDir        string
	tsconfig      string
	bundlerConfig string
	external      []string
	preload       string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.appType, "type", "t", "", "Application type. Options: 'node' or 'electron'.")
	fs.StringVarP(&c.configFile, "config", "c", "", "Path to a config file. Disables discovery of omni.build.*.")
	fs.BoolVar(&c.disableConfig, "no-config", false, "Do not load any config file.")
	fs.StringVarP(&c.entry, "entry", "e", "", "Entry file of the main bundle.")
	fs.StringVarP(&c.outDir, "outDir", "o", "", "Output directory of the main bundle.")
	fs.StringVar(&c.tsconfig, "tsconfig", "", "Path to tsconfig.json.")
	fs.StringVar(&c.bundlerConfig, "bundler-config", "", "Path to a file of extra bundler options for the main bundle.")
	fs.StringSliceVar(&c.external, "external", nil, "Comma separated modules to leave unbundled.")
	fs.StringVar(&c.preload, "preload", "", "Entry file of the preload script (electron).")
}

func (c *commonFlags) inline() config.Inline {
	return config.Inline{
		ConfigFile:    c.configFile,
		DisableConfig: c.disableConfig,
		Type:          c.appType,
		Entry:         c.entry,
		OutDir:        c.outDir,
		Tsconfig:      c.tsconfig,
		BundlerConfig: c.bundlerConfig,
		External:      c.external,
		Preload:       c.preload,
	}
}

// devFlags are the dev command's own options.
type devFlags struct {
	main           string
	rendererURL    []string
	devURL         string
	waitTimeout    int
	noWait         bool
	rendererCwd    string
	rendererAssets []string
	rendererOutDir string
	rendererEntry  string
	buildOnly      bool
	runOnly        bool
	debug          bool
}

func (d *devFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&d.main, "main", "m", "", "Main file to run. Defaults to the package.json main field.")
	fs.StringSliceVar(&d.rendererURL, "renderer-url", nil, "Comma separated renderer URLs (electron).")
	fs.StringVar(&d.devURL, "dev-url", "", "Renderer URL used in development instead of --renderer-url.")
	fs.IntVar(&d.waitTimeout, "wait-timeout", 0, "Milliseconds to wait for each renderer URL. 0 uses the default.")
	fs.BoolVar(&d.noWait, "no-wait", false, "Do not wait for the renderer before launching.")
	fs.StringVar(&d.rendererCwd, "renderer-cwd", "", "Working directory of the renderer.")
	fs.StringSliceVar(&d.rendererAssets, "renderer-assets", nil, "Comma separated renderer assets to stage.")
	fs.StringVar(&d.rendererOutDir, "renderer-outDir", "", "Output directory of the static renderer.")
	fs.StringVar(&d.rendererEntry, "renderer-entry", "", "Entry HTML file of the static renderer.")
	fs.BoolVar(&d.buildOnly, "buildOnly", false, "Bundle (and watch) without running the application.")
	fs.BoolVar(&d.runOnly, "runOnly", false, "Run the application without bundling.")
	fs.BoolVarP(&d.debug, "debug", "d", false, "Enable the debug configuration.")
}

func (d *devFlags) renderer() *config.Renderer {
	r := &config.Renderer{
		DevURL:      d.devURL,
		URL:         config.StringList(d.rendererURL),
		WaitTimeout: d.waitTimeout,
		Cwd:         d.rendererCwd,
		Assets:      config.StringList(d.rendererAssets),
		OutDir:      d.rendererOutDir,
		Entry:       d.rendererEntry,
	}
	if d.noWait {
		wait := false
		r.WaitForRenderer = &wait
	}
	if r.DevURL == "" && len(r.URL) == 0 && r.WaitTimeout == 0 && r.WaitForRenderer == nil &&
		r.Cwd == "" && len(r.Assets) == 0 && r.OutDir == "" && r.Entry == "" {
		return nil
	}
	return r
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	command := app.CommandDev
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case app.CommandDev, app.CommandBuild:
			command = args[0]
			args = args[1:]
		default:
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", args[0])}
		}
	}

	flagSet := pflag.NewFlagSet("omnibuild "+command, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageHeader)
		flagSet.PrintDefaults()
	}

	var (
		global globalFlags
		common commonFlags
		dev    devFlags
		pkgCfg string
	)
	global.register(flagSet)
	common.register(flagSet)
	if command == app.CommandDev {
		dev.register(flagSet)
	} else {
		flagSet.StringVar(&pkgCfg, "packager-config", "", "Path to an electron-builder config file.")
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	logFormat := strings.ToLower(global.logFormat)
	switch logFormat {
	case "pretty", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'pretty', 'text' or 'json'"}
	}

	logLevel := strings.ToLower(global.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	inline := common.inline()
	if command == app.CommandDev {
		if dev.buildOnly && dev.runOnly {
			return nil, false, &ExitError{Code: 2, Message: "--buildOnly and --runOnly cannot be combined"}
		}
		inline.Main = dev.main
		inline.Renderer = dev.renderer()
		inline.BuildOnly = dev.buildOnly
		inline.RunOnly = dev.runOnly
		inline.Debug = dev.debug
	} else {
		inline.PackagerConfig = pkgCfg
	}

	cfg, err := app.NewConfig(app.Config{
		Command:         command,
		Inline:          inline,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: global.healthcheckPort,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
