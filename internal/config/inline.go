package config

// Inline is configuration given directly by the caller, typically from
// command-line flags. Zero values mean "not given" and never override file
// configuration.
type Inline struct {
	// ConfigFile names a config file to load instead of discovering one.
	ConfigFile string
	// DisableConfig skips config file loading entirely.
	DisableConfig bool

	Type          string
	Main          string
	Entry         string
	OutDir        string
	Tsconfig      string
	External      []string
	BundlerConfig string

	// Preload is the preload script entry of a desktop application.
	Preload string
	// PackagerConfig is a path to a packager configuration file.
	PackagerConfig string
	Renderer       *Renderer

	BuildOnly bool
	RunOnly   bool
	Debug     bool
}

// Map returns the inline values that were actually given, keyed the same way
// as configuration files.
func (in Inline) Map() Map {
	m := Map{}
	setString := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	setBool := func(key string, v bool) {
		if v {
			m[key] = true
		}
	}

	setString("type", in.Type)
	setString("main", in.Main)
	setString("entry", in.Entry)
	setString("outDir", in.OutDir)
	setString("tsconfig", in.Tsconfig)
	setString("bundlerConfig", in.BundlerConfig)
	setString("preload", in.Preload)
	setString("packagerConfig", in.PackagerConfig)
	if len(in.External) > 0 {
		m["external"] = ToSlice(in.External)
	}
	if in.Renderer != nil {
		if r, err := Encode(in.Renderer); err == nil && len(r) > 0 {
			m["renderer"] = r
		}
	}
	setBool("buildOnly", in.BuildOnly)
	setBool("runOnly", in.RunOnly)
	setBool("debug", in.Debug)
	return m
}
