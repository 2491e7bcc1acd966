// Package env projects a resolved configuration into the environment
// variables seen by the bundled code and by the child process.
package env

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/vk/omnibuild/internal/resolve"
)

// Prefix starts every variable name owned by the tool.
const Prefix = "OMNI"

// Run modes.
const (
	Production  = "production"
	Development = "development"
)

// Variable names.
const (
	KeyAppType        = Prefix + "_APP_TYPE"
	KeyMode           = Prefix + "_MODE"
	KeyNodeEnv        = "NODE_ENV"
	KeyDebug          = "DEBUG"
	KeyRendererCwd    = Prefix + "_RENDERER_CWD"
	KeyRendererOutDir = Prefix + "_RENDERER_OUTDIR"
	KeyRendererEntry  = Prefix + "_RENDERER_ENTRY"
	KeyRendererURL    = Prefix + "_RENDERER_URL"
	KeyRendererDevURL = Prefix + "_RENDERER_DEV_URL"
	KeyRendererAssets = Prefix + "_RENDERER_ASSETS"
	KeyRendererFile   = Prefix + "_RENDERER_FILE"
)

// Project computes the environment for cfg in mode. Debug environment
// overrides are applied last and win over computed values.
func Project(cfg *resolve.ResolvedConfig, mode string) map[string]string {
	vars := map[string]string{
		KeyAppType: cfg.Type,
		KeyMode:    mode,
		KeyNodeEnv: mode,
		KeyDebug:   strconv.FormatBool(cfg.Debug.Enabled),
	}
	set := func(key, val string) {
		if val != "" {
			vars[key] = val
		}
	}

	if r := cfg.Renderer; cfg.IsElectron() && r != nil {
		set(KeyRendererCwd, r.Cwd)
		set(KeyRendererOutDir, r.OutDir)
		set(KeyRendererEntry, r.Entry)

		switch len(r.URL) {
		case 0:
		case 1:
			set(KeyRendererURL, r.URL[0])
		default:
			setIndexed(vars, KeyRendererURL, r.URL)
		}

		if r.DevURL != "" {
			set(KeyRendererDevURL, r.DevURL)
		} else if mode == Development {
			entry := r.Entry
			if entry == "" {
				entry = "index.html"
			}
			set(KeyRendererDevURL, "file://"+filepath.ToSlash(filepath.Join(r.Cwd, entry)))
		}

		if len(r.Assets) > 0 {
			setIndexed(vars, KeyRendererAssets, r.Assets)
		}
		set(KeyRendererFile, r.File())
	}

	if cfg.Debug.Enabled {
		for k, v := range cfg.Debug.Env {
			set(k, v)
		}
	}
	return vars
}

// setIndexed stores values as key, key_2, key_3, ... together with
// key_COUNT.
func setIndexed(vars map[string]string, key string, values []string) {
	vars[key+"_COUNT"] = strconv.Itoa(len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		if i == 0 {
			vars[key] = v
			continue
		}
		vars[fmt.Sprintf("%s_%d", key, i+1)] = v
	}
}

// Compose returns the variables from cfg's dotenv files overlaid with the
// projection for mode.
func Compose(cfg *resolve.ResolvedConfig, mode string) (map[string]string, error) {
	vars := map[string]string{}
	if len(cfg.EnvFiles) > 0 {
		loaded, err := godotenv.Read(cfg.EnvFiles...)
		if err != nil {
			return nil, fmt.Errorf("reading env files: %w", err)
		}
		vars = loaded
	}
	for k, v := range Project(cfg, mode) {
		vars[k] = v
	}
	return vars, nil
}

// Environ appends vars to base in KEY=value form, sorted by key. Later
// entries win for exec.Cmd, so vars override base.
func Environ(base []string, vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}
