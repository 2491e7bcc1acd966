package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Map is raw, layered configuration as produced by a Decoder.
type Map = map[string]any

// Export is what a configuration file exports: either a static Map or a
// factory computed from the inline (command-line) configuration. Exactly one
// of Value and Factory is set.
type Export struct {
	Value   Map
	Factory func(ctx context.Context, inline Map) (Map, error)
}

// Static wraps an already-evaluated Map.
func Static(m Map) *Export {
	return &Export{Value: m}
}

// Evaluate resolves the export to a Map, invoking the factory when present.
func (e *Export) Evaluate(ctx context.Context, inline Map) (Map, error) {
	if e == nil {
		return Map{}, nil
	}
	if e.Factory != nil {
		m, err := e.Factory(ctx, inline)
		if err != nil {
			return nil, fmt.Errorf("evaluating config factory: %w", err)
		}
		if m == nil {
			return Map{}, nil
		}
		return m, nil
	}
	if e.Value == nil {
		return Map{}, nil
	}
	return e.Value, nil
}

// UserConfig is the typed view of a merged configuration Map.
type UserConfig struct {
	Type          string       `json:"type,omitempty"`
	Main          string       `json:"main,omitempty"`
	Entry         StringList   `json:"entry,omitempty"`
	OutDir        string       `json:"outDir,omitempty"`
	Tsconfig      string       `json:"tsconfig,omitempty"`
	External      StringList   `json:"external,omitempty"`
	BundlerConfig *Ref         `json:"bundlerConfig,omitempty"`
	Args          Args         `json:"args,omitempty"`
	BuildOnly     bool         `json:"buildOnly,omitempty"`
	RunOnly       bool         `json:"runOnly,omitempty"`
	AfterBuild    string       `json:"afterBuild,omitempty"`
	EnvFile       StringList   `json:"envFile,omitempty"`
	DebugCfg      *DebugConfig `json:"debugCfg,omitempty"`
	Electron      *Electron    `json:"electron,omitempty"`
}

// TaskConfig describes the bundling of one entry, such as the preload script.
type TaskConfig struct {
	Entry         StringList `json:"entry,omitempty"`
	OutDir        string     `json:"outDir,omitempty"`
	Tsconfig      string     `json:"tsconfig,omitempty"`
	External      StringList `json:"external,omitempty"`
	BundlerConfig *Ref       `json:"bundlerConfig,omitempty"`
}

// Electron groups the settings that only apply to desktop applications.
type Electron struct {
	Build    *PackagerConfig `json:"build,omitempty"`
	Preload  *TaskConfig     `json:"preload,omitempty"`
	Renderer *Renderer       `json:"renderer,omitempty"`
}

// PackagerConfig configures the installer packaging step.
type PackagerConfig struct {
	Disabled   bool   `json:"disabled,omitempty"`
	Config     *Ref   `json:"config,omitempty"`
	AfterBuild string `json:"afterBuild,omitempty"`
	CLIOptions Map    `json:"cliOptions,omitempty"`
}

// Renderer configures the renderer side of a desktop application, either as
// a live server (URL) or a static output directory.
type Renderer struct {
	DevURL          string     `json:"devUrl,omitempty"`
	URL             StringList `json:"url,omitempty"`
	WaitTimeout     int        `json:"waitTimeout,omitempty"`
	WaitForRenderer *bool      `json:"waitForRenderer,omitempty"`
	Cwd             string     `json:"cwd,omitempty"`
	Assets          StringList `json:"assets,omitempty"`
	OutDir          string     `json:"outDir,omitempty"`
	Entry           string     `json:"entry,omitempty"`
}

// DebugConfig is the user's debug section.
type DebugConfig struct {
	Enabled       bool              `json:"enabled,omitempty"`
	Args          Args              `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	SourcemapType string            `json:"sourcemapType,omitempty"`
	BuildOnly     bool              `json:"buildOnly,omitempty"`
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*s = nil
		} else {
			*s = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// Args are extra process arguments. They are either shared by both
// application types or split per type.
type Args struct {
	Node     []string `json:"node,omitempty"`
	Electron []string `json:"electron,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. A plain list applies to both
// application types.
func (a *Args) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var shared []string
		if err := json.Unmarshal(data, &shared); err != nil {
			return err
		}
		a.Node = append([]string{}, shared...)
		a.Electron = append([]string{}, shared...)
		return nil
	}
	type plain Args
	var split plain
	if err := json.Unmarshal(data, &split); err != nil {
		return fmt.Errorf("expected a list or a {node, electron} object: %w", err)
	}
	*a = Args(split)
	return nil
}

// For returns the arguments for the given application type.
func (a Args) For(appType string) []string {
	if appType == "electron" {
		return a.Electron
	}
	return a.Node
}

// Ref is either a path to a file or an inline object.
type Ref struct {
	Path  string
	Value Map
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Path)
	}
	return json.Unmarshal(data, &r.Value)
}

// MarshalJSON implements json.Marshaler.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Path != "" {
		return json.Marshal(r.Path)
	}
	return json.Marshal(r.Value)
}

// Decode converts a raw Map into the typed value pointed to by v. Unknown
// keys are ignored.
func Decode(m Map, v any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// Encode converts a typed value into a raw Map.
func Encode(v any) (Map, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	m := Map{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return m, nil
}
