// Package npm reads the project manifest (package.json) and probes the
// node_modules tree for optional tooling such as the desktop runtime and the
// installer packager.
package npm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFile is the project manifest file name.
const ManifestFile = "package.json"

// Module types declared by the manifest's "type" field.
const (
	ModuleTypeCommonJS = "commonjs"
	ModuleTypeModule   = "module"
)

// Manifest holds the manifest fields the orchestrator uses.
type Manifest struct {
	Name             string            `json:"name"`
	Main             string            `json:"main"`
	Type             string            `json:"type"`
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`

	// Path is where the manifest was read from.
	Path string `json:"-"`
}

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m.Path = path
	return &m, nil
}

// FindManifest reads the nearest manifest at or above dir. It returns
// (nil, nil) when no manifest exists up to the filesystem root.
func FindManifest(dir string) (*Manifest, error) {
	for {
		candidate := filepath.Join(dir, ManifestFile)
		_, err := os.Stat(candidate)
		if err == nil {
			return ReadManifest(candidate)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error accessing path %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ModuleType returns the declared module type, or "" when the field is
// missing or not a recognised value.
func (m *Manifest) ModuleType() string {
	if m == nil {
		return ""
	}
	switch m.Type {
	case ModuleTypeCommonJS, ModuleTypeModule:
		return m.Type
	}
	return ""
}

// RuntimeDependencies returns the sorted, de-duplicated names of the
// runtime and peer dependencies.
func (m *Manifest) RuntimeDependencies() []string {
	seen := make(map[string]struct{}, len(m.Dependencies)+len(m.PeerDependencies))
	for name := range m.Dependencies {
		seen[name] = struct{}{}
	}
	for name := range m.PeerDependencies {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
