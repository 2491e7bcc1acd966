package npm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DependencyMissingError reports an optional package that a feature needs
// but that is not installed in the project.
type DependencyMissingError struct {
	Package string
	Feature string
}

// Error implements the error interface.
func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("%s is powered by %q, please install it via `npm i %s -D`", e.Feature, e.Package, e.Package)
}

// Installed reports the directory of package name in the nearest
// node_modules at or above cwd.
func Installed(cwd, name string) (string, bool) {
	for dir := cwd; ; {
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if _, err := os.Stat(filepath.Join(pkgDir, ManifestFile)); err == nil {
			return pkgDir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Require is Installed that fails with a DependencyMissingError.
func Require(cwd, name, feature string) (string, error) {
	dir, ok := Installed(cwd, name)
	if !ok {
		return "", &DependencyMissingError{Package: name, Feature: feature}
	}
	return dir, nil
}

// Bin returns the path of an executable installed under node_modules/.bin at
// or above cwd.
func Bin(cwd, name string) (string, error) {
	binName := name
	if runtime.GOOS == "windows" {
		binName += ".cmd"
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, "node_modules", ".bin", binName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("error accessing path %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("executable %q not found under node_modules/.bin", name)
		}
		dir = parent
	}
}

// DesktopRuntime is the resolved Electron executable. A nil *DesktopRuntime
// means the project runs on plain Node.
type DesktopRuntime struct {
	Executable string
}

// ProbeDesktopRuntime resolves the Electron executable installed in the
// project. The electron package records its binary location in path.txt,
// relative to its dist directory; the .bin shim is the fallback.
func ProbeDesktopRuntime(cwd string) (*DesktopRuntime, error) {
	pkgDir, err := Require(cwd, "electron", `"Application type: electron"`)
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(filepath.Join(pkgDir, "path.txt")); err == nil {
		rel := strings.TrimSpace(string(data))
		if rel != "" {
			exe := filepath.Join(pkgDir, "dist", filepath.FromSlash(rel))
			if _, err := os.Stat(exe); err == nil {
				return &DesktopRuntime{Executable: exe}, nil
			}
		}
	}

	exe, err := Bin(cwd, "electron")
	if err != nil {
		return nil, fmt.Errorf("electron is installed but its executable could not be located: %w", err)
	}
	return &DesktopRuntime{Executable: exe}, nil
}
