package pathutil

import (
	"path/filepath"
	"strings"
)

// Resolve returns p unchanged when absolute, otherwise p joined onto cwd.
func Resolve(p, cwd string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}

// Normalize cleans a user-supplied relative path and converts it to
// forward slashes. Empty input stays empty.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}

// IsAncestorOrEqual reports whether target lies at or below ancestor. Both
// paths must be absolute and are compared component-wise, so "release-x" is
// not considered to be inside "release".
func IsAncestorOrEqual(ancestor, target string) bool {
	rel, err := filepath.Rel(ancestor, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// TrimExt returns p without its final extension.
func TrimExt(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p))
}
