// Package pathutil holds the path algorithms used when resolving
// configuration and staging renderer assets: common-prefix collapse,
// prefix removal, and cwd-relative resolution.
package pathutil

import (
	"path/filepath"
	"strings"
)

// LongestCommonPrefix finds the longest sequence of leading path components
// shared by every path. It returns the joined prefix and the number of
// components in it. Fewer than two paths yield ("", 0).
func LongestCommonPrefix(paths []string) (string, int) {
	if len(paths) < 2 {
		return "", 0
	}

	components := make([][]string, len(paths))
	for i, p := range paths {
		components[i] = Split(p)
	}

	first := components[0]
	var common []string
	for i, component := range first {
		shared := true
		for _, other := range components[1:] {
			if i >= len(other) || other[i] != component {
				shared = false
				break
			}
		}
		if !shared {
			break
		}
		common = append(common, component)
	}

	if len(common) == 0 {
		return "", 0
	}
	return filepath.Join(common...), len(common)
}

// RemovePrefix drops the first levels components of a relative path. A
// path that is itself entirely prefix collapses to ".".
func RemovePrefix(p string, levels int) string {
	if levels <= 0 {
		return p
	}
	parts := Split(p)
	if len(parts) == 0 {
		return p
	}
	if levels >= len(parts) {
		return "."
	}
	return filepath.Join(parts[levels:]...)
}

// Split normalises p and returns its non-empty components.
func Split(p string) []string {
	cleaned := filepath.Clean(filepath.FromSlash(p))
	var out []string
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
