// Package session derives the session identifier sent with every
// generation request.
package session

import (
	"path/filepath"
	"strings"
)

// Default is the session id used when no workspace root is known.
const Default = "default"

// Resolve returns the final path segment of rootPath, or Default when
// rootPath is empty or has no usable final segment.
func Resolve(rootPath string) string {
	if strings.TrimSpace(rootPath) == "" {
		return Default
	}
	base := filepath.Base(filepath.Clean(rootPath))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return Default
	}
	return base
}
