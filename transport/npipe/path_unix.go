//go:build !windows
// +build !windows

// File: transport/npipe/path_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import (
	"os"
	"path/filepath"
	"strings"
)

// PipePath normalizes an endpoint name into a Unix socket path. A name
// that already looks like a path is used as-is.
func PipePath(name string) string {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	return filepath.Join(os.TempDir(), name+".sock")
}
