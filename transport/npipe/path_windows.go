//go:build windows
// +build windows

// File: transport/npipe/path_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import "strings"

const pipePrefix = `\\.\pipe\`

// PipePath normalizes an endpoint name into the named-pipe namespace.
func PipePath(name string) string {
	if strings.HasPrefix(name, pipePrefix) {
		return name
	}
	return pipePrefix + name
}
