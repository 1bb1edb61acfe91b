// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, metrics, hot-reload and debug introspection for
// hioload-ipc servers.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - TOML config file loading and fsnotify-based hot-reload
//   - Counter and gauge telemetry
//   - Debug hooks and probe registration
package control
