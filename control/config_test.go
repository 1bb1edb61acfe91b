// control/config_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestConfigStore_MergeAndSnapshot(t *testing.T) {
	cs := NewConfigStore()
	assert.Equal(t, len(cs.GetSnapshot()), 0)

	cs.SetConfig(map[string]any{"endpoint": "svc", "buffer_size": int64(4096)})
	cs.SetConfig(map[string]any{"buffer_size": int64(8192)})

	snap := cs.GetSnapshot()
	assert.Equal(t, snap["endpoint"], "svc")
	assert.Equal(t, snap["buffer_size"], int64(8192))

	// Snapshot is a copy, mutating it must not leak back.
	snap["endpoint"] = "other"
	assert.Equal(t, cs.GetSnapshot()["endpoint"], "svc")
}

func TestConfigStore_ListenersFireOnChange(t *testing.T) {
	cs := NewConfigStore()
	calls := 0
	cs.OnReload(func() { calls++ })
	cs.OnReload(func() { calls++ })

	cs.SetConfig(map[string]any{"k": 1})
	assert.Equal(t, calls, 2)

	cs.SetConfig(map[string]any{"k": 2})
	assert.Equal(t, calls, 4)
}

func TestConfigStore_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	body := "endpoint = \"test-channel\"\nbuffer_size = 4096\n"
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o600))

	cs := NewConfigStore()
	assert.NilError(t, cs.LoadFile(path))

	snap := cs.GetSnapshot()
	assert.Equal(t, snap["endpoint"], "test-channel")
	assert.Equal(t, snap["buffer_size"], int64(4096))
}

func TestConfigStore_LoadFileErrors(t *testing.T) {
	cs := NewConfigStore()

	err := cs.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Assert(t, err != nil)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	assert.NilError(t, os.WriteFile(bad, []byte("endpoint = \n"), 0o600))
	err = cs.LoadFile(bad)
	assert.ErrorContains(t, err, "decode")
}
