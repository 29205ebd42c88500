package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Setenv("USER", "alice")
	cfg := Default()
	assert.NotEmpty(t, cfg.ShelfBase)
	assert.Equal(t, "alice", cfg.ShelfUser)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysFile(t *testing.T) {
	t.Setenv("USER", "alice")
	t.Setenv(EnvFile, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "famkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nvmm:\n  shelf_base: "+dir+"\n  log_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ShelfBase)
	assert.Equal(t, "alice", cfg.ShelfUser, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.CheckBase())

	assert.Equal(t, filepath.Join(dir, "alice_NVMM_ROOT"), cfg.RootShelfPath())
	assert.Equal(t, filepath.Join(dir, "alice_NVMM_HEAP_3_1_0"), cfg.HeapZonePath(3, 1, 0))
	assert.Equal(t, cfg.HeapZonePath(3, 1, 0), cfg.HeapZones()(3, 1, 0))
	assert.Equal(t, filepath.Join(dir, "alice_NVMM_HEAP_*"), cfg.HeapZoneGlob())
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nvmm:\n  shelf_user: bob\n"), 0o600))
	t.Setenv(EnvFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.ShelfUser)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvFile, "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nvmm: [unclosed"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := Config{ShelfBase: "/tmp", ShelfUser: "u", LogLevel: "warn"}
	require.NoError(t, ok.Validate())

	c := ok
	c.ShelfBase = ""
	require.ErrorIs(t, c.Validate(), ErrNoBase)

	c = ok
	c.ShelfUser = ""
	require.ErrorIs(t, c.Validate(), ErrNoUser)

	c = ok
	c.ShelfUser = "../etc"
	require.ErrorIs(t, c.Validate(), ErrBadUser)

	c = ok
	c.LogLevel = "loud"
	require.ErrorIs(t, c.Validate(), ErrBadLogName)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	c = ok
	c.ShelfBase = f
	require.ErrorIs(t, c.CheckBase(), ErrNotDir)
}

func TestMarshalRoundTrip(t *testing.T) {
	in := Config{ShelfBase: "/mnt/fam", ShelfUser: "carol", LogLevel: "error"}
	data, err := in.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "nvmm:")

	var out Config
	require.NoError(t, out.Merge(data))
	assert.Equal(t, in, out)
}
