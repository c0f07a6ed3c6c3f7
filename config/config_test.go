package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/lv2-runtime/state"
	"github.com/wippyai/lv2-runtime/world"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(world.PathEnv, "")
	t.Setenv(state.BundleEnv, "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, uint32(512), cfg.BlockSize)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.SearchPath)
	assert.Equal(t, state.DefaultDir(), cfg.StateDir)
	assert.Empty(t, cfg.WorldOptions())
	assert.Empty(t, cfg.LoaderOptions())
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lv2host.yaml"), []byte(`
search_path:
  - ~/plugins
  - /opt/lv2
sample_rate: 44100
block_size: 128
filter_language: de
replace_newer_versions: true
memory_limit_pages: 256
state_dir: ~/states.lv2
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "plugins"), "/opt/lv2"}, cfg.SearchPath)
	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, uint32(128), cfg.BlockSize)
	assert.Equal(t, filepath.Join(home, "states.lv2"), cfg.StateDir)
	assert.Len(t, cfg.WorldOptions(), 3)
	assert.Len(t, cfg.LoaderOptions(), 1)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("LV2HOST_SAMPLE_RATE", "96000")
	t.Setenv(world.PathEnv, "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv(state.BundleEnv, "/tmp/bundle.lv2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 96000.0, cfg.SampleRate)
	assert.Equal(t, []string{"/a", "/b"}, cfg.SearchPath)
	assert.Equal(t, "/tmp/bundle.lv2", cfg.StateDir)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sample_rate: 0\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "sample_rate")

	require.NoError(t, os.WriteFile(bad, []byte("log_level: loud\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "log_level")
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	l, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = (&Config{LogLevel: "nope"}).Logger()
	assert.Error(t, err)
}
