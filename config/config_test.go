package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/config"
)

func TestDefaultUsesDocumentedPort(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 7800, cfg.Port)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("INSPECTOR_PORT", "9000")
	t.Setenv("TRACES_DIR", "/tmp/custom-traces")
	t.Setenv("INSPECTOR_DEBUG", "1")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/tmp/custom-traces", cfg.TracesDir)
	assert.True(t, cfg.Debug)
}

func TestLoadOverlaysYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/inspector.yaml"
	require.NoError(t, os.WriteFile(path, []byte("port: 8123\nmax_writers: 10\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Port)
	assert.Equal(t, 10, cfg.MaxWriters)

	t.Setenv("INSPECTOR_PORT", "9999")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port, "env var must win over file value")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/inspector.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Default().TracesDir, cfg.TracesDir)
}
