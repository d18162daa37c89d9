package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20, cfg.MaxUploadMB)
	assert.Equal(t, 1920, cfg.Optimize.MaxWidth)
	assert.Equal(t, 1080, cfg.Optimize.MaxHeight)
	assert.InDelta(t, 0.8, cfg.Optimize.Quality, 1e-9)
	assert.Equal(t, int64(500), cfg.Optimize.ThresholdKB)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.Storage.Endpoint)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("OPTIMIZE_MAX_WIDTH", "1280")
	t.Setenv("OPTIMIZE_QUALITY", "0.65")
	t.Setenv("STORAGE_BUCKET", "portal-media")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.org, https://example.org")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 1280, cfg.Optimize.MaxWidth)
	assert.InDelta(t, 0.65, cfg.Optimize.Quality, 1e-9)
	assert.Equal(t, "portal-media", cfg.Storage.Bucket)
	assert.Equal(t, []string{"https://admin.example.org", "https://example.org"}, cfg.AllowedOrigins)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imageopt.yaml")
	content := []byte(`
port: 7000
optimize:
  max_height: 720
  placeholder: true
storage:
  endpoint: fra1.digitaloceanspaces.com
  base_folder: portal
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 720, cfg.Optimize.MaxHeight)
	assert.Equal(t, 1920, cfg.Optimize.MaxWidth)
	assert.True(t, cfg.Optimize.Placeholder)
	assert.Equal(t, "fra1.digitaloceanspaces.com", cfg.Storage.Endpoint)
	assert.Equal(t, "portal", cfg.Storage.BaseFolder)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imageopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\n"), 0o644))
	t.Setenv("PORT", "7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
