package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, 2, cfg.Crawler.Workers)
	require.Equal(t, 3, cfg.Crawler.MaxPagesDefault)
	require.Equal(t, 2, cfg.Crawler.RetryBudget)
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Equal(t, "data", cfg.Storage.BaseDir)
	require.Equal(t, "crawl_tasks", cfg.DB.Table)
	require.True(t, cfg.Headless.Headless)
	require.Equal(t, 1500*time.Millisecond, cfg.Delay())
	require.Equal(t, time.Second, cfg.Jitter())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9100
crawler:
  workers: 4
  max_pages_default: 5
storage:
  backend: memory
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 4, cfg.Crawler.Workers)
	require.Equal(t, 5, cfg.Crawler.MaxPagesDefault)
	require.Equal(t, "memory", cfg.Storage.Backend)
	// Values the file does not mention keep their defaults.
	require.Equal(t, 2.0, cfg.Crawler.MaxRPS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Storage.Backend = "s3"
	require.Error(t, cfg.Validate())
}

func TestValidateGCSRequiresBucket(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Storage.Backend = "gcs"
	require.Error(t, cfg.Validate())

	cfg.Storage.GCSBucket = "crawl-snapshots"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Crawler.Workers = 0
	require.Error(t, cfg.Validate())
}
