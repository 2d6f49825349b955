package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Mounts)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logLevel: debug
metricsAddress: ":9090"
stream:
  bufferSize: 1048576
  maxBuffers: 4
mounts:
  - prefix: "s3://my-bucket"
    backend: s3
    s3:
      region: us-east-1
      bucket: my-bucket
  - prefix: "file:///srv/data"
    backend: local
    local:
      root: /srv/data
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddress)
	assert.Equal(t, 1048576, cfg.Stream.BufferSize)
	assert.Equal(t, 4, cfg.Stream.MaxBuffers)
	require.Len(t, cfg.Mounts, 2)
	assert.Equal(t, "s3", cfg.Mounts[0].Backend)
	assert.Equal(t, "my-bucket", cfg.Mounts[0].S3.Bucket)
	assert.Equal(t, "/srv/data", cfg.Mounts[1].Local.Root)
}

func TestLoadRejectsBadMount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mounts:
  - prefix: "s3://b"
    backend: s3
`), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "s3.bucket is required")

	require.NoError(t, os.WriteFile(path, []byte(`
mounts:
  - prefix: "x://y"
    backend: carrier-pigeon
`), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OBJSTREAM_LOG_LEVEL", "error")
	t.Setenv("OBJSTREAM_METRICS_ADDR", ":9999")
	t.Setenv("OBJSTREAM_BUFFER_SIZE", "4096")
	t.Setenv("OBJSTREAM_MAX_WORKERS", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.MetricsAddress)
	assert.Equal(t, 4096, cfg.Stream.BufferSize)
	assert.Equal(t, 3, cfg.Stream.MaxWorkers)
}

func TestEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("OBJSTREAM_LOG_LEVEL", "shouty")
	t.Setenv("OBJSTREAM_BUFFER_SIZE", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.Stream.BufferSize)
}
