package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsBufferSmallerThanBatch(t *testing.T) {
	cfg := Default()
	cfg.BatchSize = 100
	cfg.BufferCapacity = 10
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer_capacity")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(&cfg))
}

func TestEnvironmentOverridesWinOverDefaults(t *testing.T) {
	t.Setenv("BATCH_SIZE", "42")
	t.Setenv("PROTOCOL", "otlp")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.BatchSize)
	assert.Equal(t, ProtocolOTLP, cfg.Protocol)
}

func TestValidateRejectsMissingDiskFallbackParent(t *testing.T) {
	cfg := Default()
	cfg.DiskFallbackPath = "/definitely/does/not/exist/spill"
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk_fallback_path")
}

func TestValidateAcceptsExistingDiskFallbackParent(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DiskFallbackPath = dir + "/spill"
	assert.NoError(t, Validate(&cfg))
}

func TestLoadFromYAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("batch_size: 77\nprotocol: ndjson\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.BatchSize)
}
