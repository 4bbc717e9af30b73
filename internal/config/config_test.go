package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-cloud/tally/internal/engine"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxWorkers, cfg.MaxWorkers)
	assert.Equal(t, cfg.MaxWorkers, cfg.MaxProbeWorkers, "probe pool defaults to account pool size")
	assert.Equal(t, 5, cfg.MaxImageTags)
	assert.Equal(t, DefaultRoleName, cfg.RoleName)
}

func TestLoadValidConfig(t *testing.T) {
	content := `
max_workers = 300
max_image_tags = 10
images = true
role = "InventoryAudit"
`
	path := filepath.Join(t.TempDir(), "tally.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 300, cfg.MaxWorkers)
	assert.Equal(t, 10, cfg.MaxImageTags)
	assert.True(t, cfg.Images)
	assert.Equal(t, "InventoryAudit", cfg.RoleName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers = [not toml"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRangeTunables(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers too low", func(c *Config) { c.MaxWorkers = 0 }},
		{"workers too high", func(c *Config) { c.MaxWorkers = 1001 }},
		{"probe workers too high", func(c *Config) { c.MaxProbeWorkers = 5000 }},
		{"image tags too low", func(c *Config) { c.MaxImageTags = 0 }},
		{"image tags too high", func(c *Config) { c.MaxImageTags = 1001 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnabledCategoriesGateImages(t *testing.T) {
	cfg := Default()
	enabled := cfg.EnabledCategories()
	assert.False(t, enabled[engine.CategoryRegistryImages])
	assert.True(t, enabled[engine.CategoryVirtualMachines])
	assert.True(t, enabled[engine.CategoryDataBuckets])
	assert.Len(t, enabled, len(engine.Categories()))

	cfg.Images = true
	assert.True(t, cfg.EnabledCategories()[engine.CategoryRegistryImages])
}
