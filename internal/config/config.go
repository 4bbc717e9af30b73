// Package config holds the immutable per-run configuration for tally.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fennec-cloud/tally/internal/engine"
)

// Default file names, relative to the working directory.
const (
	AccountsFile    = "accounts.txt"
	ExcludedOUsFile = "excluded-ous.txt"
	SummaryFile     = "aws-resources.csv"
	EventLogFile    = "aws-resources-log.csv"
	ErrorLogFile    = "aws-errors-log.txt"
)

// DefaultMaxWorkers suits large estates: the work is I/O bound, so high
// fan-out is safe and recommended.
const DefaultMaxWorkers = 100

// DefaultRoleName is the role assumed in member accounts discovered through
// AWS Organizations.
const DefaultRoleName = "OrganizationAccountAccessRole"

// Config is the run configuration snapshot. Read-only after Validate;
// shared by every dispatched task without locking.
type Config struct {
	// Account source selection. At most one of All, FromFile, Profile.
	All      bool   `toml:"all"`
	FromFile bool   `toml:"accounts"`
	Profile  string `toml:"profile"`
	// Exclude enables organizational-unit filtering from ExcludedOUsFile.
	Exclude bool `toml:"exclude"`

	// RoleName is assumed in org-discovered member accounts.
	RoleName string `toml:"role"`

	// Images enables registry container image counting.
	Images bool `toml:"images"`
	// Data only tunes the closing hints; data categories are always counted.
	Data bool `toml:"data"`

	// MaxImageTags caps counted tags per registry image. Range [1,1000].
	MaxImageTags int `toml:"max_image_tags"`
	// MaxWorkers bounds concurrent account tasks. Range [1,1000].
	MaxWorkers int `toml:"max_workers"`
	// MaxProbeWorkers bounds concurrent probe tasks; defaults to MaxWorkers.
	MaxProbeWorkers int `toml:"max_probe_workers"`

	// Debug disables all parallelism and exits on the first error.
	Debug bool `toml:"debug"`
	// Verbose enables debug-level logging.
	Verbose bool `toml:"verbose"`
}

// Default returns the configuration the CLI starts from.
func Default() *Config {
	return &Config{
		RoleName:     DefaultRoleName,
		MaxImageTags: 5,
		MaxWorkers:   DefaultMaxWorkers,
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range tunables. Called once at startup, before
// any dispatch: a failure here is fatal.
func (c *Config) Validate() error {
	if c.MaxImageTags < 1 || c.MaxImageTags > 1000 {
		return fmt.Errorf("max-image-tags %d out of range: [1 .. 1000]", c.MaxImageTags)
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 1000 {
		return fmt.Errorf("max-workers %d out of range: [1 .. 1000]", c.MaxWorkers)
	}
	if c.MaxProbeWorkers == 0 {
		c.MaxProbeWorkers = c.MaxWorkers
	}
	if c.MaxProbeWorkers < 1 || c.MaxProbeWorkers > 1000 {
		return fmt.Errorf("max-probe-workers %d out of range: [1 .. 1000]", c.MaxProbeWorkers)
	}
	return nil
}

// EnabledCategories maps each resource category to whether this run counts
// it. Only registry images are opt-in; everything else is always on.
func (c *Config) EnabledCategories() map[string]bool {
	enabled := make(map[string]bool, len(engine.Categories()))
	for _, cat := range engine.Categories() {
		enabled[cat] = true
	}
	enabled[engine.CategoryRegistryImages] = c.Images
	return enabled
}
