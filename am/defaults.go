package am

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default values shared with the CLI flag help.
const (
	DefaultModelsDir      = "data/models"
	DefaultSignaturesFile = "signatures.tsv"
	DefaultDatabasePath   = "nrps.db"
	DefaultFormat         = "tsv"
	DefaultLongHits       = 3
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("models.dir", DefaultModelsDir)
	v.SetDefault("models.schemes", []string{})

	v.SetDefault("stachelhaus.enabled", true)
	v.SetDefault("stachelhaus.signatures", "") // follows models.dir
	v.SetDefault("stachelhaus.long_hits", DefaultLongHits)
	v.SetDefault("stachelhaus.min_matches", 0)

	v.SetDefault("predict.count", 1)
	v.SetDefault("predict.workers", 0)

	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.json_logs", false)

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.save", false)
}

// SignaturesPath returns the reference table path, derived from the models
// directory unless set explicitly.
func (c *Config) SignaturesPath() string {
	if c.Stachelhaus.Signatures != "" {
		return c.Stachelhaus.Signatures
	}
	dir := c.Models.Dir
	if dir == "" {
		dir = DefaultModelsDir
	}
	return filepath.Join(dir, DefaultSignaturesFile)
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Models: %s, Stachelhaus: %t, Format: %s, Workers: %d}",
		c.Models.Dir, c.Stachelhaus.Enabled, c.Output.Format, c.Predict.Workers)
}
