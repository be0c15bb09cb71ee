package am

import (
	"strings"

	"github.com/teranos/nrps/errors"
)

// Formats accepted by output.format
var Formats = []string{"tsv", "json", "table"}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Models.Dir == "" {
		return errors.New("models.dir cannot be empty")
	}
	seen := make(map[string]bool, len(c.Models.Schemes))
	for _, s := range c.Models.Schemes {
		if strings.TrimSpace(s) == "" {
			return errors.New("models.schemes cannot contain an empty name")
		}
		if seen[s] {
			return errors.Newf("models.schemes lists %s twice", s)
		}
		seen[s] = true
	}

	if c.Stachelhaus.LongHits < 1 {
		return errors.Newf("stachelhaus.long_hits must be >= 1, got %d", c.Stachelhaus.LongHits)
	}
	// Short signatures have 10 positions, the last always matches
	if c.Stachelhaus.MinMatches < 0 || c.Stachelhaus.MinMatches > 10 {
		return errors.Newf("stachelhaus.min_matches must be between 0 and 10, got %d", c.Stachelhaus.MinMatches)
	}

	if c.Predict.Count < 1 {
		return errors.Newf("predict.count must be >= 1, got %d", c.Predict.Count)
	}
	// Workers: 0 = physical cores, negative = invalid
	if c.Predict.Workers < 0 {
		return errors.Newf("predict.workers must be >= 0, got %d", c.Predict.Workers)
	}

	valid := false
	for _, f := range Formats {
		if strings.EqualFold(c.Output.Format, f) {
			valid = true
		}
	}
	if !valid {
		return errors.Newf("output.format must be one of %s, got %q", strings.Join(Formats, ", "), c.Output.Format)
	}

	if c.Database.Save && c.Database.Path == "" {
		return errors.New("database.path cannot be empty when database.save is enabled")
	}

	return nil
}
