package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/errors"
)

// loadConfig resolves the config cascade and applies any flags set on cmd.
// CLI flags take precedence over every config source.
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	loaded, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	cfg := *loaded
	cfg.Models.Schemes = append([]string(nil), loaded.Models.Schemes...)

	flags := cmd.Flags()
	if changed(flags, "models") {
		cfg.Models.Dir, _ = flags.GetString("models")
		// The reference table follows the models directory given on the
		// command line unless --signatures names one too.
		cfg.Stachelhaus.Signatures = ""
	}
	if changed(flags, "schemes") {
		cfg.Models.Schemes, _ = flags.GetStringSlice("schemes")
	}
	if changed(flags, "signatures") {
		cfg.Stachelhaus.Signatures, _ = flags.GetString("signatures")
	}
	if changed(flags, "no-stachelhaus") {
		off, _ := flags.GetBool("no-stachelhaus")
		cfg.Stachelhaus.Enabled = !off
	}
	if changed(flags, "long-hits") {
		cfg.Stachelhaus.LongHits, _ = flags.GetInt("long-hits")
	}
	if changed(flags, "min-matches") {
		cfg.Stachelhaus.MinMatches, _ = flags.GetInt("min-matches")
	}
	if changed(flags, "count") {
		cfg.Predict.Count, _ = flags.GetInt("count")
	}
	if changed(flags, "workers") {
		cfg.Predict.Workers, _ = flags.GetInt("workers")
	}
	if changed(flags, "format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if changed(flags, "save") {
		cfg.Database.Save, _ = flags.GetBool("save")
	}
	if changed(flags, "db") {
		cfg.Database.Path, _ = flags.GetString("db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "configuration validation failed"),
			"run `nrps am where` to see which source set each value",
		)
	}
	return &cfg, nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}
