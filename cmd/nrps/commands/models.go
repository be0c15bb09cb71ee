package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/display"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/models"
)

// ModelsCmd represents the models command
var ModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect, validate and fetch classifier artifacts",
	Long: `Manage the classifier artifacts in the models directory.

Each scheme is a subdirectory holding manifest.toml and a libsvm model file.

Examples:
  nrps models list
  nrps models validate --models /srv/nrps/models
  nrps models fetch https://example.org/nrps-models.tar.gz --dest ./models`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loadable schemes",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load every scheme and report the ones that fail",
	Long: `Load every scheme (or those named by --schemes) and report each failure
with its reason. Exits non-zero when any scheme fails to load.`,
	Args: cobra.NoArgs,
	RunE: runModelsValidate,
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch <source>",
	Short: "Download a model bundle",
	Long: `Download a model bundle into an empty directory.

The source is anything go-getter understands: a local directory, an http(s)
archive URL, a git repository or an S3/GCS location. Plain http(s) downloads
from loopback or private addresses are refused unless --allow-private is set.

The bundle is loaded before it is moved into place, so a bundle without a
single loadable scheme never replaces the destination.`,
	Args: cobra.ExactArgs(1),
	RunE: runModelsFetch,
}

func init() {
	for _, c := range []*cobra.Command{modelsListCmd, modelsValidateCmd} {
		c.Flags().String("models", am.DefaultModelsDir, "Directory holding one subdirectory per scheme")
		c.Flags().StringSlice("schemes", nil, "Schemes to load (default: every scheme)")
	}
	modelsFetchCmd.Flags().String("dest", "", "Destination directory (default: models.dir)")
	modelsFetchCmd.Flags().Duration("timeout", 5*time.Minute, "Timeout for http(s) downloads")
	modelsFetchCmd.Flags().Bool("allow-private", false, "Allow http(s) sources on loopback or private networks")

	ModelsCmd.AddCommand(modelsListCmd)
	ModelsCmd.AddCommand(modelsValidateCmd)
	ModelsCmd.AddCommand(modelsFetchCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, failures, err := models.Load(cfg.Models.Dir, cfg.Models.Schemes, logger.ComponentLogger("models"))
	if err != nil {
		return err
	}

	if store.Len() > 0 {
		if err := display.WriteSchemes(cmd.OutOrStdout(), store.Artifacts()); err != nil {
			return err
		}
	} else {
		pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("No loadable schemes in %s", cfg.Models.Dir)
	}
	display.WriteFailures(cmd.ErrOrStderr(), failures)
	return nil
}

func runModelsValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return validateModels(cmd.OutOrStdout(), cfg)
}

// validateModels reports every scheme and fails when any did not load.
func validateModels(w io.Writer, cfg *am.Config) error {
	store, failures, err := models.Load(cfg.Models.Dir, cfg.Models.Schemes, logger.ComponentLogger("models"))
	if err != nil {
		return err
	}

	ok := pterm.Success.WithWriter(w)
	for _, a := range store.Artifacts() {
		ok.Printfln("%s: %d classes, %s, %d support vectors", a.Scheme, len(a.Classes), a.Encoding, a.Model.TotalSV())
	}
	fail := pterm.Error.WithWriter(w)
	for _, f := range failures {
		if f.Path != "" {
			fail.Printfln("%s (%s): %s", f.Scheme, f.Path, f.Reason)
		} else {
			fail.Printfln("%s: %s", f.Scheme, f.Reason)
		}
	}

	if len(failures) > 0 {
		return errors.Mark(
			errors.Newf("%d of %d schemes failed to load", len(failures), len(failures)+store.Len()),
			errors.ErrArtifactLoad,
		)
	}
	return nil
}

func runModelsFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dest, _ := cmd.Flags().GetString("dest")
	if dest == "" {
		dest = cfg.Models.Dir
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	allowPrivate, _ := cmd.Flags().GetBool("allow-private")
	opts := models.FetchOptions{Timeout: timeout, AllowPrivate: allowPrivate}

	res, err := models.Fetch(cmd.Context(), args[0], dest, opts, logger.ComponentLogger("models"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.Success.WithWriter(out).Printfln("Fetched %d schemes into %s", len(res.Schemes), res.Dir)
	if res.Detected != res.Source {
		fmt.Fprintf(out, "  source: %s\n", res.Detected)
	}
	for _, s := range res.Schemes {
		fmt.Fprintf(out, "  %s\n", s)
	}
	display.WriteFailures(cmd.ErrOrStderr(), res.Failures)
	return nil
}
