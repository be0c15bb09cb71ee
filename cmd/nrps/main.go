package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/cmd/nrps/commands"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
)

var rootCmd = &cobra.Command{
	Use:   "nrps",
	Short: "nrps - NRPS adenylation domain substrate prediction",
	Long: `nrps predicts the amino acid substrate of nonribosomal peptide synthetase
adenylation domains from their extracted 34-residue signatures.

Each signature is looked up in the Stachelhaus reference table and scored by
every trained classifier scheme in the models directory.

Available commands:
  predict - Predict substrates for a file of signatures
  models  - List, validate and fetch classifier artifacts
  am      - Manage nrps configuration ("I am")
  db      - Browse archived prediction runs
  version - Show version information

Examples:
  nrps predict data/example.tsv             # TSV to stdout
  nrps predict data/example.tsv -f table    # Terminal table
  nrps models validate                      # Check every artifact loads
  nrps am where                             # Where each setting came from`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			am.SetConfigFile(path)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if !cmd.Flags().Changed("json-logs") {
			// Config errors surface in the command itself
			if cfg, err := am.Load(); err == nil {
				jsonLogs = cfg.Output.JSONLogs
			}
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs to stderr as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file applied above the user and project files")

	rootCmd.AddCommand(commands.PredictCmd)
	rootCmd.AddCommand(commands.ModelsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}
