package commands

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/db"
	"github.com/teranos/nrps/display"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
)

// DbCmd represents the db (results archive) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Browse archived prediction runs",
	Long: `Browse prediction runs saved with "nrps predict --save".

Examples:
  nrps db runs                    # List archived runs, newest first
  nrps db runs --limit 5          # Only the last five
  nrps db show <run-id>           # Re-render a run as TSV
  nrps db show <run-id> -f json   # Re-render a run as JSON`,
}

var dbRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE:  runDbRuns,
}

var dbShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Render an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runDbShow,
}

func init() {
	DbCmd.PersistentFlags().String("db", am.DefaultDatabasePath, "Results database path")
	dbRunsCmd.Flags().Int("limit", 20, "Number of runs to show (0 = all)")
	dbShowCmd.Flags().StringP("format", "f", am.DefaultFormat, "Output format: tsv, json, table")
	dbShowCmd.Flags().IntP("count", "c", 1, "Best labels printed per scheme")

	DbCmd.AddCommand(dbRunsCmd)
	DbCmd.AddCommand(dbShowCmd)
}

func openResults(cmd *cobra.Command) (*db.ResultStore, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db.NewResultStore(database, logger.ComponentLogger("db")), func() { database.Close() }, nil
}

func runDbRuns(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openResults(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeRuns(cmd.OutOrStdout(), runs)
}

// writeRuns renders the archived run list.
func writeRuns(w io.Writer, runs []db.Run) error {
	if len(runs) == 0 {
		pterm.Info.WithWriter(w).Println("No archived runs")
		return nil
	}
	data := pterm.TableData{{"Run", "Created", "Input", "Predicted", "Rejected", "Schemes"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.InputPath,
			fmt.Sprintf("%d/%d", r.Summary.Predicted, r.Summary.Total),
			fmt.Sprintf("%d", len(r.Summary.Rejected)),
			fmt.Sprintf("%d", len(r.Schemes)),
		})
	}
	err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).WithWriter(w).Render()
	return errors.Wrap(err, "failed to render runs")
}

func runDbShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openResults(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	run, records, err := store.LoadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("format")
	format, err := display.ParseFormat(name)
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")
	if count < 1 {
		return errors.NewInvalidRequestError("--count must be >= 1, got %d", count)
	}

	report := display.Report{RunID: run.ID, Schemes: run.Schemes, Records: records, Summary: &run.Summary}
	opts := display.Options{Schemes: run.Schemes, Count: count, Stachelhaus: run.Stachelhaus}
	return display.Write(cmd.OutOrStdout(), format, report, opts)
}
