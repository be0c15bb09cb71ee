package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/db"
	"github.com/teranos/nrps/display"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/models"
	"github.com/teranos/nrps/predict"
	"github.com/teranos/nrps/signature"
	"github.com/teranos/nrps/stach"
)

// PredictCmd represents the predict command
var PredictCmd = &cobra.Command{
	Use:   "predict <signatures.tsv>",
	Short: "Predict A-domain substrate specificity",
	Long: `Predict the substrate of each adenylation domain signature.

The input is tab-separated, one domain per line:

  SIGNATURE<TAB>NAME
  SIGNATURE<TAB>SUBSTRATE<TAB>NAME

where SIGNATURE is the 34-residue extracted signature. Pass - to read stdin.
Each line gets the Stachelhaus table lookup plus one column per classifier
scheme found in the models directory. Malformed lines and schemes that fail
to load are reported on stderr without stopping the run.

Examples:
  nrps predict data/example.tsv
  nrps predict data/example.tsv --schemes HYDROPHOBICITY --count 2
  nrps predict data/example.tsv --format json --save`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	flags := PredictCmd.Flags()
	flags.String("models", am.DefaultModelsDir, "Directory holding one subdirectory per scheme")
	flags.String("signatures", "", "Reference signature table (default <models>/signatures.tsv)")
	flags.StringSlice("schemes", nil, "Schemes to run (default: every scheme in the models directory)")
	flags.Bool("no-stachelhaus", false, "Skip the Stachelhaus table lookup")
	flags.Int("long-hits", am.DefaultLongHits, "Distinct calls reported from the 34-residue comparison")
	flags.Int("min-matches", 0, "Minimum matching 10-residue positions for a Stachelhaus call")
	flags.IntP("count", "c", 1, "Best labels printed per scheme")
	flags.IntP("workers", "w", 0, "Parallel predictions (0 = physical CPU cores)")
	flags.StringP("format", "f", am.DefaultFormat, "Output format: tsv, json, table")
	flags.Bool("save", false, "Archive the run in the results database")
	flags.String("db", am.DefaultDatabasePath, "Results database path")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pio := pipelineIO{
		Source: args[0],
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}
	if pio.Source == "-" {
		pio.In = cmd.InOrStdin()
	}

	_, err = runPipeline(cmd.Context(), cfg, pio)
	return err
}

// pipelineIO carries the streams of one predict run.
type pipelineIO struct {
	Source string
	In     io.Reader // read instead of Source when set
	Out    io.Writer
	Err    io.Writer
}

// pipelineResult is what one predict run produced.
type pipelineResult struct {
	RunID   string
	Schemes []string
	Records []predict.Record
	Summary predict.Summary
}

// runPipeline reads inputs, predicts them, optionally archives the run and
// renders records to pio.Out and the summary to pio.Err.
func runPipeline(ctx context.Context, cfg *am.Config, pio pipelineIO) (*pipelineResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := display.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.ComponentLogger("nrps").With(logger.FieldsFromContext(ctx)...)

	var (
		inputs   []signature.Input
		rejected []*signature.ValidationError
	)
	if pio.In != nil {
		inputs, rejected, err = signature.Read(pio.In)
	} else {
		inputs, rejected, err = signature.ReadFile(pio.Source)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", pio.Source)
	}
	for _, r := range rejected {
		log.Debugw("Input rejected", logger.FieldLine, r.Line, logger.FieldReason, r.Reason)
	}

	engine, failures, err := buildEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	records, err := engine.PredictAll(ctx, inputs, cfg.Predict.Workers)
	if err != nil {
		return nil, err
	}
	summary := predict.Summarize(records, rejected, failures)

	res := &pipelineResult{
		Schemes: engine.Schemes(),
		Records: records,
		Summary: summary,
	}

	if cfg.Database.Save {
		if err := saveRun(ctx, cfg, runID, pio.Source, engine, records, summary); err != nil {
			return nil, err
		}
		res.RunID = runID
	}

	report := display.Report{RunID: res.RunID, Schemes: res.Schemes, Records: records, Summary: &summary}
	opts := display.Options{Schemes: res.Schemes, Count: cfg.Predict.Count, Stachelhaus: engine.Stachelhaus()}
	if err := display.Write(pio.Out, format, report, opts); err != nil {
		return nil, err
	}
	display.WriteSummary(pio.Err, summary)
	if res.RunID != "" {
		log.Infow("Run archived", logger.FieldPath, cfg.GetDatabasePath())
	}
	return res, nil
}

// buildEngine loads the reference table and the model store.
func buildEngine(cfg *am.Config, log *zap.SugaredLogger) (*predict.Engine, []models.Failure, error) {
	var matcher *stach.Matcher
	if cfg.Stachelhaus.Enabled {
		table, err := stach.LoadFile(cfg.SignaturesPath(), log.Named("stach"))
		if err != nil {
			return nil, nil, err
		}
		matcher = stach.NewMatcher(table, stach.Options{
			LongHits:   cfg.Stachelhaus.LongHits,
			MinMatches: cfg.Stachelhaus.MinMatches,
		})
	}

	store, failures, err := models.Load(cfg.Models.Dir, cfg.Models.Schemes, log)
	if err != nil {
		return nil, nil, err
	}

	engine, err := predict.NewEngine(predict.Options{
		Matcher:  matcher,
		Store:    store,
		Failures: failures,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, failures, nil
}

func saveRun(ctx context.Context, cfg *am.Config, runID, source string, engine *predict.Engine, records []predict.Record, summary predict.Summary) error {
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	input := source
	if abs, err := filepath.Abs(source); err == nil && source != "-" {
		input = abs
	}
	store := db.NewResultStore(database, logger.ComponentLogger("db"))
	return store.SaveRun(ctx, &db.Run{
		ID:          runID,
		InputPath:   input,
		ModelsDir:   cfg.Models.Dir,
		Schemes:     engine.Schemes(),
		Stachelhaus: engine.Stachelhaus(),
		Summary:     summary,
	}, records)
}
