package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/db"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/predict"
)

const (
	modelsDir   = "../../../data/models"
	exampleFile = "../../../data/example.tsv"
)

func init() {
	pterm.DisableStyling()
}

func testConfig(t *testing.T) *am.Config {
	t.Helper()
	return &am.Config{
		Models:      am.ModelsConfig{Dir: modelsDir},
		Stachelhaus: am.StachelhausConfig{Enabled: true, LongHits: am.DefaultLongHits},
		Predict:     am.PredictConfig{Count: 1, Workers: 2},
		Output:      am.OutputConfig{Format: "tsv"},
		Database:    am.DatabaseConfig{Path: filepath.Join(t.TempDir(), "results.db")},
	}
}

func TestRunPipelineTSV(t *testing.T) {
	var out, errOut bytes.Buffer
	res, err := runPipeline(context.Background(), testConfig(t), pipelineIO{Source: exampleFile, Out: &out, Err: &errOut})
	require.NoError(t, err)

	assert.Equal(t, []string{"HYDROPHOBICITY"}, res.Schemes)
	assert.Empty(t, res.RunID, "nothing archived without database.save")
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 3, res.Summary.Predicted)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name\tStach\tAA10 score\tAA34 score\tHYDROPHOBICITY", lines[0])
	assert.Equal(t, "bpsA\tLeu\t1.00\t1.00\thydrophobic(0.97)", lines[1])
	assert.Equal(t, "thrA\tThr\t1.00\t1.00\tN/A", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "CAC48361.1.A1_Hpg\tHpg\t1.00\t1.00\t"), lines[3])

	assert.Contains(t, errOut.String(), "3 of 3 inputs predicted")
}

func TestRunPipelineStdinRejections(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stachelhaus.Enabled = false
	cfg.Output.Format = "json"

	input := strings.Join([]string{
		"LDASFDASLFEMYLLTGGDRNMYGPTEATMCATW\tbpsA",
		"SHORT\tbroken",
		"",
		"LDASFDASLFEMYLLTGGDRNMYGPTEATMCATW",
	}, "\n")

	var out, errOut bytes.Buffer
	res, err := runPipeline(context.Background(), cfg, pipelineIO{
		Source: "-", In: strings.NewReader(input), Out: &out, Err: &errOut,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Predicted)
	assert.Len(t, res.Summary.Rejected, 2)

	var report struct {
		Records []predict.Record `json:"records"`
		Summary predict.Summary  `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Records, 1)
	assert.Nil(t, report.Records[0].Stachelhaus, "lookup disabled")
	assert.Equal(t, 2, len(report.Summary.Rejected))
	assert.Contains(t, errOut.String(), "Rejected line 2")
}

func TestRunPipelineSave(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Save = true

	var out, errOut bytes.Buffer
	res, err := runPipeline(context.Background(), cfg, pipelineIO{Source: exampleFile, Out: &out, Err: &errOut})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	database, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	require.NoError(t, err)
	defer database.Close()

	run, records, err := db.NewResultStore(database, nil).LoadRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Schemes, run.Schemes)
	assert.True(t, run.Stachelhaus)
	assert.Equal(t, res.Records, records)
	assert.True(t, filepath.IsAbs(run.InputPath))

	var runsOut bytes.Buffer
	runs, err := db.NewResultStore(database, nil).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, writeRuns(&runsOut, runs))
	assert.Contains(t, runsOut.String(), res.RunID)
	assert.Contains(t, runsOut.String(), "3/3")
}

func TestRunPipelineErrors(t *testing.T) {
	t.Run("unknown scheme only", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Models.Schemes = []string{"MISSING"}
		_, err := runPipeline(context.Background(), cfg, pipelineIO{Source: exampleFile, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.IsArtifactLoadError(err))
	})

	t.Run("missing reference table", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Stachelhaus.Signatures = filepath.Join(t.TempDir(), "none.tsv")
		_, err := runPipeline(context.Background(), cfg, pipelineIO{Source: exampleFile, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.IsTableBuildError(err))
	})

	t.Run("missing input file", func(t *testing.T) {
		_, err := runPipeline(context.Background(), testConfig(t), pipelineIO{Source: "nope.tsv", Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runPipeline(ctx, testConfig(t), pipelineIO{Source: exampleFile, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestValidateModels(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateModels(&out, testConfig(t)))
	assert.Contains(t, out.String(), "HYDROPHOBICITY: 2 classes")

	cfg := testConfig(t)
	cfg.Models.Schemes = []string{"HYDROPHOBICITY", "MISSING"}
	out.Reset()
	err := validateModels(&out, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 schemes failed")
	assert.Contains(t, out.String(), "MISSING")
}

func TestLoadConfigFlags(t *testing.T) {
	am.Reset()
	t.Cleanup(am.Reset)
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	chdir(t, dir)

	cmd := &cobra.Command{Use: "predict"}
	cmd.Flags().String("models", "", "")
	cmd.Flags().StringSlice("schemes", nil, "")
	cmd.Flags().Bool("no-stachelhaus", false, "")
	cmd.Flags().IntP("count", "c", 1, "")
	cmd.Flags().String("format", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--models", "/srv/models", "--schemes", "A,B", "--no-stachelhaus", "-c", "3"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.Models.Dir)
	assert.Equal(t, []string{"A", "B"}, cfg.Models.Schemes)
	assert.False(t, cfg.Stachelhaus.Enabled)
	assert.Equal(t, 3, cfg.Predict.Count)
	assert.Equal(t, "tsv", cfg.Output.Format, "unset flags keep the configured value")

	cached, err := am.Load()
	require.NoError(t, err)
	assert.Equal(t, am.DefaultModelsDir, cached.Models.Dir, "flags do not leak into the cached config")

	require.NoError(t, cmd.ParseFlags([]string{"--format", "xml"}))
	_, err = loadConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "nrps am where")
}

func TestLoadConfigModelsFlagResetsSignatures(t *testing.T) {
	am.Reset()
	t.Cleanup(am.Reset)
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, am.ProjectConfigName),
		[]byte("[stachelhaus]\nsignatures = \"/srv/ref/signatures.tsv\"\n"), 0o644))

	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "predict"}
		cmd.Flags().String("models", "", "")
		cmd.Flags().String("signatures", "", "")
		require.NoError(t, cmd.ParseFlags(args))
		return cmd
	}

	cfg, err := loadConfig(newCmd())
	require.NoError(t, err)
	assert.Equal(t, "/srv/ref/signatures.tsv", cfg.SignaturesPath())

	cfg, err = loadConfig(newCmd("--models", "/srv/models"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/models", am.DefaultSignaturesFile), cfg.SignaturesPath())

	cfg, err = loadConfig(newCmd("--models", "/srv/models", "--signatures", "/tmp/ref.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ref.tsv", cfg.SignaturesPath())
}

func TestWriteConfig(t *testing.T) {
	cfg := testConfig(t)
	for _, format := range []string{"toml", "json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeConfig(&buf, cfg, format))
			assert.Contains(t, buf.String(), modelsDir)
			assert.Contains(t, buf.String(), "long_hits")
		})
	}

	err := writeConfig(&bytes.Buffer{}, cfg, "ini")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestWriteWhere(t *testing.T) {
	var buf bytes.Buffer
	cascade := []am.CascadeEntry{{Source: am.SourceUser, Path: filepath.Join(t.TempDir(), "nrps.toml")}}
	settings := []am.SettingInfo{
		{Key: "predict.workers", Value: 8, Source: am.SourceEnvironment, SourcePath: "NRPS_PREDICT_WORKERS"},
		{Key: "models.dir", Value: "data/models", Source: am.SourceDefault},
	}
	require.NoError(t, writeWhere(&buf, cascade, settings))

	out := buf.String()
	assert.Contains(t, out, "[user]")
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "NRPS_PREDICT_WORKERS")
	assert.Less(t, strings.Index(out, "models.dir"), strings.Index(out, "predict.workers"),
		"defaults are listed before environment overrides")
}

func TestWriteRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRuns(&buf, nil))
	assert.Contains(t, buf.String(), "No archived runs")

	buf.Reset()
	require.NoError(t, writeRuns(&buf, []db.Run{{ID: "r1", CreatedAt: time.Now(), Schemes: []string{"A"}}}))
	assert.Contains(t, buf.String(), "r1")
}
