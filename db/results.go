package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/predict"
)

// Run describes one archived prediction run.
type Run struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	InputPath   string          `json:"input_path,omitempty"`
	ModelsDir   string          `json:"models_dir,omitempty"`
	Schemes     []string        `json:"schemes"`
	Stachelhaus bool            `json:"stachelhaus"`
	Summary     predict.Summary `json:"summary"`
}

// ResultStore archives prediction runs in SQLite.
type ResultStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewResultStore wraps an already migrated database.
func NewResultStore(db *sql.DB, log *zap.SugaredLogger) *ResultStore {
	return &ResultStore{db: db, log: logger.OrNop(log).Named("results")}
}

// SaveRun stores the run and its records in one transaction. An empty
// run.ID is filled with a new UUID.
func (s *ResultStore) SaveRun(ctx context.Context, run *Run, records []predict.Record) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	schemes, err := json.Marshal(run.Schemes)
	if err != nil {
		return errors.Wrap(err, "encode schemes")
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(err, "begin save")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO prediction_runs
		(id, created_at, input_path, models_dir, schemes, stachelhaus, total, predicted, rejected, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.InputPath, run.ModelsDir, string(schemes), run.Stachelhaus,
		run.Summary.Total, run.Summary.Predicted, len(run.Summary.Rejected), string(summary))
	if err != nil {
		return s.wrap(err, "insert run")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prediction_records
		(run_id, position, input_id, signature, short_call, short_confidence, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return s.wrap(err, "prepare record insert")
	}
	defer stmt.Close()

	for i, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrapf(err, "encode record %d", i)
		}
		call, conf := shortCall(rec)
		if _, err := stmt.ExecContext(ctx, run.ID, i, rec.ID, rec.Signature, call, conf, string(body)); err != nil {
			return s.wrap(err, "insert record")
		}
	}

	if err := tx.Commit(); err != nil {
		return s.wrap(err, "commit run")
	}
	s.log.Infow("Run saved", logger.FieldRunID, run.ID, logger.FieldCount, len(records))
	return nil
}

// ListRuns returns archived runs, newest first. A limit of zero or less
// returns every run.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, input_path, models_dir, schemes, stachelhaus, summary
		FROM prediction_runs ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "list runs")
	}
	return runs, nil
}

// LoadRun returns the run and its records in input order.
func (s *ResultStore) LoadRun(ctx context.Context, id string) (Run, []predict.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, input_path, models_dir, schemes, stachelhaus, summary
		FROM prediction_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, errors.WithHint(
			errors.NewNotFoundError("run %s", id),
			"list archived runs with `nrps db runs`",
		)
	}
	if err != nil {
		return Run{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM prediction_records WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, nil, s.wrap(err, "load records")
	}
	defer rows.Close()

	var records []predict.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return Run{}, nil, s.wrap(err, "scan record")
		}
		var rec predict.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return Run{}, nil, errors.Wrapf(err, "decode record of run %s", id)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, s.wrap(err, "load records")
	}
	return run, records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run              Run
		schemes, summary string
	)
	err := row.Scan(&run.ID, &run.CreatedAt, &run.InputPath, &run.ModelsDir, &schemes, &run.Stachelhaus, &summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "scan run")
	}
	if err := json.Unmarshal([]byte(schemes), &run.Schemes); err != nil {
		return Run{}, errors.Wrapf(err, "decode schemes of run %s", run.ID)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return Run{}, errors.Wrapf(err, "decode summary of run %s", run.ID)
	}
	return run, nil
}

// shortCall flattens the Stachelhaus call for the indexed columns.
func shortCall(rec predict.Record) (string, float64) {
	if rec.Stachelhaus == nil || rec.Stachelhaus.Short.NoCall() {
		return "", 0
	}
	call := ""
	for i, c := range rec.Stachelhaus.Short.Calls {
		if i > 0 {
			call += "|"
		}
		call += c
	}
	return call, rec.Stachelhaus.Short.Confidence
}

func (s *ResultStore) wrap(err error, op string) error {
	if IsDatabaseClosed(err) {
		return errors.Wrap(ErrDatabaseClosed, op)
	}
	return errors.Wrap(err, op)
}
