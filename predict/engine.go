// Package predict runs the Stachelhaus lookup and every active classifier
// over each input and assembles one Record per input.
//
// An Engine holds only immutable state (the signature table and the model
// store), so any number of inputs can be predicted concurrently.
package predict

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/models"
	"github.com/teranos/nrps/signature"
	"github.com/teranos/nrps/stach"
)

// Options assemble an Engine.
type Options struct {
	// Matcher is nil when the Stachelhaus lookup is disabled.
	Matcher *stach.Matcher
	Store   *models.Store
	// Failures are the schemes that were requested but did not load.
	Failures []models.Failure
	Logger   *zap.SugaredLogger
}

// Engine predicts substrates for validated inputs.
type Engine struct {
	matcher     *stach.Matcher
	store       *models.Store
	columns     []string
	unavailable map[string]string
	log         *zap.SugaredLogger
}

// NewEngine builds an engine. It fails only when schemes were requested and
// none of them loaded, since no classifier column could be produced.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store.Len() == 0 && len(opts.Failures) > 0 {
		names := make([]string, len(opts.Failures))
		for i, f := range opts.Failures {
			names[i] = f.Scheme
		}
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("none of the requested schemes loaded: %v", names), errors.ErrArtifactLoad),
			"run 'nrps models validate' to see why each scheme failed")
	}

	e := &Engine{
		matcher:     opts.Matcher,
		store:       opts.Store,
		columns:     opts.Store.Schemes(),
		unavailable: make(map[string]string, len(opts.Failures)),
		log:         logger.OrNop(opts.Logger).Named("predict"),
	}

	var failed []string
	for _, f := range opts.Failures {
		if _, dup := e.unavailable[f.Scheme]; dup {
			continue
		}
		if _, loaded := opts.Store.Get(f.Scheme); loaded {
			continue
		}
		e.unavailable[f.Scheme] = f.Reason
		failed = append(failed, f.Scheme)
	}
	sort.Strings(failed)
	e.columns = append(e.columns, failed...)

	return e, nil
}

// Schemes returns the scheme columns in output order: loaded schemes in store
// order, then unavailable schemes by name.
func (e *Engine) Schemes() []string {
	return append([]string(nil), e.columns...)
}

// Stachelhaus reports whether the table lookup runs.
func (e *Engine) Stachelhaus() bool {
	return e.matcher != nil
}

// Predict evaluates one input. It never fails: a rejected input is reported
// in Record.Error and per-scheme problems in each SchemeResult.
func (e *Engine) Predict(in signature.Input) Record {
	rec := Record{ID: in.ID, Signature: in.Signature}
	if err := signature.ValidateInput(in); err != nil {
		rec.Error = err.Error()
		return rec
	}

	if e.matcher != nil {
		res, err := e.matcher.Match(in.Signature)
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
		rec.Stachelhaus = &res
	}

	rec.Schemes = make([]SchemeResult, 0, len(e.columns))
	for _, scheme := range e.columns {
		rec.Schemes = append(rec.Schemes, e.evaluate(scheme, in))
	}
	return rec
}

func (e *Engine) evaluate(scheme string, in signature.Input) SchemeResult {
	if reason, ok := e.unavailable[scheme]; ok {
		return SchemeResult{Scheme: scheme, Status: StatusUnavailable, Reason: reason}
	}
	a, _ := e.store.Get(scheme)

	x, err := a.Encoding.Encode(in.Signature)
	if err != nil {
		e.log.Warnw("Encoding failed", logger.FieldScheme, scheme, logger.FieldInput, in.ID, logger.FieldError, err)
		return SchemeResult{Scheme: scheme, Status: StatusError, Reason: err.Error()}
	}
	pred, err := a.Classify(x)
	if err != nil {
		e.log.Warnw("Classification failed", logger.FieldScheme, scheme, logger.FieldInput, in.ID, logger.FieldError, err)
		return SchemeResult{Scheme: scheme, Status: StatusError, Reason: err.Error()}
	}

	res := SchemeResult{
		Scheme:      scheme,
		Status:      StatusOK,
		Labels:      pred.Labels,
		Confidence:  pred.Confidence,
		Probability: pred.Probability,
		Candidates:  pred.Candidates,
	}
	if pred.NoCall() {
		res.Status = StatusNoCall
	}
	return res
}

// PredictAll predicts every input using up to workers goroutines (workers <= 0
// uses DefaultWorkers). Records are returned in input order. Cancelling ctx
// stops inputs that have not started yet; the partial result is discarded.
func (e *Engine) PredictAll(ctx context.Context, inputs []signature.Input, workers int) ([]Record, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	start := time.Now()
	log := e.log.With(logger.FieldsFromContext(ctx)...)

	records := make([]Record, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		i, in := i, in
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = e.Predict(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "prediction cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "prediction cancelled")
	}

	log.Infow("Predictions complete",
		logger.FieldCount, len(records),
		logger.FieldWorkers, workers,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return records, nil
}
