// Package display renders prediction records as TSV, JSON or a terminal table.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/predict"
	"github.com/teranos/nrps/stach"
	"github.com/teranos/nrps/svm"
)

// NoCall is printed for every missing or non-confident call.
const NoCall = "N/A"

// Format selects a renderer.
type Format string

const (
	FormatTSV   Format = "tsv"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatTSV, FormatJSON, FormatTable}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", errors.NewInvalidRequestError("unknown output format %q (want tsv, json or table)", s)
}

// Options control tabular rendering.
type Options struct {
	// Schemes are the classifier columns, in order.
	Schemes []string
	// Count is how many labels to print per scheme; ties at the cut are kept.
	Count int
	// Stachelhaus includes the three table-lookup columns.
	Stachelhaus bool
}

// Header returns the column names.
func Header(opts Options) []string {
	cols := []string{"Name"}
	if opts.Stachelhaus {
		cols = append(cols, "Stach", "AA10 score", "AA34 score")
	}
	return append(cols, opts.Schemes...)
}

// Row returns the cells of one record. Rejected records are not rendered.
func Row(rec predict.Record, opts Options) []string {
	row := []string{rec.ID}
	if opts.Stachelhaus {
		row = append(row, stachCells(rec.Stachelhaus)...)
	}
	for _, scheme := range opts.Schemes {
		res, ok := rec.Scheme(scheme)
		if !ok {
			row = append(row, NoCall)
			continue
		}
		row = append(row, SchemeCell(res, opts.Count))
	}
	return row
}

func stachCells(res *stach.Result) []string {
	if res == nil || res.Short.NoCall() {
		return []string{NoCall, NoCall, NoCall}
	}
	aa10 := make([]string, len(res.Short.Calls))
	aa34 := make([]string, len(res.Short.Calls))
	for i, call := range res.Short.Calls {
		aa10[i] = score(res.Short.Confidence)
		aa34[i] = NoCall
		for _, hit := range res.Long {
			if hit.Call == call {
				aa34[i] = score(hit.Similarity)
				break
			}
		}
	}
	return []string{
		strings.Join(res.Short.Calls, "|"),
		strings.Join(aa10, "|"),
		strings.Join(aa34, "|"),
	}
}

// SchemeCell formats the best count labels as Label(0.87), joined by '|'.
func SchemeCell(res predict.SchemeResult, count int) string {
	if !res.Called() {
		return NoCall
	}
	if count < 1 {
		count = 1
	}
	top := svm.Prediction{Candidates: res.Candidates}.Top(count)
	if len(top) == 0 {
		// No ranked candidates; fall back to the winning labels.
		for _, l := range res.Labels {
			top = append(top, svm.Candidate{Label: l, Score: res.Confidence})
		}
	}
	cells := make([]string, len(top))
	for i, c := range top {
		cells[i] = fmt.Sprintf("%s(%s)", c.Label, score(c.Score))
	}
	return strings.Join(cells, "|")
}

func score(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// WriteTSV writes the header and one line per accepted record.
func WriteTSV(w io.Writer, records []predict.Record, opts Options) error {
	if _, err := fmt.Fprintln(w, strings.Join(Header(opts), "\t")); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, rec := range records {
		if rec.Rejected() {
			continue
		}
		if _, err := fmt.Fprintln(w, strings.Join(Row(rec, opts), "\t")); err != nil {
			return errors.Wrapf(err, "write %s", rec.ID)
		}
	}
	return nil
}

// WriteTable renders the records as a boxed terminal table.
func WriteTable(w io.Writer, records []predict.Record, opts Options) error {
	data := pterm.TableData{Header(opts)}
	for _, rec := range records {
		if rec.Rejected() {
			continue
		}
		data = append(data, Row(rec, opts))
	}
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(data).
		WithWriter(w).
		Render()
}

// Write dispatches on format.
func Write(w io.Writer, format Format, report Report, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatTable:
		return WriteTable(w, report.Records, opts)
	default:
		return WriteTSV(w, report.Records, opts)
	}
}
