// Package stach holds the reference signature table and the Stachelhaus
// matcher that calls substrates by short-signature identity or nearest
// neighbour, with a long-signature refinement reported alongside.
package stach

import (
	"bufio"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/signature"
)

// referenceColumns is the column count of the reference TSV:
// short, long, all calls, winner, ids.
const referenceColumns = 5

// Entry is one reference association between a signature and its substrate call.
type Entry struct {
	Short  string   `json:"short"`
	Long   string   `json:"long"`
	Calls  []string `json:"calls,omitempty"`
	Winner string   `json:"winner"`
	IDs    []string `json:"ids,omitempty"`
	// Count is the number of references behind this entry (at least 1).
	Count int `json:"count"`
}

// Table is an immutable index of reference entries, safe for concurrent readers.
type Table struct {
	entries []Entry
	byShort map[string][]int
}

// NewTable validates entries and indexes them by short signature.
// Entries missing a short signature get it derived from the long one.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		byShort: make(map[string][]int),
	}
	for i, e := range entries {
		if err := normalizeEntry(&e); err != nil {
			return nil, errors.Wrapf(err, "reference entry %d", i+1)
		}
		t.byShort[e.Short] = append(t.byShort[e.Short], len(t.entries))
		t.entries = append(t.entries, e)
	}
	return t, nil
}

func normalizeEntry(e *Entry) error {
	if err := signature.Validate(e.Long); err != nil {
		return errors.Mark(err, errors.ErrTableBuild)
	}
	derived, err := signature.Short(e.Long)
	if err != nil {
		return errors.Mark(err, errors.ErrTableBuild)
	}
	if e.Short == "" {
		e.Short = derived
	} else if e.Short != derived {
		return errors.Mark(
			errors.Newf("short signature %s does not match projection %s of %s", e.Short, derived, e.Long),
			errors.ErrTableBuild)
	}
	if e.Winner == "" {
		return errors.Mark(errors.Newf("entry %s has no substrate call", e.Short), errors.ErrTableBuild)
	}
	if e.Count < len(e.IDs) {
		e.Count = len(e.IDs)
	}
	if e.Count < 1 {
		e.Count = 1
	}
	return nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entry returns the i-th entry in load order.
func (t *Table) Entry(i int) Entry {
	return t.entries[i]
}

// Lookup returns the entries sharing the given short signature, in load order.
func (t *Table) Lookup(short string) []Entry {
	if t == nil {
		return nil
	}
	idx := t.byShort[short]
	out := make([]Entry, len(idx))
	for i, j := range idx {
		out[i] = t.entries[j]
	}
	return out
}

// LoadFile builds a table from a reference TSV on disk.
func LoadFile(path string, log *zap.SugaredLogger) (*Table, error) {
	log = logger.OrNop(log)
	f, err := os.Open(path)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "open reference signatures %s", path), errors.ErrTableBuild)
		return nil, errors.WithHint(err, "set stachelhaus.signatures or pass --signatures, or disable with --no-stachelhaus")
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	log.Infow("Signature table built", logger.FieldPath, path, logger.FieldCount, t.Len())
	return t, nil
}

// Parse reads the reference TSV:
//
//	SHORT<TAB>LONG<TAB>ALL_CALLS<TAB>WINNER<TAB>IDS
//
// ALL_CALLS is '|' separated, IDS is ',' separated. Blank lines and lines
// starting with '#' are ignored. Any malformed line fails the whole table.
func Parse(r io.Reader) (*Table, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		// Only the line ending is trimmed; leading or trailing tabs mark empty columns.
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != referenceColumns {
			return nil, errors.Mark(
				errors.Newf("line %d: expected %d tab-separated columns, got %d", lineNo, referenceColumns, len(parts)),
				errors.ErrTableBuild)
		}
		entries = append(entries, Entry{
			Short:  strings.TrimSpace(parts[0]),
			Long:   strings.TrimSpace(parts[1]),
			Calls:  splitNonEmpty(parts[2], "|"),
			Winner: strings.TrimSpace(parts[3]),
			IDs:    splitNonEmpty(parts[4], ","),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read reference signatures"), errors.ErrTableBuild)
	}

	return NewTable(entries)
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
