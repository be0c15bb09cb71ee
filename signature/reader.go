package signature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/teranos/nrps/errors"
)

// Input is one validated (identifier, long signature) pair.
type Input struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}

// ValidationError describes one rejected input line.
type ValidationError struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.ID, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Unwrap classifies every ValidationError as ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return errors.ErrInputValidation
}

// ValidateInput checks identifier and signature of a single input.
func ValidateInput(in Input) error {
	if in.ID == "" {
		return errors.Mark(errors.New("empty identifier"), errors.ErrInputValidation)
	}
	// Spaces are fine; tabs and line breaks would split the TSV output row.
	if strings.ContainsAny(in.ID, "\t\r\n") {
		return errors.Mark(errors.Newf("identifier %q contains a tab or line break", in.ID), errors.ErrInputValidation)
	}
	return Validate(in.Signature)
}

// ReadFile opens path and reads inputs from it. See Read.
func ReadFile(path string) ([]Input, []*ValidationError, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.WithHint(
				errors.Wrapf(errors.ErrNotFound, "signature file %s", path),
				"pass a tab-separated file with one SIGNATURE<TAB>NAME per line")
		}
		return nil, nil, errors.Wrapf(err, "open signature file %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Read parses tab-separated signature lines:
//
//	SIGNATURE<TAB>NAME
//	SIGNATURE<TAB>SUBSTRATE<TAB>NAME   (identifier becomes NAME_SUBSTRATE)
//
// Blank lines are skipped. A malformed line is reported in the returned
// rejections and does not stop reading; only I/O failures return an error.
func Read(r io.Reader) ([]Input, []*ValidationError, error) {
	var (
		inputs   []Input
		rejected []*ValidationError
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		in, verr := parseLine(line)
		if verr != nil {
			verr.Line = lineNo
			rejected = append(rejected, verr)
			continue
		}
		inputs = append(inputs, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "read signatures")
	}

	return inputs, rejected, nil
}

func parseLine(line string) (Input, *ValidationError) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return Input{}, &ValidationError{Text: line, Reason: "expected SIGNATURE<TAB>NAME"}
	}

	var id string
	switch len(parts) {
	case 2:
		id = strings.TrimSpace(parts[1])
	default:
		id = strings.TrimSpace(parts[2]) + "_" + strings.TrimSpace(parts[1])
	}

	in := Input{ID: id, Signature: strings.ToUpper(strings.TrimSpace(parts[0]))}
	if err := ValidateInput(in); err != nil {
		return Input{}, &ValidationError{ID: id, Text: line, Reason: err.Error()}
	}
	return in, nil
}
