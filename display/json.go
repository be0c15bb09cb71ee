package display

import (
	"encoding/json"
	"io"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/predict"
)

// Report is the JSON document written by --format json.
type Report struct {
	RunID   string           `json:"run_id,omitempty"`
	Schemes []string         `json:"schemes"`
	Records []predict.Record `json:"records"`
	Summary *predict.Summary `json:"summary,omitempty"`
}

// MarshalJSON marshals with two-space indentation for human consumption.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return errors.Wrap(err, "failed to write JSON")
}
