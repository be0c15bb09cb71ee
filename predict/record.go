package predict

import (
	"github.com/teranos/nrps/stach"
	"github.com/teranos/nrps/svm"
)

// Status is the outcome of one scheme for one input.
type Status string

const (
	// StatusOK means the scheme produced a confident call.
	StatusOK Status = "ok"
	// StatusNoCall means the winner fell below the scheme's min_confidence.
	StatusNoCall Status = "no_call"
	// StatusUnavailable means the scheme's artifact did not load.
	StatusUnavailable Status = "unavailable"
	// StatusError means this input could not be evaluated by the scheme.
	StatusError Status = "error"
)

// SchemeResult is one classifier's verdict for one input. Everything other
// than StatusOK is rendered as no confident call.
type SchemeResult struct {
	Scheme      string          `json:"scheme"`
	Status      Status          `json:"status"`
	Labels      []string        `json:"labels,omitempty"`
	Confidence  float64         `json:"confidence"`
	Probability bool            `json:"probability,omitempty"`
	Candidates  []svm.Candidate `json:"candidates,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// Called reports whether the scheme made a confident call.
func (r SchemeResult) Called() bool {
	return r.Status == StatusOK && len(r.Labels) > 0
}

// Record is the complete prediction for one input. It is built once and
// never modified afterwards.
type Record struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	// Stachelhaus is nil when the table lookup is disabled.
	Stachelhaus *stach.Result  `json:"stachelhaus,omitempty"`
	Schemes     []SchemeResult `json:"schemes"`
	// Error is set when the input itself was rejected.
	Error string `json:"error,omitempty"`
}

// Rejected reports whether the input was rejected before prediction.
func (r Record) Rejected() bool {
	return r.Error != ""
}

// Scheme returns the result for the named scheme.
func (r Record) Scheme(name string) (SchemeResult, bool) {
	for _, s := range r.Schemes {
		if s.Scheme == name {
			return s, true
		}
	}
	return SchemeResult{}, false
}
