package predict

import (
	"runtime"
	"sort"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/teranos/nrps/models"
	"github.com/teranos/nrps/signature"
)

// DefaultWorkers is the number of physical CPU cores, falling back to the
// logical count when it cannot be determined.
func DefaultWorkers() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Rejection is an input that never reached the classifiers.
type Rejection struct {
	Line   int    `json:"line,omitempty"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// SchemeCounts tallies per-scheme outcomes over a run.
type SchemeCounts struct {
	Called  int `json:"called"`
	NoCall  int `json:"no_call"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Summary accounts for every input and every scheme in a run.
type Summary struct {
	Total       int                     `json:"total"`
	Predicted   int                     `json:"predicted"`
	Rejected    []Rejection             `json:"rejected,omitempty"`
	Unavailable []models.Failure        `json:"unavailable,omitempty"`
	Schemes     map[string]SchemeCounts `json:"schemes"`
	// StachelhausCalls counts inputs with a short-signature call.
	StachelhausCalls int `json:"stachelhaus_calls"`
}

// Summarize builds the run summary from the records, the lines the reader
// rejected and the schemes that failed to load.
func Summarize(records []Record, rejected []*signature.ValidationError, unavailable []models.Failure) Summary {
	s := Summary{
		Total:       len(records) + len(rejected),
		Unavailable: append([]models.Failure(nil), unavailable...),
		Schemes:     make(map[string]SchemeCounts),
	}
	for _, r := range rejected {
		s.Rejected = append(s.Rejected, Rejection{Line: r.Line, ID: r.ID, Reason: r.Reason})
	}
	sort.SliceStable(s.Unavailable, func(i, j int) bool {
		return s.Unavailable[i].Scheme < s.Unavailable[j].Scheme
	})

	for _, rec := range records {
		if rec.Rejected() {
			s.Rejected = append(s.Rejected, Rejection{ID: rec.ID, Reason: rec.Error})
			continue
		}
		s.Predicted++
		if rec.Stachelhaus != nil && !rec.Stachelhaus.Short.NoCall() {
			s.StachelhausCalls++
		}
		for _, sr := range rec.Schemes {
			c := s.Schemes[sr.Scheme]
			switch sr.Status {
			case StatusOK:
				c.Called++
			case StatusNoCall:
				c.NoCall++
			case StatusError:
				c.Errors++
			case StatusUnavailable:
				c.Skipped++
			}
			s.Schemes[sr.Scheme] = c
		}
	}
	return s
}

// Failed returns the number of per-scheme evaluation errors.
func (s Summary) Failed() int {
	n := 0
	for _, c := range s.Schemes {
		n += c.Errors
	}
	return n
}
