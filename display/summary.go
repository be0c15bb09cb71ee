package display

import (
	"io"
	"sort"

	"github.com/pterm/pterm"

	"github.com/teranos/nrps/models"
	"github.com/teranos/nrps/predict"
)

// WriteSummary reports rejected inputs, unavailable schemes and per-scheme
// errors. Nothing is written for a clean run beyond the count line.
func WriteSummary(w io.Writer, s predict.Summary) {
	info := pterm.Info.WithWriter(w)
	warn := pterm.Warning.WithWriter(w)

	info.Printfln("%d of %d inputs predicted", s.Predicted, s.Total)

	for _, r := range s.Rejected {
		switch {
		case r.Line > 0 && r.ID != "":
			warn.Printfln("Rejected line %d (%s): %s", r.Line, r.ID, r.Reason)
		case r.Line > 0:
			warn.Printfln("Rejected line %d: %s", r.Line, r.Reason)
		default:
			warn.Printfln("Rejected %s: %s", r.ID, r.Reason)
		}
	}

	WriteFailures(w, s.Unavailable)

	schemes := make([]string, 0, len(s.Schemes))
	for name, c := range s.Schemes {
		if c.Errors > 0 {
			schemes = append(schemes, name)
		}
	}
	sort.Strings(schemes)
	for _, name := range schemes {
		warn.Printfln("Scheme %s failed on %d inputs", name, s.Schemes[name].Errors)
	}
}

// WriteFailures lists schemes that did not load.
func WriteFailures(w io.Writer, failures []models.Failure) {
	warn := pterm.Warning.WithWriter(w)
	for _, f := range failures {
		warn.Printfln("Scheme %s unavailable: %s", f.Scheme, f.Reason)
	}
}
