package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/svm"
)

// SchemeRow describes one loaded artifact for `nrps models list`.
func SchemeRow(a *svm.Artifact) []string {
	prob := "votes"
	if a.Model.HasProbability() {
		prob = "platt"
	}
	return []string{
		a.Scheme,
		fmt.Sprintf("%d", a.Order),
		a.Encoding.String(),
		string(a.Model.Kernel.Type),
		prob,
		fmt.Sprintf("%.2f", a.MinConfidence),
		strings.Join(a.Classes, ","),
		a.Description,
	}
}

// WriteSchemes renders loaded artifacts as a boxed table.
func WriteSchemes(w io.Writer, artifacts []*svm.Artifact) error {
	data := pterm.TableData{{"Scheme", "Order", "Encoding", "Kernel", "Confidence", "Min", "Classes", "Description"}}
	for _, a := range artifacts {
		data = append(data, SchemeRow(a))
	}
	err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).WithWriter(w).Render()
	return errors.Wrap(err, "failed to render scheme table")
}
