package svm

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/teranos/nrps/errors"
)

// Model holds the decision parameters of a one-vs-one classifier, as read
// from a libsvm text model.
type Model struct {
	Kernel  Kernel
	NrClass int
	// Labels are class ids in model order; each indexes the manifest classes.
	Labels []int
	// Rho holds one bias per class pair, pairs ordered (0,1), (0,2), ... (1,2), ...
	Rho []float64
	// ProbA and ProbB are the per-pair Platt calibration coefficients, or nil.
	ProbA []float64
	ProbB []float64
	// NrSV is the support vector count of each class, in model order.
	NrSV []int
	// SV are dense support vectors grouped by class.
	SV [][]float64
	// Coef[j][s] is the dual coefficient of SV s in the decision functions
	// against the j-th other class.
	Coef [][]float64

	start []int
}

// HasProbability reports whether pairwise calibration coefficients are present.
func (m *Model) HasProbability() bool {
	return len(m.ProbA) > 0
}

// Pairs returns the number of pairwise decision functions.
func (m *Model) Pairs() int {
	return m.NrClass * (m.NrClass - 1) / 2
}

// TotalSV returns the number of support vectors.
func (m *Model) TotalSV() int {
	return len(m.SV)
}

// ParseModel reads a libsvm text model. Support vector indices are 1-based and
// must fall in 1..dimension.
func ParseModel(r io.Reader, dimension int) (*Model, error) {
	m := &Model{}
	var (
		svmType  string
		totalSV  = -1
		seen     = map[string]bool{}
		inVector bool
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if inVector {
			if err := m.parseVector(line, dimension); err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			continue
		}

		fields := strings.Fields(line)
		key, args := fields[0], fields[1:]
		if key == "SV" {
			inVector = true
			if err := m.checkHeader(svmType, totalSV, seen); err != nil {
				return nil, err
			}
			m.Coef = make([][]float64, m.NrClass-1)
			continue
		}
		if seen[key] {
			return nil, errors.Newf("line %d: duplicate header key %s", lineNo, key)
		}
		seen[key] = true

		var err error
		switch key {
		case "svm_type":
			svmType, err = single(args)
		case "kernel_type":
			var s string
			s, err = single(args)
			m.Kernel.Type = KernelType(s)
		case "degree":
			m.Kernel.Degree, err = singleInt(args)
		case "gamma":
			m.Kernel.Gamma, err = singleFloat(args)
		case "coef0":
			m.Kernel.Coef0, err = singleFloat(args)
		case "nr_class":
			m.NrClass, err = singleInt(args)
		case "total_sv":
			totalSV, err = singleInt(args)
		case "rho":
			m.Rho, err = floats(args)
		case "label":
			m.Labels, err = ints(args)
		case "probA":
			m.ProbA, err = floats(args)
		case "probB":
			m.ProbB, err = floats(args)
		case "nr_sv":
			m.NrSV, err = ints(args)
		default:
			err = errors.Newf("unknown header key")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read model")
	}

	if !inVector {
		return nil, errors.New("model has no SV section")
	}
	if len(m.SV) != totalSV {
		return nil, errors.Newf("total_sv is %d but the SV section has %d vectors", totalSV, len(m.SV))
	}
	m.index()
	return m, nil
}

// checkHeader validates the header once the SV marker is reached.
func (m *Model) checkHeader(svmType string, totalSV int, seen map[string]bool) error {
	for _, key := range []string{"svm_type", "kernel_type", "nr_class", "total_sv", "rho", "label", "nr_sv"} {
		if !seen[key] {
			return errors.Newf("missing header key %s", key)
		}
	}
	if svmType != "c_svc" && svmType != "nu_svc" {
		return errors.Newf("svm_type %q is not a one-vs-one classifier", svmType)
	}
	switch m.Kernel.Type {
	case Polynomial:
		if !seen["degree"] || !seen["gamma"] {
			return errors.New("polynomial kernel needs degree and gamma")
		}
	case RBF, Sigmoid:
		if !seen["gamma"] {
			return errors.Newf("%s kernel needs gamma", m.Kernel.Type)
		}
	}
	if seen["probA"] != seen["probB"] {
		return errors.New("probA and probB must be given together")
	}
	if err := m.checkShape(); err != nil {
		return err
	}
	if totalSV < 0 {
		return errors.Newf("total_sv must not be negative, got %d", totalSV)
	}
	if sum := m.sumNrSV(); sum != totalSV {
		return errors.Newf("nr_sv sums to %d but total_sv is %d", sum, totalSV)
	}
	return nil
}

// checkShape validates the decision parameters that do not depend on the
// support vectors themselves.
func (m *Model) checkShape() error {
	if err := m.Kernel.validate(); err != nil {
		return err
	}
	if m.NrClass < 2 {
		return errors.Newf("nr_class must be at least 2, got %d", m.NrClass)
	}
	if len(m.Labels) != m.NrClass {
		return errors.Newf("nr_class is %d but %d labels are declared", m.NrClass, len(m.Labels))
	}
	if len(m.Rho) != m.Pairs() {
		return errors.Newf("rho has %d values, want %d for %d classes", len(m.Rho), m.Pairs(), m.NrClass)
	}
	if (len(m.ProbA) > 0) != (len(m.ProbB) > 0) {
		return errors.New("probA and probB must be given together")
	}
	if m.HasProbability() && (len(m.ProbA) != m.Pairs() || len(m.ProbB) != m.Pairs()) {
		return errors.Newf("probA/probB have %d/%d values, want %d", len(m.ProbA), len(m.ProbB), m.Pairs())
	}
	if len(m.NrSV) != m.NrClass {
		return errors.Newf("nr_sv has %d values, want %d", len(m.NrSV), m.NrClass)
	}
	for i, n := range m.NrSV {
		if n < 0 {
			return errors.Newf("nr_sv[%d] is negative", i)
		}
	}
	if err := finite("rho", m.Rho); err != nil {
		return err
	}
	if err := finite("probA", m.ProbA); err != nil {
		return err
	}
	return finite("probB", m.ProbB)
}

// checkVectors validates the support vectors and their coefficients
// against the header.
func (m *Model) checkVectors(dimension int) error {
	if sum := m.sumNrSV(); sum != len(m.SV) {
		return errors.Newf("nr_sv sums to %d but there are %d support vectors", sum, len(m.SV))
	}
	if len(m.Coef) != m.NrClass-1 {
		return errors.Newf("%d coefficient rows, want %d", len(m.Coef), m.NrClass-1)
	}
	for j, row := range m.Coef {
		if len(row) != len(m.SV) {
			return errors.Newf("coefficient row %d has %d values, want %d", j+1, len(row), len(m.SV))
		}
		if err := finite("coefficient", row); err != nil {
			return err
		}
	}
	for i, sv := range m.SV {
		if len(sv) != dimension {
			return errors.Newf("support vector %d has dimension %d, want %d", i+1, len(sv), dimension)
		}
		if err := finite("support vector", sv); err != nil {
			return errors.Wrapf(err, "support vector %d", i+1)
		}
	}
	return nil
}

func (m *Model) sumNrSV() int {
	sum := 0
	for _, n := range m.NrSV {
		sum += n
	}
	return sum
}

func finite(name string, vals []float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf("%s value %d is not finite (%g)", name, i+1, v)
		}
	}
	return nil
}

func (m *Model) parseVector(line string, dimension int) error {
	fields := strings.Fields(line)
	nCoef := m.NrClass - 1
	if len(fields) < nCoef {
		return errors.Newf("support vector has %d fields, want at least %d coefficients", len(fields), nCoef)
	}
	for j := 0; j < nCoef; j++ {
		c, err := strconv.ParseFloat(fields[j], 64)
		if err != nil {
			return errors.Wrapf(err, "coefficient %d", j+1)
		}
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Newf("coefficient %d is not finite (%g)", j+1, c)
		}
		m.Coef[j] = append(m.Coef[j], c)
	}

	sv := make([]float64, dimension)
	last := 0
	for _, f := range fields[nCoef:] {
		idxStr, valStr, ok := strings.Cut(f, ":")
		if !ok {
			return errors.Newf("feature %q is not index:value", f)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return errors.Wrapf(err, "feature index %q", idxStr)
		}
		if idx < 1 || idx > dimension {
			return errors.Newf("feature index %d out of range 1..%d", idx, dimension)
		}
		if idx <= last {
			return errors.Newf("feature index %d is not ascending", idx)
		}
		last = idx
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return errors.Wrapf(err, "feature %d value", idx)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return errors.Newf("feature %d value is not finite (%g)", idx, val)
		}
		sv[idx-1] = val
	}
	m.SV = append(m.SV, sv)
	return nil
}

// index precomputes where each class's support vectors start.
func (m *Model) index() {
	m.start = make([]int, m.NrClass)
	for i := 1; i < m.NrClass; i++ {
		m.start[i] = m.start[i-1] + m.NrSV[i-1]
	}
}

func single(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.Newf("want 1 value, got %d", len(args))
	}
	return args[0], nil
}

func singleInt(args []string) (int, error) {
	s, err := single(args)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	return v, errors.Wrap(err, "not an integer")
}

func singleFloat(args []string) (float64, error) {
	s, err := single(args)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, errors.Wrap(err, "not a number")
}

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}

func floats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
