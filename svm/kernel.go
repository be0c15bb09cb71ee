// Package svm loads trained one-vs-one support vector classifiers and
// evaluates them against encoded signatures.
//
// An artifact is a directory holding a TOML manifest and a libsvm text model.
// Evaluation is pure: an Artifact is immutable after LoadArtifact and may be
// shared by any number of goroutines.
package svm

import (
	"math"

	"github.com/teranos/nrps/errors"
)

// KernelType names a kernel function.
type KernelType string

const (
	Linear     KernelType = "linear"
	Polynomial KernelType = "polynomial"
	RBF        KernelType = "rbf"
	Sigmoid    KernelType = "sigmoid"
)

// Kernel is a kernel function with its parameters.
type Kernel struct {
	Type   KernelType `json:"type"`
	Degree int        `json:"degree,omitempty"`
	Gamma  float64    `json:"gamma,omitempty"`
	Coef0  float64    `json:"coef0,omitempty"`
}

func (k Kernel) validate() error {
	switch k.Type {
	case Linear:
	case Polynomial:
		if k.Degree < 1 {
			return errors.Newf("polynomial kernel needs degree >= 1, got %d", k.Degree)
		}
		fallthrough
	case RBF, Sigmoid:
		if math.IsNaN(k.Gamma) || math.IsInf(k.Gamma, 0) || k.Gamma == 0 {
			return errors.Newf("%s kernel needs a finite non-zero gamma", k.Type)
		}
		if math.IsNaN(k.Coef0) || math.IsInf(k.Coef0, 0) {
			return errors.Newf("%s kernel coef0 is not finite", k.Type)
		}
	default:
		return errors.Newf("unsupported kernel_type %q", k.Type)
	}
	return nil
}

// Eval computes K(x, y). Both vectors have the model dimension and are
// accumulated in ascending index order.
func (k Kernel) Eval(x, y []float64) float64 {
	switch k.Type {
	case Linear:
		return dot(x, y)
	case Polynomial:
		return powi(k.Gamma*dot(x, y)+k.Coef0, k.Degree)
	case RBF:
		var sum float64
		for i := range x {
			d := x[i] - y[i]
			sum += d * d
		}
		return math.Exp(-k.Gamma * sum)
	case Sigmoid:
		return math.Tanh(k.Gamma*dot(x, y) + k.Coef0)
	}
	return 0
}

func dot(x, y []float64) float64 {
	var sum float64
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

// powi is exponentiation by squaring, matching libsvm.
func powi(base float64, times int) float64 {
	ret := 1.0
	for t := times; t > 0; t /= 2 {
		if t%2 == 1 {
			ret *= base
		}
		base *= base
	}
	return ret
}
