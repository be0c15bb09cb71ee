// Package encoding turns signatures into the numeric feature vectors a
// classifier artifact was trained on.
//
// A Descriptor names the per-residue encoding and the signature positions it
// covers. Encoding is a pure function of (signature, descriptor).
package encoding

import (
	"fmt"

	"github.com/teranos/nrps/errors"
)

// Type selects how each residue is turned into numbers.
type Type string

const (
	// Identity is a one-hot vector over the 20 standard residues.
	Identity Type = "identity"
	// Wold is the three Wold z-scales (hydrophobicity, size, polarity).
	Wold Type = "wold"
	// Combined is Identity followed by Wold for every position.
	Combined Type = "combined"
)

// Types lists the supported encoding types.
var Types = []Type{Identity, Wold, Combined}

// Vector is an encoded signature.
type Vector []float64

// Descriptor describes the encoding an artifact expects.
type Descriptor struct {
	Type Type `toml:"type" json:"type" yaml:"type"`
	// SignatureLength is the exact length an encodable signature must have.
	SignatureLength int `toml:"signature_length" json:"signature_length" yaml:"signature_length"`
	// Positions are the 0-based signature positions that are encoded, in
	// order. Empty means every position.
	Positions []int `toml:"positions" json:"positions,omitempty" yaml:"positions,omitempty"`
}

// PerPosition returns the number of values produced for one residue.
func (d Descriptor) PerPosition() int {
	switch d.Type {
	case Identity:
		return len(identityAlphabet)
	case Wold:
		return woldScales
	case Combined:
		return len(identityAlphabet) + woldScales
	}
	return 0
}

// Dimension returns the length of the vectors Encode produces.
func (d Descriptor) Dimension() int {
	n := len(d.Positions)
	if n == 0 {
		n = d.SignatureLength
	}
	return n * d.PerPosition()
}

// Validate checks the descriptor itself, independent of any signature.
func (d Descriptor) Validate() error {
	if d.PerPosition() == 0 {
		return errors.Newf("unknown encoding type %q (want one of %v)", d.Type, Types)
	}
	if d.SignatureLength <= 0 {
		return errors.Newf("signature_length must be positive, got %d", d.SignatureLength)
	}
	seen := make(map[int]bool, len(d.Positions))
	for _, p := range d.Positions {
		if p < 0 || p >= d.SignatureLength {
			return errors.Newf("position %d out of range [0,%d)", p, d.SignatureLength)
		}
		if seen[p] {
			return errors.Newf("position %d listed twice", p)
		}
		seen[p] = true
	}
	return nil
}

func (d Descriptor) String() string {
	if len(d.Positions) == 0 {
		return fmt.Sprintf("%s/%d", d.Type, d.SignatureLength)
	}
	return fmt.Sprintf("%s/%d@%d", d.Type, d.SignatureLength, len(d.Positions))
}

// Encode maps sig to its feature vector. A signature whose length differs
// from SignatureLength is an encoding error, never truncated or padded.
func (d Descriptor) Encode(sig string) (Vector, error) {
	if len(sig) != d.SignatureLength {
		return nil, errors.Mark(
			errors.Newf("signature length %d does not match descriptor %s", len(sig), d),
			errors.ErrEncoding)
	}
	per := d.PerPosition()
	if per == 0 {
		return nil, errors.Mark(errors.Newf("unknown encoding type %q", d.Type), errors.ErrEncoding)
	}

	out := make(Vector, 0, d.Dimension())
	if len(d.Positions) == 0 {
		for p := 0; p < len(sig); p++ {
			out = d.appendResidue(out, sig[p])
		}
		return out, nil
	}
	for _, p := range d.Positions {
		if p < 0 || p >= len(sig) {
			return nil, errors.Mark(errors.Newf("position %d out of range for %s", p, d), errors.ErrEncoding)
		}
		out = d.appendResidue(out, sig[p])
	}
	return out, nil
}

func (d Descriptor) appendResidue(out Vector, r byte) Vector {
	switch d.Type {
	case Identity:
		return appendIdentity(out, r)
	case Wold:
		return appendWold(out, r)
	case Combined:
		return appendWold(appendIdentity(out, r), r)
	}
	return out
}
