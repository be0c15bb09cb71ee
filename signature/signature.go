// Package signature defines adenylation-domain active-site signatures:
// the 34-residue long form, its 10-residue short projection (the
// Stachelhaus code), residue validation and positional distance.
package signature

import (
	"strings"

	"github.com/teranos/nrps/errors"
)

const (
	// LongLength is the number of residues in a full active-site signature.
	LongLength = 34
	// ShortLength is the number of residues in the Stachelhaus code.
	ShortLength = 10

	// Alphabet is the set of standard amino-acid symbols.
	Alphabet = "ACDEFGHIKLMNPQRSTVWY"
	// Gap marks a position the upstream alignment could not fill.
	Gap = '-'
	// Unknown marks an ambiguous residue.
	Unknown = 'X'

	// conservedLysine closes every short signature; it is not read from the long form.
	conservedLysine = 'K'
)

// shortPositions are the 0-based indices of the long signature projected into the short one.
var shortPositions = [ShortLength - 1]int{5, 6, 9, 12, 14, 16, 21, 29, 30}

// ShortPositions returns a copy of the long-signature indices used for the short projection.
func ShortPositions() []int {
	out := make([]int, len(shortPositions))
	copy(out, shortPositions[:])
	return out
}

// ValidResidue reports whether c may appear in a signature.
func ValidResidue(c byte) bool {
	return c == Gap || c == Unknown || strings.IndexByte(Alphabet, c) >= 0
}

// Validate checks that long is a well-formed long signature.
func Validate(long string) error {
	if len(long) != LongLength {
		return errors.Mark(
			errors.Newf("signature %q has length %d, expected %d", long, len(long), LongLength),
			errors.ErrInputValidation)
	}
	for i := 0; i < len(long); i++ {
		if !ValidResidue(long[i]) {
			return errors.Mark(
				errors.Newf("signature %q has invalid residue %q at position %d", long, long[i], i),
				errors.ErrInputValidation)
		}
	}
	return nil
}

// Short derives the 10-residue Stachelhaus code from a long signature.
func Short(long string) (string, error) {
	if len(long) != LongLength {
		return "", errors.Mark(
			errors.Newf("cannot project signature of length %d, expected %d", len(long), LongLength),
			errors.ErrInputValidation)
	}
	var b strings.Builder
	b.Grow(ShortLength)
	for _, pos := range shortPositions {
		b.WriteByte(long[pos])
	}
	b.WriteByte(conservedLysine)
	return b.String(), nil
}

// Hamming counts the positions at which a and b differ.
// When lengths differ, every position past the shorter string counts as a mismatch.
func Hamming(a, b string) int {
	n := len(a)
	extra := len(b) - len(a)
	if len(b) < n {
		n = len(b)
		extra = len(a) - len(b)
	}
	dist := extra
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist
}

// Similarity is 1 - Hamming(a, b)/len(a), the fraction of matching positions.
// Empty input has similarity 0.
func Similarity(a, b string) float64 {
	if len(a) == 0 {
		return 0
	}
	matches := len(a) - Hamming(a, b)
	if matches < 0 {
		matches = 0
	}
	return float64(matches) / float64(len(a))
}
