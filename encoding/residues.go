package encoding

import "strings"

// identityAlphabet fixes the one-hot column order.
const identityAlphabet = "ACDEFGHIKLMNPQRSTVWY"

// appendIdentity appends the one-hot block for r. Gaps and unknown residues
// encode as all zeros.
func appendIdentity(out Vector, r byte) Vector {
	idx := strings.IndexByte(identityAlphabet, r)
	for i := 0; i < len(identityAlphabet); i++ {
		if i == idx {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

const woldScales = 3

// Raw Wold z-scales (Wold et al. 1987) per residue.
var (
	hydrophobicity = map[byte]float64{
		'A': 0.07, 'R': 2.88, 'N': 3.22, 'D': 3.64, 'C': 0.71,
		'Q': 2.18, 'E': 3.08, 'G': 2.23, 'H': 2.41, 'I': -4.44,
		'L': -4.19, 'K': 2.84, 'M': -2.49, 'F': -4.92, 'P': -1.22,
		'S': 1.96, 'T': 0.92, 'W': -4.75, 'Y': -1.39, 'V': -2.69,
	}
	size = map[byte]float64{
		'A': -1.73, 'R': 2.52, 'N': 1.45, 'D': 1.13, 'C': -0.97,
		'Q': 0.53, 'E': 0.39, 'G': -5.36, 'H': 1.74, 'I': -1.68,
		'L': -1.03, 'K': 1.41, 'M': -0.27, 'F': 1.3, 'P': 0.88,
		'S': -1.63, 'T': -2.09, 'W': 3.65, 'Y': 2.32, 'V': -2.53,
	}
	polarity = map[byte]float64{
		'A': 0.09, 'R': -3.44, 'N': 0.84, 'D': 2.36, 'C': 4.13,
		'Q': -1.14, 'E': -0.07, 'G': 0.3, 'H': 1.11, 'I': -1.03,
		'L': -0.98, 'K': -3.14, 'M': -0.41, 'F': 0.45, 'P': 2.23,
		'S': 0.57, 'T': -1.4, 'W': 0.85, 'Y': 0.01, 'V': -1.29,
	}
)

// zscale normalises one raw table. Mean and standard deviation are taken over
// the 26 letter codes with missing letters counted as zero, which is what the
// trained models expect.
type zscale struct {
	raw   map[byte]float64
	mean  float64
	stdev float64
}

func (z zscale) value(r byte) float64 {
	return (z.raw[r] - z.mean) / z.stdev
}

var woldTable = [woldScales]zscale{
	{raw: hydrophobicity, mean: 0.001923076923076976, stdev: 2.6160275521955336},
	{raw: size, mean: 0.0011538461538461635, stdev: 1.8589595518420015},
	{raw: polarity, mean: 0.0015384615384615096, stdev: 1.545268112160973},
}

func appendWold(out Vector, r byte) Vector {
	for _, z := range woldTable {
		out = append(out, z.value(r))
	}
	return out
}
