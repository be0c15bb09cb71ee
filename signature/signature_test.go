package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/nrps/errors"
)

const bpsA = "LDASFDASLFEMYLLTGGDRNMYGPTEATMCATW"

func TestShort(t *testing.T) {
	tests := []struct {
		long string
		want string
	}{
		{"HAKSFDMSVVQCIACMGGETNCYGPTEITAAATF", "DMVICGCAAK"},
		{bpsA, "DAFYLGMMCK"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := Short(tt.long)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, ShortLength)
		})
	}
}

func TestShortRejectsWrongLength(t *testing.T) {
	_, err := Short("THISISWAYTOOSHORT")
	require.Error(t, err)
	assert.True(t, errors.IsInputValidationError(err))
}

func TestShortPositionsIsACopy(t *testing.T) {
	p := ShortPositions()
	p[0] = 99
	assert.Equal(t, 5, ShortPositions()[0])
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(bpsA))
	assert.NoError(t, Validate(strings.Repeat("-", LongLength)))
	assert.NoError(t, Validate(strings.Repeat("X", LongLength)))

	err := Validate(bpsA[:33] + "B")
	require.Error(t, err)
	assert.True(t, errors.IsInputValidationError(err))
	assert.Contains(t, err.Error(), "position 33")

	err = Validate(bpsA + "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length 35")
}

func TestHamming(t *testing.T) {
	assert.Equal(t, 0, Hamming("ABCDE", "ABCDE"))
	assert.Equal(t, 1, Hamming("ABCDE", "ABCDF"))
	assert.Equal(t, 4, Hamming("ABCDE", "EDCBA"))
	assert.Equal(t, 2, Hamming("ABC", "ABCDE"))
	assert.Equal(t, Hamming("ABC", "XBCDE"), Hamming("XBCDE", "ABC"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("DAFYLGMMCK", "DAFYLGMMCK"))
	assert.InDelta(t, 0.9, Similarity("DAFYLGMMCK", "DAFYLGMMCA"), 1e-12)
	assert.Equal(t, 0.0, Similarity("", "ABC"))
	assert.Equal(t, 0.0, Similarity("A", "BCDEF"))
}

func TestRead(t *testing.T) {
	data := strings.Join([]string{
		bpsA + "\tbpsA_A1",
		"",
		"LEPAFDISLFEVHLLTGGDRHLYGPTEATLCATW\tHpg\tCAC48361.1.A1",
		bpsA,
		"TOOSHORT\tbroken",
		strings.ToLower(bpsA) + "\tlowercase",
	}, "\n")

	inputs, rejected, err := Read(strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, inputs, 3)
	assert.Equal(t, Input{ID: "bpsA_A1", Signature: bpsA}, inputs[0])
	assert.Equal(t, Input{ID: "CAC48361.1.A1_Hpg", Signature: "LEPAFDISLFEVHLLTGGDRHLYGPTEATLCATW"}, inputs[1])
	assert.Equal(t, Input{ID: "lowercase", Signature: bpsA}, inputs[2])

	require.Len(t, rejected, 2)
	assert.Equal(t, 4, rejected[0].Line)
	assert.Contains(t, rejected[0].Reason, "SIGNATURE<TAB>NAME")
	assert.Equal(t, 5, rejected[1].Line)
	assert.Equal(t, "broken", rejected[1].ID)
	assert.True(t, errors.IsInputValidationError(rejected[1]))
}

func TestValidateInput(t *testing.T) {
	assert.NoError(t, ValidateInput(Input{ID: "bpsA", Signature: bpsA}))
	assert.Error(t, ValidateInput(Input{ID: "", Signature: bpsA}))
	assert.NoError(t, ValidateInput(Input{ID: "bpsA module 1", Signature: bpsA}))
	assert.Error(t, ValidateInput(Input{ID: "tab\tid", Signature: bpsA}))
	assert.Error(t, ValidateInput(Input{ID: "line\nbreak", Signature: bpsA}))
}

func TestReadAcceptsSpacesInNames(t *testing.T) {
	data := bpsA + "\tbpsA module 1\n" + bpsA + "\tLeu\tSrfAA domain 2\n"
	inputs, rejected, err := Read(strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, inputs, 2)
	assert.Equal(t, "bpsA module 1", inputs[0].ID)
	assert.Equal(t, "SrfAA domain 2_Leu", inputs[1].ID)
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := ReadFile("/nonexistent/signatures.tsv")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}
