package stach

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/nrps/errors"
)

const bpsA = "LDASFDASLFEMYLLTGGDRNMYGPTEATMCATW"

// mutate changes the residue at each position to one guaranteed to differ.
func mutate(long string, positions ...int) string {
	b := []byte(long)
	for _, p := range positions {
		if b[p] == 'W' {
			b[p] = 'Y'
		} else {
			b[p] = 'W'
		}
	}
	return string(b)
}

func entry(long, winner string, ids ...string) Entry {
	return Entry{Long: long, Winner: winner, IDs: ids}
}

func mustTable(t *testing.T, entries ...Entry) *Table {
	t.Helper()
	table, err := NewTable(entries)
	require.NoError(t, err)
	return table
}

func TestExactMatchHasFullConfidence(t *testing.T) {
	m := NewMatcher(mustTable(t, entry(bpsA, "Leu", "bpsA")), Options{})

	res, err := m.Match(bpsA)
	require.NoError(t, err)

	assert.Equal(t, "DAFYLGMMCK", res.Query)
	assert.Equal(t, []string{"Leu"}, res.Short.Calls)
	assert.Equal(t, 1.0, res.Short.Confidence)
	assert.Equal(t, []string{"DAFYLGMMCK"}, res.Short.Signatures)
	assert.True(t, res.Short.Exact)
	assert.Equal(t, 0, res.Short.Distance)
}

func TestExactMatchUsesMajorityWeight(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(mutate(bpsA, 0), "Ile", "x1"),
		entry(bpsA, "Leu", "a", "b", "c"),
	), Options{})

	res, err := m.Match(bpsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"Leu"}, res.Short.Calls)
}

func TestExactMatchTiesAreJoint(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(bpsA, "Leu", "a"),
		entry(mutate(bpsA, 0), "Ile", "b"),
	), Options{})

	res, err := m.Match(bpsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ile", "Leu"}, res.Short.Calls)
	assert.Equal(t, 1.0, res.Short.Confidence)
}

func TestNearestNeighbourConfidence(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(mutate(bpsA, 5, 6), "Phe"),
		entry(mutate(bpsA, 5), "Val"),
	), Options{})

	res, err := m.Match(bpsA)
	require.NoError(t, err)

	assert.False(t, res.Short.Exact)
	assert.Equal(t, 1, res.Short.Distance)
	assert.InDelta(t, 0.9, res.Short.Confidence, 1e-12)
	assert.Equal(t, []string{"Val"}, res.Short.Calls, "entry at distance 2 must not override distance 1")
	assert.Equal(t, []string{"WAFYLGMMCK"}, res.Short.Signatures)
}

func TestNearestNeighbourDisagreementIsReported(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(mutate(bpsA, 5), "Val", "v"),
		entry(mutate(bpsA, 6), "Ile", "i1", "i2"),
	), Options{})

	res, err := m.Match(bpsA)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ile", "Val"}, res.Short.Calls)
	assert.Equal(t, []string{"DWFYLGMMCK", "WAFYLGMMCK"}, res.Short.Signatures)
	assert.InDelta(t, 0.9, res.Short.Confidence, 1e-12)
}

func TestConfidenceTracksTrueMinimumDistance(t *testing.T) {
	shortPositions := []int{5, 6, 9, 12, 14, 16, 21, 29, 30}
	for d := 1; d <= len(shortPositions); d++ {
		t.Run(fmt.Sprintf("distance %d", d), func(t *testing.T) {
			m := NewMatcher(mustTable(t, entry(mutate(bpsA, shortPositions[:d]...), "Ala")), Options{})
			res, err := m.Match(bpsA)
			require.NoError(t, err)
			assert.Equal(t, d, res.Short.Distance)
			assert.InDelta(t, float64(10-d)/10, res.Short.Confidence, 1e-12)
		})
	}
}

func TestMinMatchesSuppressesWeakHits(t *testing.T) {
	table := mustTable(t, entry(mutate(bpsA, 5, 6, 9, 12), "Val"))

	res, err := NewMatcher(table, Options{MinMatches: 7}).Match(bpsA)
	require.NoError(t, err)
	assert.True(t, res.Short.NoCall())
	assert.Equal(t, 0.0, res.Short.Confidence)
	assert.Equal(t, -1, res.Short.Distance)

	res, err = NewMatcher(table, Options{MinMatches: 6}).Match(bpsA)
	require.NoError(t, err)
	assert.Equal(t, []string{"Val"}, res.Short.Calls)
	assert.InDelta(t, 0.6, res.Short.Confidence, 1e-12)
}

func TestEmptyTableYieldsNoCall(t *testing.T) {
	for name, table := range map[string]*Table{"nil": nil, "empty": mustTable(t)} {
		t.Run(name, func(t *testing.T) {
			res, err := NewMatcher(table, Options{}).Match(bpsA)
			require.NoError(t, err)
			assert.True(t, res.Short.NoCall())
			assert.Equal(t, 0.0, res.Short.Confidence)
			assert.Equal(t, -1, res.Short.Distance)
			assert.Empty(t, res.Long)
		})
	}
}

func TestMatchRejectsBadLength(t *testing.T) {
	_, err := NewMatcher(nil, Options{}).Match("SHORT")
	require.Error(t, err)
	assert.True(t, errors.IsInputValidationError(err))
}

func TestLongRefinementDisambiguatesSharedShortSignature(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(mutate(bpsA, 0, 1, 2), "Phe"),
		entry(mutate(bpsA, 0, 1), "Val"),
		entry(mutate(bpsA, 0), "Ile"),
		entry(mutate(bpsA, 3), "Leu"),
		entry(bpsA, "Leu"),
	), Options{LongHits: 3})

	res, err := m.Match(bpsA)
	require.NoError(t, err)

	assert.Equal(t, []string{"Leu"}, res.Short.Calls)
	require.Len(t, res.Long, 3)
	assert.Equal(t, "Leu", res.Long[0].Call)
	assert.Equal(t, 1.0, res.Long[0].Similarity)
	assert.Equal(t, bpsA, res.Long[0].Signature)
	assert.Equal(t, "Ile", res.Long[1].Call)
	assert.InDelta(t, 33.0/34.0, res.Long[1].Similarity, 1e-12)
	assert.Equal(t, "Val", res.Long[2].Call)
	assert.InDelta(t, 32.0/34.0, res.Long[2].Similarity, 1e-12)
}

func TestLongRefinementTieOrder(t *testing.T) {
	table := mustTable(t,
		entry(mutate(bpsA, 5), "Gly"),
		entry(mutate(bpsA, 0), "Ile"),
		entry(mutate(bpsA, 1), "Ala"),
	)

	res, err := NewMatcher(table, Options{LongHits: 2}).Match(bpsA)
	require.NoError(t, err)
	require.Len(t, res.Long, 2)
	assert.Equal(t, "Ala", res.Long[0].Call)
	assert.Equal(t, "Ile", res.Long[1].Call)

	res, err = NewMatcher(table, Options{LongHits: 10}).Match(bpsA)
	require.NoError(t, err)
	require.Len(t, res.Long, 3)
	assert.Equal(t, "Gly", res.Long[2].Call)
	assert.InDelta(t, 0.9, res.Long[2].ShortSimilarity, 1e-12)
}

func TestDefaultLongHits(t *testing.T) {
	m := NewMatcher(nil, Options{})
	assert.Equal(t, DefaultLongHits, m.opts.LongHits)
}

func TestLookupNeverMutatesTable(t *testing.T) {
	table := mustTable(t, entry(bpsA, "Leu", "a"))
	got := table.Lookup("DAFYLGMMCK")
	require.Len(t, got, 1)
	got[0].Winner = "changed"

	assert.Equal(t, "Leu", table.Lookup("DAFYLGMMCK")[0].Winner)
	assert.Empty(t, table.Lookup("AAAAAAAAAK"))
}

func TestConcurrentMatchesAreConsistent(t *testing.T) {
	m := NewMatcher(mustTable(t,
		entry(bpsA, "Leu"),
		entry(mutate(bpsA, 5), "Val"),
		entry(mutate(bpsA, 0), "Ile"),
	), Options{})
	want, err := m.Match(bpsA)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Match(bpsA)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestParse(t *testing.T) {
	data := strings.Join([]string{
		"# short\tlong\tall\twinner\tids",
		"DAFYLGMMCK\t" + bpsA + "\tLeu|Ile\tLeu\tbpsA_A1,grsB_A2",
		"",
		"\t" + mutate(bpsA, 5) + "\tVal\tVal\tx",
	}, "\n")

	table, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	first := table.Entry(0)
	assert.Equal(t, "DAFYLGMMCK", first.Short)
	assert.Equal(t, []string{"Leu", "Ile"}, first.Calls)
	assert.Equal(t, []string{"bpsA_A1", "grsB_A2"}, first.IDs)
	assert.Equal(t, 2, first.Count)

	assert.Equal(t, "WAFYLGMMCK", table.Entry(1).Short)
	assert.Equal(t, 1, table.Entry(1).Count)
}

func TestParseErrorsAreTableBuildErrors(t *testing.T) {
	tests := map[string]string{
		"wrong column count": "DAFYLGMMCK\t" + bpsA + "\tLeu",
		"short mismatch":     "AAAAAAAAAK\t" + bpsA + "\tLeu\tLeu\tx",
		"bad long":           "DAFYLGMMCK\tSHORT\tLeu\tLeu\tx",
		"missing winner":     "DAFYLGMMCK\t" + bpsA + "\tLeu\t\tx",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(data))
			require.Error(t, err)
			assert.True(t, errors.IsTableBuildError(err), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.tsv")
	require.NoError(t, os.WriteFile(path, []byte("DAFYLGMMCK\t"+bpsA+"\tLeu\tLeu\tbpsA\n"), 0o644))

	table, err := LoadFile(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.tsv"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsTableBuildError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}
