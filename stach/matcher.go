package stach

import (
	"sort"

	"github.com/teranos/nrps/signature"
)

// DefaultLongHits is how many distinct long-signature calls are reported.
const DefaultLongHits = 3

// Options tune the matcher.
type Options struct {
	// LongHits is k, the number of distinct substrate calls in the long refinement.
	LongHits int
	// MinMatches is the minimum number of matching short positions for a call.
	// Zero calls every nearest neighbour.
	MinMatches int
}

// ShortCall is the short-signature result. Calls holds more than one
// substrate when reference entries tie; no single call is forced.
type ShortCall struct {
	Calls      []string `json:"calls"`
	Confidence float64  `json:"confidence"`
	// Signatures are the reference short signatures that produced the call.
	Signatures []string `json:"signatures"`
	// Distance is the Hamming distance to the matched entries, -1 when there is no call.
	Distance int  `json:"distance"`
	Exact    bool `json:"exact"`
}

// NoCall reports whether the lookup produced no substrate.
func (c ShortCall) NoCall() bool {
	return len(c.Calls) == 0
}

// LongHit is one distinct substrate call from the long-signature refinement.
type LongHit struct {
	Call       string  `json:"call"`
	Similarity float64 `json:"similarity"`
	Signature  string  `json:"signature"`
	// ShortSimilarity of the same reference entry, used to order equal long similarities.
	ShortSimilarity float64 `json:"short_similarity"`
}

// Result is everything the matcher reports for one query.
type Result struct {
	Query string    `json:"query"`
	Short ShortCall `json:"short_call"`
	Long  []LongHit `json:"long_hits"`
}

// Matcher performs lookups against a read-only Table.
type Matcher struct {
	table *Table
	opts  Options
}

// NewMatcher returns a matcher over t. A nil table behaves as an empty one.
func NewMatcher(t *Table, opts Options) *Matcher {
	if opts.LongHits <= 0 {
		opts.LongHits = DefaultLongHits
	}
	if opts.MinMatches < 0 {
		opts.MinMatches = 0
	}
	return &Matcher{table: t, opts: opts}
}

func noCall() ShortCall {
	return ShortCall{Distance: -1}
}

// Match derives the short signature of long and runs both lookups.
// The only error is a long signature that cannot be projected.
func (m *Matcher) Match(long string) (Result, error) {
	short, err := signature.Short(long)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Query: short,
		Short: m.matchShort(short),
		Long:  m.matchLong(long, short),
	}, nil
}

// callWeight accumulates reference counts per substrate in first-seen order.
type callWeight struct {
	call   string
	weight int
}

func (m *Matcher) matchShort(short string) ShortCall {
	if m.table.Len() == 0 {
		return noCall()
	}

	best := -1
	for i := range m.table.entries {
		d := signature.Hamming(short, m.table.entries[i].Short)
		if best < 0 || d < best {
			best = d
		}
		if best == 0 {
			break
		}
	}

	matches := signature.ShortLength - best
	if matches < m.opts.MinMatches {
		return noCall()
	}

	var (
		weights []callWeight
		sigs    = map[string]bool{}
	)
	if best == 0 {
		for _, i := range m.table.byShort[short] {
			weights = addWeight(weights, m.table.entries[i])
		}
		sigs[short] = true
	} else {
		for i := range m.table.entries {
			e := m.table.entries[i]
			if signature.Hamming(short, e.Short) != best {
				continue
			}
			weights = addWeight(weights, e)
			sigs[e.Short] = true
		}
	}

	sort.SliceStable(weights, func(a, b int) bool {
		if weights[a].weight != weights[b].weight {
			return weights[a].weight > weights[b].weight
		}
		return weights[a].call < weights[b].call
	})

	var calls []string
	if best == 0 {
		// Exact hit: the majority-weighted call(s), ties reported jointly.
		for _, w := range weights {
			if w.weight < weights[0].weight {
				break
			}
			calls = append(calls, w.call)
		}
	} else {
		// Nearest neighbours: every distinct call at the minimum distance.
		for _, w := range weights {
			calls = append(calls, w.call)
		}
	}

	return ShortCall{
		Calls:      calls,
		Confidence: float64(matches) / float64(signature.ShortLength),
		Signatures: sortedKeys(sigs),
		Distance:   best,
		Exact:      best == 0,
	}
}

func addWeight(weights []callWeight, e Entry) []callWeight {
	for i := range weights {
		if weights[i].call == e.Winner {
			weights[i].weight += e.Count
			return weights
		}
	}
	return append(weights, callWeight{call: e.Winner, weight: e.Count})
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// matchLong keeps the most similar reference entry per substrate call and
// returns the top k calls.
// Order: long similarity desc, then short similarity desc, then reference
// weight desc, then call name.
func (m *Matcher) matchLong(long, short string) []LongHit {
	if m.table.Len() == 0 {
		return nil
	}

	type candidate struct {
		hit    LongHit
		weight int
	}
	best := make(map[string]*candidate)
	var order []string

	for i := range m.table.entries {
		e := m.table.entries[i]
		hit := LongHit{
			Call:            e.Winner,
			Similarity:      signature.Similarity(long, e.Long),
			Signature:       e.Long,
			ShortSimilarity: signature.Similarity(short, e.Short),
		}
		cur, ok := best[e.Winner]
		if !ok {
			best[e.Winner] = &candidate{hit: hit, weight: e.Count}
			order = append(order, e.Winner)
			continue
		}
		cur.weight += e.Count
		if betterHit(hit, cur.hit) {
			cur.hit = hit
		}
	}

	cands := make([]*candidate, 0, len(order))
	for _, call := range order {
		cands = append(cands, best[call])
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ha, hb := cands[a].hit, cands[b].hit
		if ha.Similarity != hb.Similarity {
			return ha.Similarity > hb.Similarity
		}
		if ha.ShortSimilarity != hb.ShortSimilarity {
			return ha.ShortSimilarity > hb.ShortSimilarity
		}
		if cands[a].weight != cands[b].weight {
			return cands[a].weight > cands[b].weight
		}
		return ha.Call < hb.Call
	})

	k := m.opts.LongHits
	if k > len(cands) {
		k = len(cands)
	}
	hits := make([]LongHit, k)
	for i := 0; i < k; i++ {
		hits[i] = cands[i].hit
	}
	return hits
}

// betterHit decides between two entries with the same call.
func betterHit(a, b LongHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.ShortSimilarity != b.ShortSimilarity {
		return a.ShortSimilarity > b.ShortSimilarity
	}
	return a.Signature < b.Signature
}
