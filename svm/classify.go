package svm

import (
	"math"
	"sort"

	"github.com/teranos/nrps/encoding"
	"github.com/teranos/nrps/errors"
)

const (
	// Pairwise probabilities are clipped away from 0 and 1 before coupling.
	minPairProb = 1e-7
	maxPairProb = 1 - minPairProb
)

// Candidate is one class with its evidence.
type Candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Votes int     `json:"votes"`
}

// Prediction is the classifier output for one feature vector.
type Prediction struct {
	// Labels is the winning class, or several when the vote is tied and cannot
	// be broken. Empty means no confident call.
	Labels     []string `json:"labels,omitempty"`
	Confidence float64  `json:"confidence"`
	// Probability is true when Confidence is a coupled probability rather
	// than a vote fraction.
	Probability bool `json:"probability"`
	// Candidates holds every class, best first.
	Candidates []Candidate `json:"candidates"`
}

// NoCall reports whether the winner fell below the scheme threshold.
func (p Prediction) NoCall() bool {
	return len(p.Labels) == 0
}

// Top returns the n best candidates plus any that tie the n-th one.
func (p Prediction) Top(n int) []Candidate {
	if n <= 0 || len(p.Candidates) == 0 {
		return nil
	}
	if n >= len(p.Candidates) {
		return p.Candidates
	}
	last := p.Candidates[n-1]
	end := n
	for end < len(p.Candidates) && sameRank(p.Candidates[end], last) {
		end++
	}
	return p.Candidates[:end]
}

func sameRank(a, b Candidate) bool {
	return a.Votes == b.Votes && a.Score == b.Score
}

// Classify evaluates every pairwise decision function against x and combines
// the votes. x must have the artifact's dimension.
func (a *Artifact) Classify(x encoding.Vector) (Prediction, error) {
	if len(x) != a.Dimension() {
		return Prediction{}, errors.Mark(
			errors.Newf("feature vector has %d values, scheme %s expects %d", len(x), a.Scheme, a.Dimension()),
			errors.ErrEncoding)
	}

	m := a.Model
	k := m.NrClass
	dec := m.decisionValues(x)

	votes := make([]int, k)
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if dec[p] > 0 {
				votes[i]++
			} else {
				votes[j]++
			}
			p++
		}
	}

	var probs []float64
	if m.HasProbability() {
		probs = m.coupledProbabilities(dec)
	}

	score := func(i int) float64 {
		if probs != nil {
			return probs[i]
		}
		return float64(votes[i]) / float64(k-1)
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(u, v int) bool {
		cu, cv := order[u], order[v]
		if votes[cu] != votes[cv] {
			return votes[cu] > votes[cv]
		}
		return score(cu) > score(cv)
	})

	pred := Prediction{
		Probability: probs != nil,
		Candidates:  make([]Candidate, k),
	}
	for r, i := range order {
		pred.Candidates[r] = Candidate{
			Label: a.Classes[m.Labels[i]],
			Score: score(i),
			Votes: votes[i],
		}
	}

	// Candidates[0] carries the most votes; probability (when present) has
	// already broken vote ties in the ordering.
	best := pred.Candidates[0]
	var winners []string
	for _, c := range pred.Candidates {
		if !sameRank(c, best) {
			break
		}
		winners = append(winners, c.Label)
	}
	sort.Strings(winners)
	pred.Confidence = clamp01(best.Score)

	if pred.Confidence >= a.MinConfidence {
		pred.Labels = winners
	}
	return pred, nil
}

// decisionValues computes the pairwise decision values. Kernel values are
// evaluated once per support vector in ascending order and every sum runs in
// a fixed order, so the result does not depend on scheduling.
func (m *Model) decisionValues(x []float64) []float64 {
	kvalue := make([]float64, len(m.SV))
	for i, sv := range m.SV {
		kvalue[i] = m.Kernel.Eval(x, sv)
	}

	dec := make([]float64, 0, m.Pairs())
	p := 0
	for i := 0; i < m.NrClass; i++ {
		for j := i + 1; j < m.NrClass; j++ {
			si, sj := m.start[i], m.start[j]
			ci, cj := m.NrSV[i], m.NrSV[j]
			coef1, coef2 := m.Coef[j-1], m.Coef[i]

			var sum float64
			for s := 0; s < ci; s++ {
				sum += coef1[si+s] * kvalue[si+s]
			}
			for s := 0; s < cj; s++ {
				sum += coef2[sj+s] * kvalue[sj+s]
			}
			dec = append(dec, sum-m.Rho[p])
			p++
		}
	}
	return dec
}

// coupledProbabilities turns pairwise decision values into per-class
// probabilities: Platt sigmoid per pair, then Wu, Lin and Weng's coupling.
func (m *Model) coupledProbabilities(dec []float64) []float64 {
	k := m.NrClass
	r := make([][]float64, k)
	for i := range r {
		r[i] = make([]float64, k)
	}
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			v := sigmoidPredict(dec[p], m.ProbA[p], m.ProbB[p])
			v = math.Min(math.Max(v, minPairProb), maxPairProb)
			r[i][j] = v
			r[j][i] = 1 - v
			p++
		}
	}
	if k == 2 {
		return []float64{r[0][1], r[1][0]}
	}
	return multiclassProbability(k, r)
}

func sigmoidPredict(dec, a, b float64) float64 {
	fApB := dec*a + b
	if fApB >= 0 {
		return math.Exp(-fApB) / (1 + math.Exp(-fApB))
	}
	return 1 / (1 + math.Exp(fApB))
}

// multiclassProbability solves the pairwise coupling problem by the fixed
// point iteration of Wu, Lin and Weng (2004), method 2.
func multiclassProbability(k int, r [][]float64) []float64 {
	maxIter := 100
	if k > maxIter {
		maxIter = k
	}
	eps := 0.005 / float64(k)

	q := make([][]float64, k)
	for i := range q {
		q[i] = make([]float64, k)
	}
	prob := make([]float64, k)
	qp := make([]float64, k)

	for t := 0; t < k; t++ {
		prob[t] = 1 / float64(k)
		for j := 0; j < t; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = q[j][t]
		}
		for j := t + 1; j < k; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = -r[j][t] * r[t][j]
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		var pQp float64
		for t := 0; t < k; t++ {
			qp[t] = 0
			for j := 0; j < k; j++ {
				qp[t] += q[t][j] * prob[j]
			}
			pQp += prob[t] * qp[t]
		}
		var maxError float64
		for t := 0; t < k; t++ {
			if e := math.Abs(qp[t] - pQp); e > maxError {
				maxError = e
			}
		}
		if maxError < eps {
			break
		}
		for t := 0; t < k; t++ {
			diff := (-qp[t] + pQp) / q[t][t]
			prob[t] += diff
			pQp = (pQp + diff*(diff*q[t][t]+2*qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				qp[j] = (qp[j] + diff*q[t][j]) / (1 + diff)
				prob[j] /= 1 + diff
			}
		}
	}
	return prob
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
