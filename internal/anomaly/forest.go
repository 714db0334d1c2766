// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package anomaly

import (
	"math"
	"math/rand"
	"sort"
)

// eulerGamma is the Euler-Mascheroni constant used by the average path length.
const eulerGamma = 0.5772156649015329

// maxSampleSize is the per-tree subsample cap from the isolation forest paper.
const maxSampleSize = 256

// node is one isolation tree node stored in a flat slice.
// Fields are exported for gob.
type node struct {
	Leaf bool
	// Size is the number of training points that reached a leaf.
	Size int

	Feature int
	Split   float64
	// Min and Max bound the split feature over the points at this node.
	Min, Max    float64
	Left, Right int
}

type tree struct {
	Nodes []node
}

// forest is a fitted isolation forest.
// Reference: "Isolation Forest" (Liu, Ting, Zhou, 2008).
type forest struct {
	Trees      []tree
	SampleSize int
	Width      int
	// Threshold is the anomaly score above which a point is an outlier.
	Threshold float64
}

// fitForest grows trees over data and derives the decision threshold from
// the training scores at the 1-contamination quantile.
func fitForest(data [][]float64, trees int, contamination float64, seed int64) *forest {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible fits, not security sensitive

	n := len(data)
	psi := n
	if psi > maxSampleSize {
		psi = maxSampleSize
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))

	f := &forest{
		Trees:      make([]tree, 0, trees),
		SampleSize: psi,
		Width:      len(data[0]),
	}

	b := &treeBuilder{data: data, rng: rng, width: f.Width}
	for i := 0; i < trees; i++ {
		idx := rng.Perm(n)[:psi]
		b.nodes = make([]node, 0, 2*psi)
		b.build(idx, 0, limit)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})
	}

	scores := make([]float64, n)
	for i, x := range data {
		scores[i] = f.score(x)
	}
	f.Threshold = quantile(scores, 1-contamination)
	return f
}

type span struct {
	feature int
	lo, hi  float64
}

type treeBuilder struct {
	data  [][]float64
	rng   *rand.Rand
	width int
	nodes []node
	spans []span
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth, limit int) int {
	pos := len(b.nodes)
	b.nodes = append(b.nodes, node{})

	if depth >= limit || len(idx) <= 1 {
		b.nodes[pos] = node{Leaf: true, Size: len(idx)}
		return pos
	}

	// Only features that still vary can split the node.
	b.spans = b.spans[:0]
	for f := 0; f < b.width; f++ {
		lo, hi := b.data[idx[0]][f], b.data[idx[0]][f]
		for _, i := range idx[1:] {
			v := b.data[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi > lo {
			b.spans = append(b.spans, span{feature: f, lo: lo, hi: hi})
		}
	}
	if len(b.spans) == 0 {
		b.nodes[pos] = node{Leaf: true, Size: len(idx)}
		return pos
	}

	s := b.spans[b.rng.Intn(len(b.spans))]
	split := s.lo + b.rng.Float64()*(s.hi-s.lo)

	// Partition in place: [0,k) < split <= [k,n).
	k := 0
	for i := range idx {
		if b.data[idx[i]][s.feature] < split {
			idx[i], idx[k] = idx[k], idx[i]
			k++
		}
	}

	left := b.build(idx[:k], depth+1, limit)
	right := b.build(idx[k:], depth+1, limit)
	b.nodes[pos] = node{
		Feature: s.feature,
		Split:   split,
		Min:     s.lo,
		Max:     s.hi,
		Left:    left,
		Right:   right,
	}
	return pos
}

// pathLength is h(x) for one tree. A value outside the range seen at a
// node is isolated there.
func (t *tree) pathLength(x []float64) float64 {
	i, depth := 0, 0
	for {
		nd := t.Nodes[i]
		if nd.Leaf {
			return float64(depth) + averagePathLength(nd.Size)
		}
		v := x[nd.Feature]
		if v < nd.Min || v > nd.Max {
			return float64(depth + 1)
		}
		if v < nd.Split {
			i = nd.Left
		} else {
			i = nd.Right
		}
		depth++
	}
}

// score returns s(x) = 2^(-E[h(x)]/c(psi)), in (0, 1]. Higher is more anomalous.
func (f *forest) score(x []float64) float64 {
	var total float64
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

// valid reports whether every child index is in range. Used after decoding.
func (f *forest) valid() bool {
	if len(f.Trees) == 0 || f.Width <= 0 || f.SampleSize < 2 {
		return false
	}
	for _, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return false
		}
		for i, nd := range t.Nodes {
			if nd.Leaf {
				continue
			}
			if nd.Feature < 0 || nd.Feature >= f.Width {
				return false
			}
			// Children are always appended after their parent.
			if nd.Left <= i || nd.Right <= i || nd.Left >= len(t.Nodes) || nd.Right >= len(t.Nodes) {
				return false
			}
		}
	}
	return true
}

// averagePathLength is c(n), the mean unsuccessful-search path length of a
// binary search tree with n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// quantile uses linear interpolation between closest ranks. values is sorted in place.
func quantile(values []float64, q float64) float64 {
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}
	pos := q * float64(len(values)-1)
	lo := int(math.Floor(pos))
	if lo >= len(values)-1 {
		return values[len(values)-1]
	}
	frac := pos - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}
