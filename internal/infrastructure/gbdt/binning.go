package gbdt

import (
	"math"
	"slices"
)

// binner maps raw feature values to histogram bins. Bin b of a feature holds
// values v with edges[b-1] < v <= edges[b]; the last bin is unbounded.
type binner struct {
	edges [][]float64
}

func fitBinner(rows [][]float64, features, maxBins int) *binner {
	b := &binner{edges: make([][]float64, features)}
	column := make([]float64, len(rows))
	for f := 0; f < features; f++ {
		for i, row := range rows {
			column[i] = row[f]
		}
		b.edges[f] = quantileEdges(column, maxBins)
	}
	return b
}

func quantileEdges(values []float64, maxBins int) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	distinct := slices.Compact(sorted)
	if len(distinct) <= 1 {
		return nil
	}
	if len(distinct) <= maxBins {
		edges := make([]float64, len(distinct)-1)
		for i := range edges {
			edges[i] = midpoint(distinct[i], distinct[i+1])
		}
		return edges
	}

	// sorted was compacted in place; rebuild the full ordering for quantiles.
	full := slices.Clone(values)
	slices.Sort(full)
	edges := make([]float64, 0, maxBins-1)
	for q := 1; q < maxBins; q++ {
		pos := q * len(full) / maxBins
		lo, hi := full[pos-1], full[pos]
		if lo == hi {
			// Place the cut after the run of equal values.
			next := pos
			for next < len(full) && full[next] == lo {
				next++
			}
			if next == len(full) {
				continue
			}
			hi = full[next]
		}
		edge := midpoint(lo, hi)
		if len(edges) == 0 || edge > edges[len(edges)-1] {
			edges = append(edges, edge)
		}
	}
	return edges
}

func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}

func (b *binner) bins(f int) int {
	return len(b.edges[f]) + 1
}

func (b *binner) bin(f int, v float64) uint8 {
	idx, _ := slices.BinarySearch(b.edges[f], v)
	return uint8(idx)
}

// threshold is the raw split value that sends bins <= b left.
func (b *binner) threshold(f int, bin int) float64 {
	return b.edges[f][bin]
}

func (b *binner) binAll(rows [][]float64) [][]uint8 {
	out := make([][]uint8, len(b.edges))
	for f := range b.edges {
		col := make([]uint8, len(rows))
		for i, row := range rows {
			col[i] = b.bin(f, row[f])
		}
		out[f] = col
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
