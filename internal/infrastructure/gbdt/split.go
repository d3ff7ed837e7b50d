package gbdt

type histogram struct {
	grad  []float64
	hess  []float64
	count []int
}

type split struct {
	feature int
	bin     int
	gain    float64
}

type growState struct {
	params   Params
	binner   *binner
	binned   [][]uint8
	grad     []float64
	hess     []float64
	features []int
}

type grower interface {
	grow(s *growState, idx []int) Tree
}

func (s *growState) totals(idx []int) (g, h float64) {
	for _, i := range idx {
		g += s.grad[i]
		h += s.hess[i]
	}
	return g, h
}

func (s *growState) histograms(idx []int) []*histogram {
	out := make([]*histogram, len(s.binned))
	for _, f := range s.features {
		nb := s.binner.bins(f)
		h := &histogram{grad: make([]float64, nb), hess: make([]float64, nb), count: make([]int, nb)}
		col := s.binned[f]
		for _, i := range idx {
			b := col[i]
			h.grad[b] += s.grad[i]
			h.hess[b] += s.hess[i]
			h.count[b]++
		}
		out[f] = h
	}
	return out
}

func (s *growState) score(g, h float64) float64 {
	d := h + s.params.Lambda
	if d <= 0 {
		return 0
	}
	return g * g / d
}

func (s *growState) leafValue(g, h float64) float64 {
	d := h + s.params.Lambda
	if d <= 0 {
		return 0
	}
	return -g / d * s.params.LearningRate
}

// bestSplit scans every sampled feature and keeps the first split with the
// highest positive gain.
func (s *growState) bestSplit(hists []*histogram, g, h float64, n int) (split, bool) {
	best := split{gain: 0}
	found := false
	parent := s.score(g, h)
	for _, f := range s.features {
		hist := hists[f]
		var gl, hl float64
		nl := 0
		for b := 0; b < len(hist.grad)-1; b++ {
			gl += hist.grad[b]
			hl += hist.hess[b]
			nl += hist.count[b]
			gr, hr, nr := g-gl, h-hl, n-nl
			if nl < s.params.MinDataInLeaf || nr < s.params.MinDataInLeaf {
				continue
			}
			if hl < s.params.MinChildWeight || hr < s.params.MinChildWeight {
				continue
			}
			gain := 0.5*(s.score(gl, hl)+s.score(gr, hr)-parent) - s.params.Gamma
			if gain > best.gain {
				best = split{feature: f, bin: b, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (s *growState) partition(idx []int, sp split) (left, right []int) {
	col := s.binned[sp.feature]
	for _, i := range idx {
		if int(col[i]) <= sp.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func (s *growState) splitNode(sp split) Node {
	return Node{Feature: sp.feature, Threshold: s.binner.threshold(sp.feature, sp.bin)}
}
