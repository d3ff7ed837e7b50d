package gbdt

// depthwise grows every node to MaxDepth unless no split has positive gain.
type depthwise struct{}

func (depthwise) grow(s *growState, idx []int) Tree {
	var t Tree
	growLevel(s, &t, idx, 0)
	return t
}

func growLevel(s *growState, t *Tree, idx []int, depth int) int {
	g, h := s.totals(idx)
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Leaf: true, Value: s.leafValue(g, h)})
	if depth >= s.params.MaxDepth || len(idx) < 2 {
		return id
	}
	sp, ok := s.bestSplit(s.histograms(idx), g, h, len(idx))
	if !ok {
		return id
	}
	left, right := s.partition(idx, sp)
	t.Nodes[id] = s.splitNode(sp)
	l := growLevel(s, t, left, depth+1)
	r := growLevel(s, t, right, depth+1)
	t.Nodes[id].Left, t.Nodes[id].Right = l, r
	return id
}

// leafwise repeatedly splits the leaf with the best gain until the leaf
// budget is spent.
type leafwise struct{}

type leafCandidate struct {
	node  int
	idx   []int
	depth int
	split split
	ok    bool
}

func (leafwise) grow(s *growState, idx []int) Tree {
	maxLeaves := s.params.MaxLeaves
	if maxLeaves < 2 {
		maxLeaves = 1 << s.params.MaxDepth
	}

	var t Tree
	open := []leafCandidate{newLeaf(s, &t, idx, 0)}
	for leaves := 1; leaves < maxLeaves; leaves++ {
		pick := -1
		for i, c := range open {
			if c.ok && (pick < 0 || c.split.gain > open[pick].split.gain) {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		c := open[pick]
		open = append(open[:pick], open[pick+1:]...)

		left, right := s.partition(c.idx, c.split)
		t.Nodes[c.node] = s.splitNode(c.split)
		lc := newLeaf(s, &t, left, c.depth+1)
		rc := newLeaf(s, &t, right, c.depth+1)
		t.Nodes[c.node].Left, t.Nodes[c.node].Right = lc.node, rc.node
		open = append(open, lc, rc)
	}
	return t
}

func newLeaf(s *growState, t *Tree, idx []int, depth int) leafCandidate {
	g, h := s.totals(idx)
	c := leafCandidate{node: len(t.Nodes), idx: idx, depth: depth}
	t.Nodes = append(t.Nodes, Node{Leaf: true, Value: s.leafValue(g, h)})
	if depth < s.params.MaxDepth && len(idx) >= 2 {
		c.split, c.ok = s.bestSplit(s.histograms(idx), g, h, len(idx))
	}
	return c
}

// oblivious applies one (feature, threshold) pair to every node of a level.
type oblivious struct{}

func (oblivious) grow(s *growState, idx []int) Tree {
	groups := [][]int{idx}
	var levels []split
	for depth := 0; depth < s.params.MaxDepth; depth++ {
		sp, ok := bestSymmetricSplit(s, groups)
		if !ok {
			break
		}
		next := make([][]int, 0, 2*len(groups))
		for _, g := range groups {
			left, right := s.partition(g, sp)
			next = append(next, left, right)
		}
		groups = next
		levels = append(levels, sp)
	}

	var t Tree
	buildSymmetric(s, &t, levels, groups, 0, 0)
	return t
}

func bestSymmetricSplit(s *growState, groups [][]int) (split, bool) {
	type groupStats struct {
		hists []*histogram
		g, h  float64
	}
	stats := make([]groupStats, len(groups))
	for i, g := range groups {
		gs, hs := s.totals(g)
		stats[i] = groupStats{hists: s.histograms(g), g: gs, h: hs}
	}

	best := split{}
	found := false
	for _, f := range s.features {
		nb := s.binner.bins(f)
		gl := make([]float64, len(groups))
		hl := make([]float64, len(groups))
		for b := 0; b < nb-1; b++ {
			gain := 0.0
			for i, st := range stats {
				gl[i] += st.hists[f].grad[b]
				hl[i] += st.hists[f].hess[b]
				gain += s.score(gl[i], hl[i]) + s.score(st.g-gl[i], st.h-hl[i]) - s.score(st.g, st.h)
			}
			gain = 0.5*gain - s.params.Gamma
			if gain > best.gain {
				best = split{feature: f, bin: b, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func buildSymmetric(s *growState, t *Tree, levels []split, groups [][]int, depth, pos int) int {
	id := len(t.Nodes)
	if depth == len(levels) {
		g, h := s.totals(groups[pos])
		t.Nodes = append(t.Nodes, Node{Leaf: true, Value: s.leafValue(g, h)})
		return id
	}
	t.Nodes = append(t.Nodes, s.splitNode(levels[depth]))
	l := buildSymmetric(s, t, levels, groups, depth+1, 2*pos)
	r := buildSymmetric(s, t, levels, groups, depth+1, 2*pos+1)
	t.Nodes[id].Left, t.Nodes[id].Right = l, r
	return id
}
