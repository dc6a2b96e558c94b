package discovery

import "sort"

// cut is a partition of a sublog's activities under an operator.
// For OpLoop the first group is the do-part.
type cut struct {
	op     Operator
	groups [][]string
}

// unionFind groups activities; find returns a canonical representative.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(acts []string) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(acts))}
	for _, a := range acts {
		uf.parent[a] = a
	}
	return uf
}

func (u *unionFind) find(a string) string {
	for u.parent[a] != a {
		u.parent[a] = u.parent[u.parent[a]]
		a = u.parent[a]
	}
	return a
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Keep the lexically smaller root so groups come out deterministic.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

// groups returns the partition, each group sorted, groups ordered by first member.
func (u *unionFind) groups(acts []string) [][]string {
	byRoot := make(map[string][]string)
	for _, a := range acts {
		r := u.find(a)
		byRoot[r] = append(byRoot[r], a)
	}
	out := make([][]string, 0, len(byRoot))
	for _, g := range byRoot {
		sort.Strings(g)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// findCut tries the exclusive-choice, sequence, parallel and loop cuts in that order.
func findCut(g *DFG, acts []string) *cut {
	if groups := xorCut(g, acts); len(groups) > 1 {
		return &cut{op: OpXor, groups: groups}
	}
	if groups := sequenceCut(g, acts); len(groups) > 1 {
		return &cut{op: OpSequence, groups: groups}
	}
	if groups := parallelCut(g, acts); len(groups) > 1 {
		return &cut{op: OpParallel, groups: groups}
	}
	if groups := loopCut(g, acts); len(groups) > 1 {
		return &cut{op: OpLoop, groups: groups}
	}
	return nil
}

// xorCut returns the connected components of the undirected DFG.
func xorCut(g *DFG, acts []string) [][]string {
	uf := newUnionFind(acts)
	for _, a := range acts {
		for b, c := range g.Edges[a] {
			if c > 0 {
				uf.union(a, b)
			}
		}
	}
	return uf.groups(acts)
}

// sequenceCut merges activities that are mutually reachable or mutually
// unreachable, then orders the groups by reachability. The cut is only
// returned when every earlier group reaches every later one and never back.
func sequenceCut(g *DFG, acts []string) [][]string {
	reach := g.reachability(acts)
	uf := newUnionFind(acts)
	for i, a := range acts {
		for _, b := range acts[i+1:] {
			ab, ba := reach[a][b], reach[b][a]
			if ab == ba {
				uf.union(a, b)
			}
		}
	}

	groups := uf.groups(acts)
	if len(groups) < 2 {
		return nil
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return reach[groups[i][0]][groups[j][0]]
	})

	for i := range groups {
		for j := i + 1; j < len(groups); j++ {
			for _, a := range groups[i] {
				for _, b := range groups[j] {
					if !reach[a][b] || reach[b][a] {
						return nil
					}
				}
			}
		}
	}
	return groups
}

// parallelCut returns the components of the graph connecting every pair of
// activities that do not directly follow each other in both directions.
// Every group must hold a start and an end activity; groups that do not are
// folded into the first group that does.
func parallelCut(g *DFG, acts []string) [][]string {
	uf := newUnionFind(acts)
	for i, a := range acts {
		for _, b := range acts[i+1:] {
			if !(g.HasEdge(a, b) && g.HasEdge(b, a)) {
				uf.union(a, b)
			}
		}
	}

	groups := uf.groups(acts)
	if len(groups) < 2 {
		return nil
	}

	var valid, invalid [][]string
	for _, grp := range groups {
		if containsAny(grp, g.Start) && containsAny(grp, g.End) {
			valid = append(valid, grp)
		} else {
			invalid = append(invalid, grp)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	for _, grp := range invalid {
		valid[0] = append(valid[0], grp...)
	}
	sort.Strings(valid[0])

	if len(valid) < 2 {
		return nil
	}
	return valid
}

// loopCut places start and end activities in the do-part and treats the
// remaining connected components as redo candidates. A candidate joins the
// do-part when it is entered from a non-end activity, leaves into a non-start
// activity, or is connected to only some of the end or start activities.
func loopCut(g *DFG, acts []string) [][]string {
	do := make(map[string]bool)
	for a := range g.Start {
		do[a] = true
	}
	for a := range g.End {
		do[a] = true
	}

	var rest []string
	for _, a := range acts {
		if !do[a] {
			rest = append(rest, a)
		}
	}
	if len(rest) == 0 {
		return nil
	}

	uf := newUnionFind(rest)
	for _, a := range rest {
		for b, c := range g.Edges[a] {
			if c > 0 && !do[b] {
				uf.union(a, b)
			}
		}
	}
	candidates := uf.groups(rest)

	starts := sortedKeys(g.Start)
	ends := sortedKeys(g.End)

	for changed := true; changed; {
		changed = false
		var kept [][]string
		for _, comp := range candidates {
			if joinsDo(g, comp, do, starts, ends) {
				for _, a := range comp {
					do[a] = true
				}
				changed = true
				continue
			}
			kept = append(kept, comp)
		}
		candidates = kept
	}

	if len(candidates) == 0 {
		return nil
	}

	doPart := make([]string, 0, len(do))
	for _, a := range acts {
		if do[a] {
			doPart = append(doPart, a)
		}
	}
	return append([][]string{doPart}, candidates...)
}

func joinsDo(g *DFG, comp []string, do map[string]bool, starts, ends []string) bool {
	in := make(map[string]bool, len(comp))
	for _, a := range comp {
		in[a] = true
	}

	for _, a := range comp {
		for b, c := range g.Edges[a] {
			if c > 0 && do[b] && g.Start[b] == 0 {
				return true
			}
		}
	}
	for a := range do {
		if g.End[a] > 0 {
			continue
		}
		for b, c := range g.Edges[a] {
			if c > 0 && in[b] {
				return true
			}
		}
	}

	for _, b := range comp {
		from := 0
		for _, e := range ends {
			if g.HasEdge(e, b) {
				from++
			}
		}
		if from > 0 && from < len(ends) {
			return true
		}
	}
	for _, a := range comp {
		to := 0
		for _, s := range starts {
			if g.HasEdge(a, s) {
				to++
			}
		}
		if to > 0 && to < len(starts) {
			return true
		}
	}
	return false
}

func containsAny(group []string, set map[string]int64) bool {
	for _, a := range group {
		if set[a] > 0 {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
