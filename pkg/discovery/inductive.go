package discovery

import (
	"context"
	"sort"

	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// InductiveMiner discovers a block-structured process tree by recursively
// splitting the log along exclusive-choice, sequence, parallel and loop cuts
// of its directly-follows graph. When no cut applies it falls through to
// empty-trace, activity-once-per-trace, tau-loop and flower models, so the
// result always fits the log.
type InductiveMiner struct{}

// Discover mines a process tree from the log.
func (InductiveMiner) Discover(ctx context.Context, log *eventlog.Log) (*Tree, error) {
	m := &miner{ctx: ctx}
	tree := m.mine(fromLog(log))
	if m.err != nil {
		return nil, m.err
	}
	return fold(tree), nil
}

type miner struct {
	ctx context.Context
	err error
}

func (m *miner) mine(l sublog) *Tree {
	if m.err != nil {
		return Tau()
	}
	if err := m.ctx.Err(); err != nil {
		m.err = err
		return Tau()
	}

	nonEmpty, hasEmpty := l.withoutEmpty()
	if len(nonEmpty) == 0 {
		return Tau()
	}

	// Empty traces: the whole behaviour is skippable.
	if hasEmpty {
		return Node(OpXor, Tau(), m.mine(nonEmpty))
	}

	acts := l.activities()
	if len(acts) == 1 {
		if l.allSingletons() {
			return Leaf(acts[0])
		}
		return Node(OpLoop, Leaf(acts[0]), Tau())
	}

	g := l.dfg()
	if c := findCut(g, acts); c != nil {
		return m.split(l, c)
	}

	return m.fallThrough(l, g, acts)
}

func (m *miner) split(l sublog, c *cut) *Tree {
	var parts []sublog
	switch c.op {
	case OpXor:
		parts = l.splitXor(c.groups)
	case OpLoop:
		parts = l.splitLoop(c.groups)
	default:
		parts = make([]sublog, len(c.groups))
		for i, grp := range c.groups {
			parts[i] = l.project(toSet(grp))
		}
	}

	children := make([]*Tree, len(parts))
	for i, p := range parts {
		children[i] = m.mine(p)
	}
	return Node(c.op, children...)
}

func (m *miner) fallThrough(l sublog, g *DFG, acts []string) *Tree {
	// Activity once per trace: run it in parallel with the rest.
	if a, ok := l.activityOncePerTrace(acts); ok {
		rest := make(map[string]bool, len(acts)-1)
		for _, b := range acts {
			if b != a {
				rest[b] = true
			}
		}
		return Node(OpParallel, Leaf(a), m.mine(l.project(rest)))
	}

	// Strict tau loop: an end activity directly followed by a start activity.
	if split, ok := l.splitAt(func(prev, cur string) bool {
		return g.End[prev] > 0 && g.Start[cur] > 0
	}); ok {
		return Node(OpLoop, m.mine(split), Tau())
	}

	// Tau loop: any re-occurrence of a start activity.
	if split, ok := l.splitAt(func(_, cur string) bool {
		return g.Start[cur] > 0
	}); ok {
		return Node(OpLoop, m.mine(split), Tau())
	}

	// Flower model: any activity, any number of times.
	leaves := make([]*Tree, len(acts))
	for i, a := range acts {
		leaves[i] = Leaf(a)
	}
	return Node(OpLoop, Tau(), Node(OpXor, leaves...))
}

// --- sublog operations ---

func (l sublog) withoutEmpty() (sublog, bool) {
	out := make(sublog, 0, len(l))
	hasEmpty := false
	for _, t := range l {
		if len(t.acts) == 0 {
			hasEmpty = true
			continue
		}
		out = append(out, t)
	}
	return out, hasEmpty
}

func (l sublog) activities() []string {
	seen := make(map[string]bool)
	for _, t := range l {
		for _, a := range t.acts {
			seen[a] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (l sublog) allSingletons() bool {
	for _, t := range l {
		if len(t.acts) != 1 {
			return false
		}
	}
	return true
}

// activityOncePerTrace returns the first activity occurring exactly once in every trace.
func (l sublog) activityOncePerTrace(acts []string) (string, bool) {
	for _, a := range acts {
		once := true
		for _, t := range l {
			n := 0
			for _, b := range t.acts {
				if b == a {
					n++
				}
			}
			if n != 1 {
				once = false
				break
			}
		}
		if once {
			return a, true
		}
	}
	return "", false
}

// project keeps only activities in keep, merging identical results.
func (l sublog) project(keep map[string]bool) sublog {
	b := newSublogBuilder()
	for _, t := range l {
		acts := make([]string, 0, len(t.acts))
		for _, a := range t.acts {
			if keep[a] {
				acts = append(acts, a)
			}
		}
		b.add(acts, t.count)
	}
	return b.sublog()
}

// splitXor sends each trace to the group holding most of its activities.
func (l sublog) splitXor(groups [][]string) []sublog {
	member := groupIndex(groups)
	builders := make([]*sublogBuilder, len(groups))
	for i := range builders {
		builders[i] = newSublogBuilder()
	}

	for _, t := range l {
		counts := make([]int, len(groups))
		for _, a := range t.acts {
			counts[member[a]]++
		}
		best := 0
		for i, c := range counts {
			if c > counts[best] {
				best = i
			}
		}
		keep := toSet(groups[best])
		acts := make([]string, 0, len(t.acts))
		for _, a := range t.acts {
			if keep[a] {
				acts = append(acts, a)
			}
		}
		builders[best].add(acts, t.count)
	}

	out := make([]sublog, len(groups))
	for i, b := range builders {
		out[i] = b.sublog()
	}
	return out
}

// splitLoop cuts each trace into maximal do and redo segments. A trace that
// starts or ends in a redo part, or moves between two redo parts, implies an
// empty pass through the do-part.
func (l sublog) splitLoop(groups [][]string) []sublog {
	member := groupIndex(groups)
	builders := make([]*sublogBuilder, len(groups))
	for i := range builders {
		builders[i] = newSublogBuilder()
	}

	for _, t := range l {
		var segment []string
		current := -1
		flush := func() {
			if current >= 0 {
				builders[current].add(segment, t.count)
			}
			segment = nil
		}

		for i, a := range t.acts {
			g := member[a]
			if g == current {
				segment = append(segment, a)
				continue
			}
			if g != 0 && (i == 0 || current != 0) {
				flush()
				builders[0].add(nil, t.count)
			} else {
				flush()
			}
			current = g
			segment = []string{a}
		}
		flush()
		if current > 0 {
			builders[0].add(nil, t.count)
		}
	}

	out := make([]sublog, len(groups))
	for i, b := range builders {
		out[i] = b.sublog()
	}
	return out
}

// splitAt splits traces before every position where cut(prev, cur) holds.
// It reports false when no trace was split.
func (l sublog) splitAt(cut func(prev, cur string) bool) (sublog, bool) {
	b := newSublogBuilder()
	split := false
	for _, t := range l {
		start := 0
		for i := 1; i < len(t.acts); i++ {
			if cut(t.acts[i-1], t.acts[i]) {
				b.add(t.acts[start:i], t.count)
				start = i
				split = true
			}
		}
		b.add(t.acts[start:], t.count)
	}
	if !split {
		return nil, false
	}
	return b.sublog(), true
}

// sublogBuilder merges identical traces while preserving first-seen order.
type sublogBuilder struct {
	index map[string]int
	out   sublog
}

func newSublogBuilder() *sublogBuilder {
	return &sublogBuilder{index: make(map[string]int)}
}

func (b *sublogBuilder) add(acts []string, count int) {
	key := traceKey(acts)
	if i, ok := b.index[key]; ok {
		b.out[i].count += count
		return
	}
	b.index[key] = len(b.out)
	cp := make([]string, len(acts))
	copy(cp, acts)
	b.out = append(b.out, trace{acts: cp, count: count})
}

func (b *sublogBuilder) sublog() sublog {
	return b.out
}

func traceKey(acts []string) string {
	n := 0
	for _, a := range acts {
		n += len(a) + 1
	}
	buf := make([]byte, 0, n)
	for _, a := range acts {
		buf = append(buf, a...)
		buf = append(buf, 0)
	}
	return string(buf)
}

func toSet(acts []string) map[string]bool {
	s := make(map[string]bool, len(acts))
	for _, a := range acts {
		s[a] = true
	}
	return s
}

func groupIndex(groups [][]string) map[string]int {
	idx := make(map[string]int)
	for i, g := range groups {
		for _, a := range g {
			idx[a] = i
		}
	}
	return idx
}

// fold flattens nested operators of the same kind and collapses duplicate
// silent choices, e.g. ->(a, ->(b, c)) becomes ->(a, b, c).
func fold(t *Tree) *Tree {
	if t.IsLeaf() {
		return t
	}

	children := make([]*Tree, 0, len(t.Children))
	for _, c := range t.Children {
		c = fold(c)
		if c.Operator == t.Operator && t.Operator != OpLoop {
			children = append(children, c.Children...)
			continue
		}
		children = append(children, c)
	}

	if t.Operator == OpXor {
		seenTau := false
		dedup := children[:0]
		for _, c := range children {
			if c.IsTau() {
				if seenTau {
					continue
				}
				seenTau = true
			}
			dedup = append(dedup, c)
		}
		children = dedup
	}

	if len(children) == 1 && t.Operator != OpLoop {
		return children[0]
	}
	return &Tree{Operator: t.Operator, Children: children}
}
