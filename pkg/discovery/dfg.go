package discovery

import (
	"sort"

	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// trace is a weighted activity sequence; sublogs are variant-compressed.
type trace struct {
	acts  []string
	count int
}

// sublog is the miner's working representation of a (projected) log.
type sublog []trace

func fromLog(log *eventlog.Log) sublog {
	variants := log.Variants()
	out := make(sublog, len(variants))
	for i, v := range variants {
		out[i] = trace{acts: v.Activities, count: v.Count}
	}
	return out
}

// DFG is a directly-follows graph with start and end activity counts.
// Mathematical definition: G = (A, F, S, E) where F ⊆ A×A holds pairs (a, b)
// such that b directly follows a in some trace.
type DFG struct {
	Activities map[string]int64
	Edges      map[string]map[string]int64
	Start      map[string]int64
	End        map[string]int64
}

// NewDFG creates an empty DFG.
func NewDFG() *DFG {
	return &DFG{
		Activities: make(map[string]int64),
		Edges:      make(map[string]map[string]int64),
		Start:      make(map[string]int64),
		End:        make(map[string]int64),
	}
}

// DiscoverDFG builds the directly-follows graph of a log.
func DiscoverDFG(log *eventlog.Log) *DFG {
	return fromLog(log).dfg()
}

func (l sublog) dfg() *DFG {
	g := NewDFG()
	for _, t := range l {
		if len(t.acts) == 0 {
			continue
		}
		w := int64(t.count)
		g.Start[t.acts[0]] += w
		g.End[t.acts[len(t.acts)-1]] += w
		for i, a := range t.acts {
			g.Activities[a] += w
			if i < len(t.acts)-1 {
				g.addEdge(a, t.acts[i+1], w)
			}
		}
	}
	return g
}

func (g *DFG) addEdge(a, b string, w int64) {
	targets, ok := g.Edges[a]
	if !ok {
		targets = make(map[string]int64)
		g.Edges[a] = targets
	}
	targets[b] += w
}

// HasEdge reports whether b directly follows a.
func (g *DFG) HasEdge(a, b string) bool {
	return g.Edges[a][b] > 0
}

// SortedActivities returns the activity names in lexical order.
func (g *DFG) SortedActivities() []string {
	out := make([]string, 0, len(g.Activities))
	for a := range g.Activities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Edge is one weighted directly-follows relation.
type Edge struct {
	Source string
	Target string
	Count  int64
}

// EdgeList returns every edge, most frequent first, ties broken by name.
func (g *DFG) EdgeList() []Edge {
	var edges []Edge
	for source, targets := range g.Edges {
		for target, count := range targets {
			if count > 0 {
				edges = append(edges, Edge{Source: source, Target: target, Count: count})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// reachability returns the transitive closure of the DFG over acts.
func (g *DFG) reachability(acts []string) map[string]map[string]bool {
	reach := make(map[string]map[string]bool, len(acts))
	for _, a := range acts {
		seen := make(map[string]bool)
		stack := []string{a}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for next, c := range g.Edges[cur] {
				if c > 0 && !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
		reach[a] = seen
	}
	return reach
}
