package discovery

import (
	"fmt"
	"sort"
)

// NodeKind is a BPMN flow element type.
type NodeKind string

const (
	StartEvent       NodeKind = "startEvent"
	EndEvent         NodeKind = "endEvent"
	Task             NodeKind = "task"
	ExclusiveGateway NodeKind = "exclusiveGateway"
	ParallelGateway  NodeKind = "parallelGateway"

	// silentNode stands in for an invisible transition during conversion.
	silentNode NodeKind = "silent"
)

// IsGateway reports whether k routes flow instead of doing work.
func (k NodeKind) IsGateway() bool {
	return k == ExclusiveGateway || k == ParallelGateway
}

// BPMNNode is a single flow element.
type BPMNNode struct {
	ID    string
	Kind  NodeKind
	Label string
}

// Flow is a sequence flow between two nodes.
type Flow struct {
	Source string
	Target string
}

// GatewayDirection classifies a gateway by its degree.
type GatewayDirection string

const (
	Diverging   GatewayDirection = "diverging"
	Converging  GatewayDirection = "converging"
	Mixed       GatewayDirection = "mixed"
	Unspecified GatewayDirection = "unspecified"
)

// BPMN is a process diagram made of events, tasks, gateways and sequence flows.
type BPMN struct {
	nodes map[string]*BPMNNode
	order []string
	flows []Flow
	seen  map[Flow]bool
	seq   int
}

// NewBPMN creates an empty diagram.
func NewBPMN() *BPMN {
	return &BPMN{
		nodes: make(map[string]*BPMNNode),
		seen:  make(map[Flow]bool),
	}
}

// AddNode adds a node with a generated ID and returns it.
func (b *BPMN) AddNode(kind NodeKind, label string) *BPMNNode {
	b.seq++
	var id string
	switch kind {
	case StartEvent:
		id = fmt.Sprintf("start_%d", b.seq)
	case EndEvent:
		id = fmt.Sprintf("end_%d", b.seq)
	case Task:
		id = fmt.Sprintf("task_%d", b.seq)
	default:
		id = fmt.Sprintf("gw_%d", b.seq)
	}
	n := &BPMNNode{ID: id, Kind: kind, Label: label}
	b.nodes[id] = n
	b.order = append(b.order, id)
	return n
}

// AddFlow connects source to target. Duplicate flows are ignored.
func (b *BPMN) AddFlow(source, target string) {
	f := Flow{Source: source, Target: target}
	if b.seen[f] {
		return
	}
	b.seen[f] = true
	b.flows = append(b.flows, f)
}

// Node returns the node with the given ID.
func (b *BPMN) Node(id string) (*BPMNNode, bool) {
	n, ok := b.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (b *BPMN) Nodes() []*BPMNNode {
	out := make([]*BPMNNode, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.nodes[id])
	}
	return out
}

// Flows returns all sequence flows in insertion order.
func (b *BPMN) Flows() []Flow {
	out := make([]Flow, len(b.flows))
	copy(out, b.flows)
	return out
}

// Incoming returns the sources of flows into id.
func (b *BPMN) Incoming(id string) []string {
	var out []string
	for _, f := range b.flows {
		if f.Target == id {
			out = append(out, f.Source)
		}
	}
	return out
}

// Outgoing returns the targets of flows out of id.
func (b *BPMN) Outgoing(id string) []string {
	var out []string
	for _, f := range b.flows {
		if f.Source == id {
			out = append(out, f.Target)
		}
	}
	return out
}

// Direction classifies a gateway as splitting, joining or both.
func (b *BPMN) Direction(id string) GatewayDirection {
	in, out := len(b.Incoming(id)), len(b.Outgoing(id))
	switch {
	case in > 1 && out > 1:
		return Mixed
	case out > 1:
		return Diverging
	case in > 1:
		return Converging
	default:
		return Unspecified
	}
}

// Tasks returns the sorted labels of all tasks, duplicates included.
func (b *BPMN) Tasks() []string {
	var out []string
	for _, id := range b.order {
		if n := b.nodes[id]; n.Kind == Task {
			out = append(out, n.Label)
		}
	}
	sort.Strings(out)
	return out
}

// Count returns the number of nodes of the given kind.
func (b *BPMN) Count(kind NodeKind) int {
	n := 0
	for _, node := range b.nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// Validate checks the diagram is a well-formed single-entry single-exit
// process: one start event, one end event, and every node on a path from
// start to end.
func (b *BPMN) Validate() error {
	var start, end []string
	for _, id := range b.order {
		switch b.nodes[id].Kind {
		case StartEvent:
			start = append(start, id)
		case EndEvent:
			end = append(end, id)
		case silentNode:
			return fmt.Errorf("unreduced silent node %s", id)
		}
	}
	if len(start) != 1 {
		return fmt.Errorf("expected 1 start event, found %d", len(start))
	}
	if len(end) != 1 {
		return fmt.Errorf("expected 1 end event, found %d", len(end))
	}

	for _, f := range b.flows {
		if _, ok := b.nodes[f.Source]; !ok {
			return fmt.Errorf("flow from unknown node %s", f.Source)
		}
		if _, ok := b.nodes[f.Target]; !ok {
			return fmt.Errorf("flow to unknown node %s", f.Target)
		}
	}

	fwd := b.reach(start[0], b.Outgoing)
	back := b.reach(end[0], b.Incoming)
	for _, id := range b.order {
		if !fwd[id] {
			return fmt.Errorf("node %s is not reachable from the start event", id)
		}
		if !back[id] {
			return fmt.Errorf("node %s cannot reach the end event", id)
		}
	}
	return nil
}

func (b *BPMN) reach(from string, next func(string) []string) map[string]bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next(cur) {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// bypass removes id and connects each predecessor to each successor.
// It refuses when that would create a self-loop.
func (b *BPMN) bypass(id string) bool {
	in, out := b.Incoming(id), b.Outgoing(id)
	for _, s := range in {
		for _, t := range out {
			if s == t || s == id || t == id {
				return false
			}
		}
	}

	kept := b.flows[:0]
	for _, f := range b.flows {
		if f.Source == id || f.Target == id {
			delete(b.seen, f)
			continue
		}
		kept = append(kept, f)
	}
	b.flows = kept

	delete(b.nodes, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}

	for _, s := range in {
		for _, t := range out {
			b.AddFlow(s, t)
		}
	}
	return true
}

// reduce drops silent placeholders and pass-through gateways until none remain.
func (b *BPMN) reduce() {
	for changed := true; changed; {
		changed = false
		for _, id := range append([]string(nil), b.order...) {
			n, ok := b.nodes[id]
			if !ok {
				continue
			}
			removable := n.Kind == silentNode ||
				(n.Kind.IsGateway() && len(b.Incoming(id)) <= 1 && len(b.Outgoing(id)) <= 1)
			if removable && b.bypass(id) {
				changed = true
			}
		}
	}
}
