package discovery

import (
	"fmt"
	"sort"
)

// Place is a Petri net place.
type Place struct {
	ID string
}

// Transition is a Petri net transition. An empty Label marks a silent transition.
type Transition struct {
	ID    string
	Label string
}

// Silent reports whether the transition is invisible.
func (t *Transition) Silent() bool {
	return t.Label == ""
}

// Arc connects a place and a transition in either direction.
type Arc struct {
	Source string
	Target string
}

// PetriNet is a labelled Petri net.
type PetriNet struct {
	Places      []*Place
	Transitions []*Transition
	Arcs        []Arc

	nextPlace      int
	nextTransition int
}

// Marking assigns tokens to places by ID.
type Marking map[string]int

// NewPetriNet creates an empty net.
func NewPetriNet() *PetriNet {
	return &PetriNet{}
}

// AddPlace adds a place with a generated ID.
func (n *PetriNet) AddPlace() *Place {
	n.nextPlace++
	p := &Place{ID: fmt.Sprintf("p%d", n.nextPlace)}
	n.Places = append(n.Places, p)
	return p
}

// AddTransition adds a transition; an empty label makes it silent.
func (n *PetriNet) AddTransition(label string) *Transition {
	n.nextTransition++
	t := &Transition{ID: fmt.Sprintf("t%d", n.nextTransition), Label: label}
	n.Transitions = append(n.Transitions, t)
	return t
}

// AddArc connects source to target by ID.
func (n *PetriNet) AddArc(source, target string) {
	n.Arcs = append(n.Arcs, Arc{Source: source, Target: target})
}

// Preset returns the IDs with an arc into id, in arc order.
func (n *PetriNet) Preset(id string) []string {
	var out []string
	for _, a := range n.Arcs {
		if a.Target == id {
			out = append(out, a.Source)
		}
	}
	return out
}

// Postset returns the IDs with an arc from id, in arc order.
func (n *PetriNet) Postset(id string) []string {
	var out []string
	for _, a := range n.Arcs {
		if a.Source == id {
			out = append(out, a.Target)
		}
	}
	return out
}

// VisibleLabels returns the sorted labels of visible transitions.
func (n *PetriNet) VisibleLabels() []string {
	var out []string
	for _, t := range n.Transitions {
		if !t.Silent() {
			out = append(out, t.Label)
		}
	}
	sort.Strings(out)
	return out
}

// TreeToPetriNet translates a process tree into a workflow net with a single
// source place (initial marking) and a single sink place (final marking).
func TreeToPetriNet(tree *Tree) (*PetriNet, Marking, Marking, error) {
	if tree == nil {
		return nil, nil, nil, fmt.Errorf("nil process tree")
	}

	net := NewPetriNet()
	source := net.AddPlace()
	sink := net.AddPlace()

	if err := addTreeToNet(net, tree, source.ID, sink.ID); err != nil {
		return nil, nil, nil, err
	}

	return net, Marking{source.ID: 1}, Marking{sink.ID: 1}, nil
}

func addTreeToNet(net *PetriNet, t *Tree, in, out string) error {
	switch t.Operator {
	case OpNone:
		tr := net.AddTransition(t.Label)
		net.AddArc(in, tr.ID)
		net.AddArc(tr.ID, out)

	case OpSequence:
		prev := in
		for i, c := range t.Children {
			next := out
			if i < len(t.Children)-1 {
				next = net.AddPlace().ID
			}
			if err := addTreeToNet(net, c, prev, next); err != nil {
				return err
			}
			prev = next
		}

	case OpXor:
		for _, c := range t.Children {
			if err := addTreeToNet(net, c, in, out); err != nil {
				return err
			}
		}

	case OpParallel:
		split := net.AddTransition("")
		join := net.AddTransition("")
		net.AddArc(in, split.ID)
		net.AddArc(join.ID, out)
		for _, c := range t.Children {
			cin, cout := net.AddPlace(), net.AddPlace()
			net.AddArc(split.ID, cin.ID)
			net.AddArc(cout.ID, join.ID)
			if err := addTreeToNet(net, c, cin.ID, cout.ID); err != nil {
				return err
			}
		}

	case OpLoop:
		if len(t.Children) < 2 {
			return fmt.Errorf("loop needs a do and at least one redo child, got %d children", len(t.Children))
		}
		// Silent entry and exit keep the loop's places private, so a loop
		// nested in a choice cannot re-enter a sibling branch.
		enter := net.AddTransition("")
		exit := net.AddTransition("")
		doIn, doOut := net.AddPlace(), net.AddPlace()
		net.AddArc(in, enter.ID)
		net.AddArc(enter.ID, doIn.ID)
		net.AddArc(doOut.ID, exit.ID)
		net.AddArc(exit.ID, out)
		if err := addTreeToNet(net, t.Children[0], doIn.ID, doOut.ID); err != nil {
			return err
		}
		for _, redo := range t.Children[1:] {
			if err := addTreeToNet(net, redo, doOut.ID, doIn.ID); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown operator %q", t.Operator)
	}
	return nil
}
