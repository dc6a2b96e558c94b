package discovery

import "fmt"

// TreeToBPMN converts a process tree straight into a BPMN diagram. Choices
// and parallel blocks become matching split and join gateways; a loop becomes
// an exclusive join before its do-part and an exclusive split after it, with
// each redo-part flowing back to the join.
func TreeToBPMN(tree *Tree) (*BPMN, error) {
	if tree == nil {
		return nil, fmt.Errorf("nil process tree")
	}

	b := NewBPMN()
	start := b.AddNode(StartEvent, "start")
	exit, err := appendTree(b, tree, start.ID)
	if err != nil {
		return nil, err
	}
	end := b.AddNode(EndEvent, "end")
	b.AddFlow(exit, end.ID)
	b.reduce()

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("converted diagram is invalid: %w", err)
	}
	return b, nil
}

// appendTree attaches t after node from and returns the node its flow leaves from.
func appendTree(b *BPMN, t *Tree, from string) (string, error) {
	switch t.Operator {
	case OpNone:
		if t.Label == "" {
			return from, nil
		}
		task := b.AddNode(Task, t.Label)
		b.AddFlow(from, task.ID)
		return task.ID, nil

	case OpSequence:
		cur := from
		for _, c := range t.Children {
			next, err := appendTree(b, c, cur)
			if err != nil {
				return "", err
			}
			cur = next
		}
		return cur, nil

	case OpXor, OpParallel:
		kind := ExclusiveGateway
		if t.Operator == OpParallel {
			kind = ParallelGateway
		}
		split := b.AddNode(kind, "")
		join := b.AddNode(kind, "")
		b.AddFlow(from, split.ID)
		for _, c := range t.Children {
			exit, err := appendTree(b, c, split.ID)
			if err != nil {
				return "", err
			}
			b.AddFlow(exit, join.ID)
		}
		return join.ID, nil

	case OpLoop:
		if len(t.Children) < 2 {
			return "", fmt.Errorf("loop needs a do and at least one redo child, got %d children", len(t.Children))
		}
		join := b.AddNode(ExclusiveGateway, "")
		b.AddFlow(from, join.ID)
		doExit, err := appendTree(b, t.Children[0], join.ID)
		if err != nil {
			return "", err
		}
		split := b.AddNode(ExclusiveGateway, "")
		b.AddFlow(doExit, split.ID)
		for _, redo := range t.Children[1:] {
			exit, err := appendTree(b, redo, split.ID)
			if err != nil {
				return "", err
			}
			b.AddFlow(exit, join.ID)
		}
		return split.ID, nil

	default:
		return "", fmt.Errorf("unknown operator %q", t.Operator)
	}
}

// PetriNetToBPMN converts a workflow net into a BPMN diagram. Places become
// exclusive gateways, visible transitions become tasks, and transitions with
// several input or output places are wrapped in parallel gateways. The result
// is reduced by removing silent transitions and pass-through gateways.
func PetriNetToBPMN(net *PetriNet, initial, final Marking) (*BPMN, error) {
	if net == nil {
		return nil, fmt.Errorf("nil petri net")
	}
	if len(initial) != 1 || len(final) != 1 {
		return nil, fmt.Errorf("expected single-place initial and final markings, got %d and %d", len(initial), len(final))
	}

	b := NewBPMN()
	start := b.AddNode(StartEvent, "start")

	placeNode := make(map[string]string, len(net.Places))
	for _, p := range net.Places {
		placeNode[p.ID] = b.AddNode(ExclusiveGateway, "").ID
	}

	for _, t := range net.Transitions {
		kind := Task
		if t.Silent() {
			kind = silentNode
		}
		node := b.AddNode(kind, t.Label).ID

		entry := node
		if pre := net.Preset(t.ID); len(pre) > 1 {
			join := b.AddNode(ParallelGateway, "").ID
			b.AddFlow(join, node)
			entry = join
		}
		exit := node
		if post := net.Postset(t.ID); len(post) > 1 {
			split := b.AddNode(ParallelGateway, "").ID
			b.AddFlow(node, split)
			exit = split
		}

		for _, p := range net.Preset(t.ID) {
			pn, ok := placeNode[p]
			if !ok {
				return nil, fmt.Errorf("transition %s consumes from unknown place %s", t.ID, p)
			}
			b.AddFlow(pn, entry)
		}
		for _, p := range net.Postset(t.ID) {
			pn, ok := placeNode[p]
			if !ok {
				return nil, fmt.Errorf("transition %s produces to unknown place %s", t.ID, p)
			}
			b.AddFlow(exit, pn)
		}
	}

	for p := range initial {
		pn, ok := placeNode[p]
		if !ok {
			return nil, fmt.Errorf("initial marking names unknown place %s", p)
		}
		b.AddFlow(start.ID, pn)
	}
	end := b.AddNode(EndEvent, "end")
	for p := range final {
		pn, ok := placeNode[p]
		if !ok {
			return nil, fmt.Errorf("final marking names unknown place %s", p)
		}
		b.AddFlow(pn, end.ID)
	}

	b.reduce()

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("converted diagram is invalid: %w", err)
	}
	return b, nil
}
