// Package discovery implements inductive process-tree discovery and the
// conversions from process trees to Petri nets and BPMN graphs.
package discovery

import (
	"sort"
	"strings"
)

// Operator is a process tree operator.
type Operator string

const (
	// OpNone marks a leaf.
	OpNone Operator = ""
	// OpSequence executes children left to right.
	OpSequence Operator = "->"
	// OpXor executes exactly one child.
	OpXor Operator = "X"
	// OpParallel interleaves all children.
	OpParallel Operator = "+"
	// OpLoop executes the first child, then any number of times one redo child
	// followed by the first child again.
	OpLoop Operator = "*"
)

// Tree is a process tree node. A leaf with an empty Label is silent (tau).
type Tree struct {
	Operator Operator
	Label    string
	Children []*Tree
}

// Leaf returns a visible activity leaf.
func Leaf(label string) *Tree {
	return &Tree{Label: label}
}

// Tau returns a silent leaf.
func Tau() *Tree {
	return &Tree{}
}

// Node returns an operator node.
func Node(op Operator, children ...*Tree) *Tree {
	return &Tree{Operator: op, Children: children}
}

// IsLeaf reports whether t has no operator.
func (t *Tree) IsLeaf() bool {
	return t.Operator == OpNone
}

// IsTau reports whether t is a silent leaf.
func (t *Tree) IsTau() bool {
	return t.IsLeaf() && t.Label == ""
}

// Activities returns the sorted set of visible labels below t.
func (t *Tree) Activities() []string {
	seen := make(map[string]struct{})
	t.walk(func(n *Tree) {
		if n.IsLeaf() && n.Label != "" {
			seen[n.Label] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of nodes in t.
func (t *Tree) Size() int {
	n := 0
	t.walk(func(*Tree) { n++ })
	return n
}

func (t *Tree) walk(fn func(*Tree)) {
	fn(t)
	for _, c := range t.Children {
		c.walk(fn)
	}
}

// String renders t in the usual textual notation, e.g. ->( 'a', X( 'b', tau ) ).
func (t *Tree) String() string {
	var sb strings.Builder
	t.format(&sb)
	return sb.String()
}

func (t *Tree) format(sb *strings.Builder) {
	if t.IsLeaf() {
		if t.Label == "" {
			sb.WriteString("tau")
			return
		}
		sb.WriteString("'")
		sb.WriteString(t.Label)
		sb.WriteString("'")
		return
	}
	sb.WriteString(string(t.Operator))
	sb.WriteString("( ")
	for i, c := range t.Children {
		if i > 0 {
			sb.WriteString(", ")
		}
		c.format(sb)
	}
	sb.WriteString(" )")
}
