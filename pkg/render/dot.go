package render

import (
	"github.com/emicklei/dot"

	"github.com/logflow/pmdiscover/pkg/discovery"
)

// ToDOT lays a BPMN diagram out as a left-to-right Graphviz digraph.
func ToDOT(b *discovery.BPMN) string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	g.Attr("nodesep", "0.4")

	nodes := make(map[string]dot.Node)
	for _, n := range b.Nodes() {
		nodes[n.ID] = styleNode(g.Node(n.ID), n)
	}
	for _, f := range b.Flows() {
		from, ok := nodes[f.Source]
		if !ok {
			continue
		}
		to, ok := nodes[f.Target]
		if !ok {
			continue
		}
		g.Edge(from, to).Attr("arrowsize", "0.7")
	}
	return g.String()
}

func styleNode(n dot.Node, node *discovery.BPMNNode) dot.Node {
	switch node.Kind {
	case discovery.StartEvent:
		return n.Label("").Attr("shape", "circle").Attr("style", "filled").
			Attr("fillcolor", "#d5f5d5").Attr("width", "0.4")
	case discovery.EndEvent:
		return n.Label("").Attr("shape", "doublecircle").Attr("style", "filled").
			Attr("fillcolor", "#f5d5d5").Attr("width", "0.35")
	case discovery.ExclusiveGateway:
		return n.Label("X").Attr("shape", "diamond").Attr("width", "0.5")
	case discovery.ParallelGateway:
		return n.Label("+").Attr("shape", "diamond").Attr("width", "0.5")
	default:
		return n.Label(node.Label).Attr("shape", "box").Attr("style", "rounded,filled").
			Attr("fillcolor", "#eef3fb").Attr("fontname", "Helvetica")
	}
}
