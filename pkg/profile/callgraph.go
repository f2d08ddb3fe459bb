package profile

import (
	"github.com/maxgio92/adaprof/pkg/frame"
)

// CallGraphNode is one function in the weighted call graph. Children are
// addressed by function id, never by direct node reference: recursion shows
// up as repeated frames in a stack, and the id-indexed arena keeps the graph
// acyclic in memory.
type CallGraphNode struct {
	FuncID     frame.FuncID
	Weight     float64
	SelfWeight float64
	Children   map[frame.FuncID]float64
}

// CallGraph accumulates weighted parent→child call relationships from
// observed stacks. Owned by the aggregator goroutine; no internal locking.
type CallGraph struct {
	nodes map[frame.FuncID]*CallGraphNode
}

func NewCallGraph() *CallGraph {
	return &CallGraph{
		nodes: make(map[frame.FuncID]*CallGraphNode),
	}
}

func (g *CallGraph) node(id frame.FuncID) *CallGraphNode {
	n, ok := g.nodes[id]
	if !ok {
		n = &CallGraphNode{
			FuncID:   id,
			Children: make(map[frame.FuncID]float64),
		}
		g.nodes[id] = n
	}

	return n
}

// Ingest merges one stack, given root to leaf, accumulating weight on every
// node and on each observed parent→child edge. A node's weight grows at
// least as fast as any of its outgoing edges, so the sum of child edge
// weights never exceeds the parent's accumulated weight.
func (g *CallGraph) Ingest(rootToLeaf []frame.FuncID, weight float64) {
	if len(rootToLeaf) == 0 {
		return
	}

	for i, id := range rootToLeaf {
		n := g.node(id)
		n.Weight += weight
		if i == len(rootToLeaf)-1 {
			n.SelfWeight += weight
		}
		if i > 0 {
			parent := g.node(rootToLeaf[i-1])
			parent.Children[id] += weight
		}
	}
}

// Node returns the node for a function id.
func (g *CallGraph) Node(id frame.FuncID) (*CallGraphNode, bool) {
	n, ok := g.nodes[id]

	return n, ok
}

// Len reports the number of nodes.
func (g *CallGraph) Len() int {
	return len(g.nodes)
}

// Range visits every node.
func (g *CallGraph) Range(f func(*CallGraphNode)) {
	for _, n := range g.nodes {
		f(n)
	}
}
