package function

import (
	"fmt"

	"cflow/internal/il"
)

// BasicBlock is a gap free run of mnemonics.
type BasicBlock struct {
	Area      il.Bound
	Mnemonics []il.Mnemonic
}

// NewBasicBlock returns the block covering ms, which must be contiguous and
// in address order.
func NewBasicBlock(ms []il.Mnemonic) BasicBlock {
	if len(ms) == 0 {
		panic("function: empty basic block")
	}
	for i := 1; i < len(ms); i++ {
		if ms[i].Area.Start != ms[i-1].Area.End {
			panic(fmt.Sprintf("function: gap in basic block at %#x", ms[i-1].Area.End))
		}
	}
	return BasicBlock{
		Area:      il.NewBound(ms[0].Area.Start, ms[len(ms)-1].Area.End),
		Mnemonics: ms,
	}
}

// Last returns the final mnemonic.
func (bb BasicBlock) Last() il.Mnemonic {
	return bb.Mnemonics[len(bb.Mnemonics)-1]
}

// ControlFlowTarget is a graph vertex: a resolved basic block or an
// unresolved value standing for a jump target outside the graph.
type ControlFlowTarget struct {
	resolved bool
	block    BasicBlock
	value    il.Rvalue
}

// Resolved wraps a basic block.
func Resolved(bb BasicBlock) ControlFlowTarget {
	return ControlFlowTarget{resolved: true, block: bb}
}

// Unresolved wraps a constant placeholder or a symbolic target.
func Unresolved(v il.Rvalue) ControlFlowTarget {
	return ControlFlowTarget{value: v}
}

// Block returns the basic block of a resolved vertex.
func (t ControlFlowTarget) Block() (BasicBlock, bool) {
	return t.block, t.resolved
}

// Value returns the value of an unresolved vertex.
func (t ControlFlowTarget) Value() (il.Rvalue, bool) {
	return t.value, !t.resolved
}

func (t ControlFlowTarget) String() string {
	if t.resolved {
		return fmt.Sprintf("block %s", t.block.Area)
	}
	return fmt.Sprintf("unresolved %s", t.value)
}

// VertexID indexes a vertex of a Graph.
type VertexID int

// Edge is a guarded control transfer between two vertices.
type Edge struct {
	From  VertexID
	To    VertexID
	Guard il.Guard
}

// Graph is an arena of vertices with edges referencing them by index.
type Graph struct {
	vertices []ControlFlowTarget
	edges    []Edge
	out      [][]int
	in       [][]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddVertex appends v and returns its id.
func (g *Graph) AddVertex(v ControlFlowTarget) VertexID {
	g.vertices = append(g.vertices, v)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return VertexID(len(g.vertices) - 1)
}

// AddEdge connects from and to. An edge with the same endpoints and guard
// is only stored once; the return value reports whether a new edge was added.
func (g *Graph) AddEdge(from, to VertexID, guard il.Guard) bool {
	for _, i := range g.out[from] {
		if e := g.edges[i]; e.To == to && e.Guard == guard {
			return false
		}
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Guard: guard})
	i := len(g.edges) - 1
	g.out[from] = append(g.out[from], i)
	g.in[to] = append(g.in[to], i)
	return true
}

// Vertex returns the vertex with id v.
func (g *Graph) Vertex(v VertexID) ControlFlowTarget {
	return g.vertices[v]
}

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int { return len(g.vertices) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Vertices returns all vertex ids in insertion order.
func (g *Graph) Vertices() []VertexID {
	ids := make([]VertexID, len(g.vertices))
	for i := range ids {
		ids[i] = VertexID(i)
	}
	return ids
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Out returns the edges leaving v.
func (g *Graph) Out(v VertexID) []Edge {
	return g.collect(g.out[v])
}

// In returns the edges entering v.
func (g *Graph) In(v VertexID) []Edge {
	return g.collect(g.in[v])
}

func (g *Graph) collect(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, e := range idx {
		out[i] = g.edges[e]
	}
	return out
}

// Postorder returns the vertices reachable from root in depth first post
// order, successors visited in edge insertion order.
func (g *Graph) Postorder(root VertexID) []VertexID {
	var order []VertexID
	seen := make([]bool, len(g.vertices))
	type frame struct {
		v    VertexID
		next int
	}
	stack := []frame{{v: root}}
	seen[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(g.out[top.v]) {
			to := g.edges[g.out[top.v][top.next]].To
			top.next++
			if !seen[to] {
				seen[to] = true
				stack = append(stack, frame{v: to})
			}
			continue
		}
		order = append(order, top.v)
		stack = stack[:len(stack)-1]
	}
	return order
}
