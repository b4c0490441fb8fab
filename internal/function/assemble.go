package function

import (
	"cflow/internal/il"
)

// Assemble turns the decoded facts into a control flow graph. Block
// boundaries are placed at gaps, at jumps, at jump targets and at start.
// The result depends only on the arguments.
func Assemble(ix *Index, byOrigin, byDest Edges, start uint64) (*Graph, []Diagnostic) {
	return assemble(ix, byOrigin, byDest, []uint64{start})
}

func assemble(ix *Index, byOrigin, byDest Edges, entries []uint64) (*Graph, []Diagnostic) {
	g := NewGraph()
	var diags []Diagnostic

	isEntry := func(addr uint64) bool {
		for _, e := range entries {
			if e == addr {
				return true
			}
		}
		return false
	}
	// a mnemonic ends its block when it jumps anywhere but addr. Computed
	// targets count as elsewhere so their edges leave from a block's end.
	leaves := func(last il.Mnemonic, addr uint64) bool {
		for _, a := range byOrigin[last.Area.Start] {
			if v, ok := il.ConstantValue(a.Other); !ok || v != addr {
				return true
			}
		}
		return false
	}
	enters := func(addr uint64, last il.Mnemonic) bool {
		for _, a := range byDest[addr] {
			if v, ok := il.ConstantValue(a.Other); ok && v != last.Area.Start {
				return true
			}
		}
		return false
	}

	byStart := make(map[uint64]VertexID)
	byLast := make(map[uint64]VertexID)
	var blocks []BasicBlock
	var cur []il.Mnemonic
	flush := func() {
		if len(cur) == 0 {
			return
		}
		bb := NewBasicBlock(cur)
		v := g.AddVertex(Resolved(bb))
		byStart[bb.Area.Start] = v
		byLast[bb.Last().Area.Start] = v
		blocks = append(blocks, bb)
		cur = nil
	}
	for _, m := range ix.Mnemonics() {
		if n := len(cur); n > 0 {
			last := cur[n-1]
			if last.Area.End != m.Area.Start ||
				leaves(last, m.Area.Start) ||
				enters(m.Area.Start, last) ||
				isEntry(m.Area.Start) {
				flush()
			}
		}
		cur = append(cur, m)
	}
	flush()

	unresolved := make(map[uint64]VertexID)
	placeholder := func(addr uint64, size int) VertexID {
		if v, ok := unresolved[addr]; ok {
			return v
		}
		v := g.AddVertex(Unresolved(il.Const(addr, size)))
		unresolved[addr] = v
		return v
	}
	computed := make(map[uint64]VertexID)
	block := func(v VertexID) BasicBlock {
		bb, _ := g.Vertex(v).Block()
		return bb
	}
	internal := func(a, b uint64) bool {
		for _, bb := range blocks {
			if bb.Area.Contains(a) && bb.Area.Contains(b) {
				return true
			}
		}
		return false
	}

	for _, origin := range byOrigin.Keys() {
		for _, arc := range byOrigin[origin] {
			from, hasFrom := byLast[origin]
			c, isConst := arc.Other.(il.Constant)
			if !isConst {
				if !hasFrom {
					diags = append(diags, Diagnostic{Kind: DanglingEdge, Address: origin})
					continue
				}
				u, ok := computed[origin]
				if !ok {
					u = g.AddVertex(Unresolved(arc.Other))
					computed[origin] = u
				}
				g.AddEdge(from, u, arc.Guard)
				continue
			}

			to, hasTo := byStart[c.Value]
			switch {
			case hasFrom && hasTo:
				g.AddEdge(from, to, arc.Guard)
			case hasTo:
				if block(to).Area.Contains(origin) {
					continue
				}
				g.AddEdge(placeholder(origin, c.Size), to, arc.Guard)
			case hasFrom:
				if block(from).Area.Contains(c.Value) {
					continue
				}
				g.AddEdge(from, placeholder(c.Value, c.Size), arc.Guard)
			default:
				if !internal(origin, c.Value) {
					diags = append(diags, Diagnostic{Kind: DanglingEdge, Address: origin, Other: c.Value})
				}
			}
		}
	}
	return g, diags
}
