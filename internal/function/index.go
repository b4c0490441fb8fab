package function

import (
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"cflow/internal/il"
)

// Index maps the start address of every decoded mnemonic to the mnemonic.
type Index struct {
	m *treemap.Map
}

// NewIndex returns an empty instruction index.
func NewIndex() *Index {
	return &Index{m: treemap.NewWith(utils.UInt64Comparator)}
}

// Put adds m unless a mnemonic already starts at the same address.
func (ix *Index) Put(m il.Mnemonic) bool {
	if _, found := ix.m.Get(m.Area.Start); found {
		return false
	}
	ix.m.Put(m.Area.Start, m)
	return true
}

// At returns the mnemonic starting at addr.
func (ix *Index) At(addr uint64) (il.Mnemonic, bool) {
	v, found := ix.m.Get(addr)
	if !found {
		return il.Mnemonic{}, false
	}
	return v.(il.Mnemonic), true
}

// Floor returns the mnemonic with the greatest start address not above addr.
func (ix *Index) Floor(addr uint64) (il.Mnemonic, bool) {
	k, v := ix.m.Floor(addr)
	if k == nil {
		return il.Mnemonic{}, false
	}
	return v.(il.Mnemonic), true
}

// Overlapping returns a mnemonic whose range intersects b without having
// exactly the range b.
func (ix *Index) Overlapping(b il.Bound) (il.Mnemonic, bool) {
	if m, ok := ix.Floor(b.Start); ok && m.Area != b && m.Area.End > b.Start {
		return m, true
	}
	k, v := ix.m.Ceiling(b.Start + 1)
	if k == nil {
		return il.Mnemonic{}, false
	}
	if m := v.(il.Mnemonic); m.Area.Start < b.End {
		return m, true
	}
	return il.Mnemonic{}, false
}

// Len returns the number of mnemonics.
func (ix *Index) Len() int {
	return ix.m.Size()
}

// Mnemonics returns all mnemonics in address order.
func (ix *Index) Mnemonics() []il.Mnemonic {
	out := make([]il.Mnemonic, 0, ix.m.Size())
	it := ix.m.Iterator()
	for it.Next() {
		out = append(out, it.Value().(il.Mnemonic))
	}
	return out
}

// Arc is one side of a recorded jump: the address or value at the other end
// and the guard of the transfer.
type Arc struct {
	Other il.Rvalue
	Guard il.Guard
}

// Edges maps an address to the arcs recorded for it.
type Edges map[uint64][]Arc

// Add records an arc unless an identical one exists.
func (e Edges) Add(addr uint64, other il.Rvalue, g il.Guard) {
	for _, a := range e[addr] {
		if sameValue(a.Other, other) && a.Guard == g {
			return
		}
	}
	e[addr] = append(e[addr], Arc{Other: other, Guard: g})
}

// sameValue compares constants by value regardless of their width.
func sameValue(a, b il.Rvalue) bool {
	ca, ok1 := a.(il.Constant)
	cb, ok2 := b.(il.Constant)
	if ok1 && ok2 {
		return ca.Value == cb.Value
	}
	return a == b
}

// Keys returns the recorded addresses in ascending order.
func (e Edges) Keys() []uint64 {
	keys := make([]uint64, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Facts are the primitive results of decoding a function: the instruction
// index and the jumps keyed by origin and by destination. Graphs are always
// derived from Facts, never patched.
type Facts struct {
	Index         *Index
	ByOrigin      Edges
	ByDestination Edges
}

// NewFacts returns empty facts.
func NewFacts() *Facts {
	return &Facts{Index: NewIndex(), ByOrigin: Edges{}, ByDestination: Edges{}}
}

// AddJump records a jump. Constant targets go into both maps, computed
// targets only into ByOrigin.
func (f *Facts) AddJump(origin uint64, target il.Rvalue, g il.Guard) {
	f.ByOrigin.Add(origin, target, g)
	if c, ok := target.(il.Constant); ok {
		f.ByDestination.Add(c.Value, il.Const(origin, c.Size), g)
	}
}

// FactsFromGraph rebuilds the primitive facts a graph was assembled from.
func FactsFromGraph(g *Graph) *Facts {
	f := NewFacts()
	for _, v := range g.Vertices() {
		bb, ok := g.Vertex(v).Block()
		if !ok {
			continue
		}
		for i, m := range bb.Mnemonics {
			f.Index.Put(m)
			if i > 0 {
				prev := bb.Mnemonics[i-1]
				f.AddJump(prev.Area.Start, il.Const(m.Area.Start, 64), il.Always())
			}
		}
	}
	for _, e := range g.Edges() {
		from, to := g.Vertex(e.From), g.Vertex(e.To)
		fromBB, fromResolved := from.Block()
		toBB, toResolved := to.Block()
		switch {
		case fromResolved && toResolved:
			f.AddJump(fromBB.Last().Area.Start, il.Const(toBB.Area.Start, 64), e.Guard)
		case fromResolved:
			val, _ := to.Value()
			f.AddJump(fromBB.Last().Area.Start, val, e.Guard)
		case toResolved:
			val, _ := from.Value()
			if c, ok := val.(il.Constant); ok {
				f.AddJump(c.Value, il.Const(toBB.Area.Start, c.Size), e.Guard)
			}
		}
	}
	return f
}
