// Package function recovers control flow graphs. Disassemble drives a
// decoder over a worklist of addresses, collecting mnemonics and jumps as
// Facts, and Assemble turns the facts into a graph of basic blocks.
package function

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"cflow/internal/il"
)

// Function is one procedure: its identity, its control flow graph and the
// vertex holding its entry point.
type Function struct {
	UUID   uuid.UUID
	Name   string
	Region string
	CFG    *Graph

	entry    VertexID
	hasEntry bool
}

// New returns a function without code.
func New(name, region string) *Function {
	return &Function{UUID: uuid.New(), Name: name, Region: region, CFG: NewGraph()}
}

// DefaultName is the name given to functions discovered at start.
func DefaultName(start uint64) string {
	return fmt.Sprintf("func_%x", start)
}

// Entry returns the vertex containing the entry point.
func (f *Function) Entry() (VertexID, bool) {
	return f.entry, f.hasEntry
}

// EntryPoint returns the entry basic block.
func (f *Function) EntryPoint() (BasicBlock, bool) {
	if !f.hasEntry {
		return BasicBlock{}, false
	}
	return f.CFG.Vertex(f.entry).Block()
}

// setEntry points the entry at the block starting at addr, if any.
func (f *Function) setEntry(addr uint64) {
	f.hasEntry = false
	for _, v := range f.CFG.Vertices() {
		if bb, ok := f.CFG.Vertex(v).Block(); ok && bb.Area.Start == addr {
			f.entry, f.hasEntry = v, true
			return
		}
	}
}

// FindBasicBlockAt returns the resolved vertex whose block covers addr.
func (f *Function) FindBasicBlockAt(addr uint64) (VertexID, bool) {
	for _, v := range f.CFG.Vertices() {
		if bb, ok := f.CFG.Vertex(v).Block(); ok && bb.Area.Contains(addr) {
			return v, true
		}
	}
	return 0, false
}

// BasicBlocks returns all basic blocks in address order.
func (f *Function) BasicBlocks() []BasicBlock {
	var out []BasicBlock
	for _, v := range f.CFG.Vertices() {
		if bb, ok := f.CFG.Vertex(v).Block(); ok {
			out = append(out, bb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area.Start < out[j].Area.Start })
	return out
}

// Mnemonics returns every mnemonic of the function in address order.
func (f *Function) Mnemonics() []il.Mnemonic {
	var out []il.Mnemonic
	for _, bb := range f.BasicBlocks() {
		out = append(out, bb.Mnemonics...)
	}
	return out
}

// CollectCalls returns the targets of all call statements, constant
// targets first in ascending order, then symbolic ones in address order.
func (f *Function) CollectCalls() []il.Rvalue {
	var consts []uint64
	seen := make(map[uint64]bool)
	var symbolic []il.Rvalue
	for _, m := range f.Mnemonics() {
		for _, t := range il.Calls(m.Instructions) {
			if c, ok := il.ConstantValue(t); ok {
				if !seen[c] {
					seen[c] = true
					consts = append(consts, c)
				}
				continue
			}
			symbolic = append(symbolic, t)
		}
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i] < consts[j] })
	out := make([]il.Rvalue, 0, len(consts)+len(symbolic))
	for _, c := range consts {
		out = append(out, il.Const(c, 64))
	}
	return append(out, symbolic...)
}

// Postorder returns the vertices reachable from the entry in post order.
func (f *Function) Postorder() []VertexID {
	if !f.hasEntry {
		return nil
	}
	return f.CFG.Postorder(f.entry)
}
