package function

import (
	"fmt"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"

	"cflow/internal/disasm"
	"cflow/internal/il"
	"cflow/internal/logging"
)

// Disassemble decodes the code reachable from start and returns the
// resulting function. If cont is not nil its graph is merged with the new
// code and its identity is kept; cont itself is not modified. Every decode
// attempt starts from a fresh copy of initial.
func Disassemble[T disasm.Token, C any](cont *Function, dec *disasm.Decoder[T, C], initial C, src disasm.Source, start uint64, region string) (*Function, []Diagnostic) {
	var lg *logging.LoggerCloser
	if logging.IsDebug() {
		lg = logging.NewLogger()
		defer lg.Close()
	}

	fn := New(DefaultName(start), region)
	facts := NewFacts()
	entry := start
	entries := []uint64{start}
	if cont != nil {
		fn.UUID, fn.Name = cont.UUID, cont.Name
		facts = FactsFromGraph(cont.CFG)
		if bb, ok := cont.EntryPoint(); ok {
			entry = bb.Area.Start
		}
		// an already decoded start only begins a block if it is the entry
		entries = []uint64{entry}
		if _, known := facts.Index.At(start); !known && start != entry {
			entries = append(entries, start)
		}
		// earlier extension starts stay block leaders
		for _, v := range cont.CFG.Vertices() {
			if bb, ok := cont.CFG.Vertex(v).Block(); ok && len(cont.CFG.In(v)) == 0 && bb.Area.Start != entry {
				entries = append(entries, bb.Area.Start)
			}
		}
	}

	var diags []Diagnostic
	worklist := treeset.NewWith(utils.UInt64Comparator)
	worklist.Add(start)
	for !worklist.Empty() {
		it := worklist.Iterator()
		it.First()
		addr := it.Value().(uint64)
		worklist.Remove(addr)

		if _, ok := facts.Index.At(addr); ok {
			continue
		}
		if m, ok := facts.Index.Floor(addr); ok && m.Area.Contains(addr) {
			d := Diagnostic{Kind: Overlap, Address: addr, Other: m.Area.Start}
			diags = append(diags, d)
			if lg != nil {
				lg.Debug("overlapping decode", "function", fn.Name, "address", fmt.Sprintf("%#x", addr), "mnemonic", m.String())
			}
			continue
		}

		st, ok := dec.Next(src, addr, initial)
		if !ok {
			diags = append(diags, Diagnostic{Kind: MatchFailure, Address: addr})
			if lg != nil {
				lg.Debug("no match", "function", fn.Name, "address", fmt.Sprintf("%#x", addr))
			}
			continue
		}
		if m, other, ok := conflict(facts.Index, st.Mnemonics); ok {
			diags = append(diags, Diagnostic{Kind: Overlap, Address: m.Area.Start, Other: other.Area.Start})
			if lg != nil {
				lg.Debug("overlapping decode", "function", fn.Name, "address", fmt.Sprintf("%#x", m.Area.Start), "mnemonic", other.String())
			}
			continue
		}
		for _, m := range st.Mnemonics {
			if facts.Index.Put(m) && lg != nil {
				lg.Debug("decoded", "address", fmt.Sprintf("%#x", m.Area.Start), "mnemonic", m.String())
			}
		}
		for _, j := range st.Jumps {
			facts.AddJump(j.Origin, j.Target, j.Guard)
			if c, ok := j.Target.(il.Constant); ok {
				worklist.Add(c.Value)
			}
		}
	}

	cfg, more := assemble(facts.Index, facts.ByOrigin, facts.ByDestination, entries)
	diags = append(diags, more...)
	fn.CFG = cfg
	fn.setEntry(entry)
	if lg != nil {
		lg.Debug("assembled", "function", fn.Name,
			"vertices", cfg.NumVertices(), "edges", cfg.NumEdges(), "diagnostics", len(diags))
	}
	return fn, diags
}

// conflict reports the first decoded mnemonic that runs over an indexed one.
// The whole decode attempt is dropped in that case; the earlier decode wins.
func conflict(ix *Index, ms []il.Mnemonic) (il.Mnemonic, il.Mnemonic, bool) {
	for _, m := range ms {
		if other, ok := ix.Overlapping(m.Area); ok {
			return m, other, true
		}
	}
	return il.Mnemonic{}, il.Mnemonic{}, false
}
