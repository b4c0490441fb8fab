package function

import "fmt"

// DiagnosticKind classifies a non-fatal problem found while disassembling.
type DiagnosticKind int

const (
	// Overlap: a jump target lies inside an already decoded mnemonic.
	Overlap DiagnosticKind = iota
	// MatchFailure: no decoder rule matched at an address.
	MatchFailure
	// DanglingEdge: neither end of a jump is part of the graph.
	DanglingEdge
)

func (k DiagnosticKind) String() string {
	switch k {
	case Overlap:
		return "overlap"
	case MatchFailure:
		return "match failure"
	case DanglingEdge:
		return "dangling edge"
	}
	return fmt.Sprintf("diagnostic(%d)", int(k))
}

// Diagnostic describes one skipped address or dropped edge. Other is the
// start of the conflicting mnemonic for overlaps and the jump target for
// dangling edges.
type Diagnostic struct {
	Kind    DiagnosticKind
	Address uint64
	Other   uint64
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case Overlap:
		return fmt.Sprintf("%#x overlaps the mnemonic at %#x", d.Address, d.Other)
	case MatchFailure:
		return fmt.Sprintf("no instruction matches at %#x", d.Address)
	case DanglingEdge:
		return fmt.Sprintf("edge %#x -> %#x has no endpoint in the graph", d.Address, d.Other)
	}
	return d.Kind.String()
}
