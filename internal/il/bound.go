// Package il holds the architecture independent values produced by the
// decoders: operand values, branch guards, decoded mnemonics and their
// lowered statements.
package il

import "fmt"

// Bound is the half-open address range [Start, End).
type Bound struct {
	Start uint64
	End   uint64
}

// NewBound returns [start, end). It panics unless start < end.
func NewBound(start, end uint64) Bound {
	if start >= end {
		panic(fmt.Sprintf("il: empty bound [%#x, %#x)", start, end))
	}
	return Bound{Start: start, End: end}
}

// Len returns the number of addresses covered.
func (b Bound) Len() uint64 {
	return b.End - b.Start
}

// Contains reports whether addr lies inside the range.
func (b Bound) Contains(addr uint64) bool {
	return addr >= b.Start && addr < b.End
}

// Overlaps reports whether the two ranges share an address.
func (b Bound) Overlaps(o Bound) bool {
	return b.Start < o.End && o.Start < b.End
}

func (b Bound) String() string {
	return fmt.Sprintf("[%#x, %#x)", b.Start, b.End)
}
