// Package disasm implements the table driven instruction decoder shared by
// all architecture plugins. A Decoder is an ordered list of rules, each a
// sequence of token bit patterns or nested tables plus an action that turns
// the matched tokens into mnemonics and jumps.
package disasm

import (
	"unsafe"

	"golang.org/x/exp/constraints"

	"cflow/internal/il"
)

// Token is the fixed width unit an architecture decodes.
type Token interface {
	constraints.Unsigned
}

// Cursor yields the bytes of a Source in address order. Next returns false
// once the covered extent ends or an undefined byte is reached.
type Cursor interface {
	Next() (byte, bool)
}

// Source is a byte addressable image.
type Source interface {
	Seek(addr uint64) Cursor
}

func tokenBytes[T Token]() int {
	var t T
	return int(unsafe.Sizeof(t))
}

// tokenStream buffers tokens read from a cursor so matching can rewind.
type tokenStream[T Token] struct {
	cur   Cursor
	order il.Endianness
	width int
	buf   []T
	pos   int
	eof   bool
}

func newTokenStream[T Token](cur Cursor, order il.Endianness) *tokenStream[T] {
	return &tokenStream[T]{cur: cur, order: order, width: tokenBytes[T]()}
}

func (ts *tokenStream[T]) next() (T, bool) {
	if ts.pos < len(ts.buf) {
		t := ts.buf[ts.pos]
		ts.pos++
		return t, true
	}
	if ts.eof {
		return 0, false
	}
	var v T
	for i := 0; i < ts.width; i++ {
		b, ok := ts.cur.Next()
		if !ok {
			ts.eof = true
			return 0, false
		}
		if ts.order == il.BigEndian {
			v = v<<8 | T(b)
		} else {
			v |= T(b) << (8 * uint(i))
		}
	}
	ts.buf = append(ts.buf, v)
	ts.pos++
	return v, true
}
