package disasm

import (
	"fmt"

	"cflow/internal/il"
)

// Action is invoked once a rule matched. Returning false rejects the match
// and the decoder tries the next rule.
type Action[T Token, C any] func(st *State[T, C]) bool

// Accept is the action of rules whose sub-tables already did all the work.
func Accept[T Token, C any](*State[T, C]) bool {
	return true
}

type element[T Token, C any] struct {
	pat *pattern
	sub *Decoder[T, C]
}

type rule[T Token, C any] struct {
	elements []element[T, C]
	action   Action[T, C]
}

// Decoder is an ordered rule table. Rules are tried in insertion order and
// the first one that matches and whose action accepts wins.
type Decoder[T Token, C any] struct {
	rules []rule[T, C]
	order il.Endianness
}

// New returns an empty table reading little endian tokens.
func New[T Token, C any]() *Decoder[T, C] {
	return &Decoder[T, C]{}
}

// SetByteOrder selects how token bytes are assembled. Only the order of the
// outermost table used with Next matters.
func (d *Decoder[T, C]) SetByteOrder(e il.Endianness) {
	d.order = e
}

// Len returns the number of rules.
func (d *Decoder[T, C]) Len() int {
	return len(d.rules)
}

// Add appends a rule. Each element is a bit pattern string, an integer
// matching one token exactly, or a *Decoder used as a sub-table. A nil
// action accepts. Add panics on malformed elements.
func (d *Decoder[T, C]) Add(action Action[T, C], elements ...any) {
	if len(elements) == 0 {
		panic("disasm: rule without elements")
	}
	width := tokenBytes[T]() * 8
	r := rule[T, C]{action: action}
	for _, e := range elements {
		var p pattern
		var err error
		switch v := e.(type) {
		case string:
			p, err = parsePattern(v, width)
		case int:
			if v < 0 {
				err = fmt.Errorf("negative token %d", v)
			} else {
				p, err = exact(uint64(v), width)
			}
		case uint:
			p, err = exact(uint64(v), width)
		case uint8:
			p, err = exact(uint64(v), width)
		case uint16:
			p, err = exact(uint64(v), width)
		case uint32:
			p, err = exact(uint64(v), width)
		case uint64:
			p, err = exact(v, width)
		case *Decoder[T, C]:
			if v == nil {
				panic(fmt.Sprintf("disasm: rule %d: nil sub-table", len(d.rules)))
			}
			r.elements = append(r.elements, element[T, C]{sub: v})
			continue
		default:
			err = fmt.Errorf("unsupported rule element %T", e)
		}
		if err != nil {
			panic(fmt.Sprintf("disasm: rule %d: %v", len(d.rules), err))
		}
		r.elements = append(r.elements, element[T, C]{pat: &p})
	}
	d.rules = append(d.rules, r)
}

// Next decodes at addr with a fresh copy of cfg. It returns the resulting
// state, or false if no rule matched.
func (d *Decoder[T, C]) Next(src Source, addr uint64, cfg C) (*State[T, C], bool) {
	st := newState[T](addr, cfg)
	ts := newTokenStream[T](src.Seek(addr), d.order)
	if !d.match(st, ts) {
		return nil, false
	}
	return st, true
}

func (d *Decoder[T, C]) match(st *State[T, C], ts *tokenStream[T]) bool {
	for i := range d.rules {
		snap := st.save()
		pos := ts.pos
		if d.rules[i].try(st, ts) {
			return true
		}
		st.restore(snap)
		ts.pos = pos
	}
	return false
}

func (r *rule[T, C]) try(st *State[T, C], ts *tokenStream[T]) bool {
	var groups map[string]uint64
	var order []string
	// sub-table actions see the groups captured before them
	publish := func() {
		for _, name := range order {
			st.groups = append(st.groups, capture{name: name, value: groups[name]})
		}
	}
	for _, e := range r.elements {
		if e.sub != nil {
			publish()
			if !e.sub.match(st, ts) {
				return false
			}
			continue
		}
		tok, ok := ts.next()
		if !ok || !e.pat.match(uint64(tok)) {
			return false
		}
		st.tokens = append(st.tokens, tok)
		if len(e.pat.fields) > 0 {
			if groups == nil {
				groups = make(map[string]uint64)
			}
			e.pat.capture(uint64(tok), groups, &order)
		}
	}
	publish()
	if r.action == nil {
		return true
	}
	return r.action(st)
}
