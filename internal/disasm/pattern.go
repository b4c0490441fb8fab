package disasm

import (
	"fmt"
)

// field is one capture group bit inside a token, most significant first.
type field struct {
	name string
	bit  uint
}

// pattern matches a single token.
type pattern struct {
	mask   uint64
	bits   uint64
	fields []field
}

// parsePattern compiles a bit pattern string such as "1001 010k kkkk 110k".
// '0' and '1' are fixed, '.' is don't care, letters capture into the group
// of that name. Spaces and underscores are ignored.
func parsePattern(s string, width int) (pattern, error) {
	var p pattern
	n := 0
	for _, c := range s {
		if c == ' ' || c == '_' {
			continue
		}
		if n >= width {
			return pattern{}, fmt.Errorf("pattern %q is longer than %d bits", s, width)
		}
		bit := uint(width - 1 - n)
		switch {
		case c == '0':
			p.mask |= 1 << bit
		case c == '1':
			p.mask |= 1 << bit
			p.bits |= 1 << bit
		case c == '.':
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			p.fields = append(p.fields, field{name: string(c), bit: bit})
		default:
			return pattern{}, fmt.Errorf("pattern %q: invalid character %q", s, c)
		}
		n++
	}
	if n != width {
		return pattern{}, fmt.Errorf("pattern %q has %d bits, want %d", s, n, width)
	}
	return p, nil
}

// exact compiles a pattern matching one token value.
func exact(v uint64, width int) (pattern, error) {
	full := uint64(1)<<uint(width) - 1
	if width >= 64 {
		full = ^uint64(0)
	}
	if v&^full != 0 {
		return pattern{}, fmt.Errorf("token %#x does not fit %d bits", v, width)
	}
	return pattern{mask: full, bits: v}, nil
}

func (p pattern) match(tok uint64) bool {
	return tok&p.mask == p.bits
}

// capture appends the group bits of tok to groups, concatenating with any
// bits the same group captured earlier in the rule.
func (p pattern) capture(tok uint64, groups map[string]uint64, order *[]string) {
	for _, f := range p.fields {
		v, seen := groups[f.name]
		if !seen {
			*order = append(*order, f.name)
		}
		groups[f.name] = v<<1 | (tok>>f.bit)&1
	}
}
