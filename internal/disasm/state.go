package disasm

import (
	"fmt"

	"cflow/internal/il"
)

// Jump is a candidate control flow edge emitted while decoding.
type Jump struct {
	Origin uint64
	Target il.Rvalue
	Guard  il.Guard
}

// Cloner is implemented by configurations holding reference types that must
// not be shared between a snapshot and the live state.
type Cloner[C any] interface {
	Clone() C
}

func cloneConfig[C any](c C) C {
	if cl, ok := any(c).(Cloner[C]); ok {
		return cl.Clone()
	}
	return c
}

type capture struct {
	name  string
	value uint64
}

// State is the context of one decode attempt at Address. Actions read the
// captured groups and the configuration and append mnemonics and jumps.
type State[T Token, C any] struct {
	Address       uint64
	Configuration C
	Mnemonics     []il.Mnemonic
	Jumps         []Jump

	tokens []T
	groups []capture
}

type snapshot[C any] struct {
	tokens, groups, mnemonics, jumps int
	config                           C
}

func newState[T Token, C any](addr uint64, cfg C) *State[T, C] {
	return &State[T, C]{Address: addr, Configuration: cloneConfig(cfg)}
}

func (st *State[T, C]) save() snapshot[C] {
	return snapshot[C]{
		tokens:    len(st.tokens),
		groups:    len(st.groups),
		mnemonics: len(st.Mnemonics),
		jumps:     len(st.Jumps),
		config:    cloneConfig(st.Configuration),
	}
}

func (st *State[T, C]) restore(s snapshot[C]) {
	st.tokens = st.tokens[:s.tokens]
	st.groups = st.groups[:s.groups]
	st.Mnemonics = st.Mnemonics[:s.mnemonics]
	st.Jumps = st.Jumps[:s.jumps]
	st.Configuration = s.config
}

// Tokens returns the tokens consumed so far.
func (st *State[T, C]) Tokens() []T {
	return st.tokens
}

// HasGroup reports whether a capture group of that name matched.
func (st *State[T, C]) HasGroup(name string) bool {
	for i := len(st.groups) - 1; i >= 0; i-- {
		if st.groups[i].name == name {
			return true
		}
	}
	return false
}

// Group returns the most recently captured value of the named group. It
// panics if the group was never captured.
func (st *State[T, C]) Group(name string) uint64 {
	for i := len(st.groups) - 1; i >= 0; i-- {
		if st.groups[i].name == name {
			return st.groups[i].value
		}
	}
	panic(fmt.Sprintf("disasm: no capture group %q at %#x", name, st.Address))
}

// Groups returns a copy of the captured groups.
func (st *State[T, C]) Groups() map[string]uint64 {
	out := make(map[string]uint64, len(st.groups))
	for _, g := range st.groups {
		out[g.name] = g.value
	}
	return out
}

// End returns the address following the last consumed token.
func (st *State[T, C]) End() uint64 {
	return st.Address + uint64(len(st.tokens)*tokenBytes[T]())
}

// Here returns the address the next mnemonic is placed at: the end of the
// last mnemonic emitted in this attempt, or Address.
func (st *State[T, C]) Here() uint64 {
	if n := len(st.Mnemonics); n > 0 {
		return st.Mnemonics[n-1].Area.End
	}
	return st.Address
}

// LittleEndian assembles the last n consumed tokens into one value, the
// earliest token being least significant.
func (st *State[T, C]) LittleEndian(n int) uint64 {
	if n > len(st.tokens) {
		panic(fmt.Sprintf("disasm: %d tokens requested, %d consumed", n, len(st.tokens)))
	}
	w := uint(tokenBytes[T]() * 8)
	var v uint64
	for i, t := range st.tokens[len(st.tokens)-n:] {
		v |= uint64(t) << (w * uint(i))
	}
	return v
}

// Mnemonic appends a mnemonic of length bytes at Here. The semantics
// callback, if not nil, lowers the instruction.
func (st *State[T, C]) Mnemonic(length uint64, opcode, format string, operands []il.Rvalue, semantics func(*il.CodeGen)) {
	var cg il.CodeGen
	if semantics != nil {
		semantics(&cg)
	}
	start := st.Here()
	st.Mnemonics = append(st.Mnemonics, il.Mnemonic{
		Opcode:       opcode,
		Format:       format,
		Operands:     operands,
		Area:         il.NewBound(start, start+length),
		Instructions: cg.Statements,
	})
}

// Emit appends a mnemonic spanning Here up to End.
func (st *State[T, C]) Emit(opcode, format string, operands []il.Rvalue, semantics func(*il.CodeGen)) {
	st.Mnemonic(st.End()-st.Here(), opcode, format, operands, semantics)
}

// Jump records an edge from the last emitted mnemonic.
func (st *State[T, C]) Jump(target il.Rvalue, g il.Guard) {
	origin := st.Address
	if n := len(st.Mnemonics); n > 0 {
		origin = st.Mnemonics[n-1].Area.Start
	}
	st.JumpFrom(origin, target, g)
}

// JumpFrom records an edge with an explicit origin.
func (st *State[T, C]) JumpFrom(origin uint64, target il.Rvalue, g il.Guard) {
	st.Jumps = append(st.Jumps, Jump{Origin: origin, Target: target, Guard: g})
}
