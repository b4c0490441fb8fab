// Package avr decodes 8-bit AVR code. Instructions are one or two 16-bit
// little endian words; the skip instructions (cpse, sbrc, sbrs, sbic, sbis)
// are decoded together with the instruction they may skip so that both
// outgoing edges are known.
package avr

import (
	"fmt"

	"cflow/internal/disasm"
	"cflow/internal/il"
)

// Mcu is the decoder configuration: the width of the byte addressed program
// counter and the skip still waiting for the instruction it jumps over.
type Mcu struct {
	Name   string
	PCBits int

	skip pendingSkip
}

type pendingSkip struct {
	active bool
	origin uint64
	guard  il.Guard
}

// ATmega8 has 8 KiB of flash.
func ATmega8() Mcu { return Mcu{Name: "atmega8", PCBits: 13} }

// ATmega88 has 8 KiB of flash.
func ATmega88() Mcu { return Mcu{Name: "atmega88", PCBits: 13} }

// ATmega103 has 128 KiB of flash.
func ATmega103() Mcu { return Mcu{Name: "atmega103", PCBits: 17} }

// Lookup returns the MCU with the given name.
func Lookup(name string) (Mcu, bool) {
	for _, m := range []Mcu{ATmega8(), ATmega88(), ATmega103()} {
		if m.Name == name {
			return m, true
		}
	}
	return Mcu{}, false
}

func (m Mcu) wrap(addr uint64) uint64 {
	if m.PCBits <= 0 || m.PCBits >= 64 {
		return addr
	}
	return addr & (1<<uint(m.PCBits) - 1)
}

func (m Mcu) target(addr uint64) il.Constant {
	bits := m.PCBits
	if bits <= 0 || bits > 64 {
		bits = 64
	}
	return il.Const(m.wrap(addr), bits)
}

type state = disasm.State[uint16, Mcu]

func reg(n uint64) il.Variable {
	return il.Var(fmt.Sprintf("r%d", n), 8)
}

// sreg bits in order
var flags = [8]string{"C", "Z", "N", "V", "S", "H", "T", "I"}

func flag(bit uint64) il.Variable {
	return il.Var(flags[bit&7], 1)
}

var ioNames = map[uint64]string{
	0x3d: "spl",
	0x3e: "sph",
	0x3f: "sreg",
}

func ioreg(a uint64) il.Variable {
	if n, ok := ioNames[a]; ok {
		return il.Var(n, 8)
	}
	return il.Var(fmt.Sprintf("io_%#02x", a), 8)
}

// signed interprets the low bits of v as a two's complement number.
func signed(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// next resolves a skip jumping over the current instruction and records
// the edge to the following one.
func next(st *state) {
	end := st.Configuration.target(st.End())
	resolveSkip(st, end)
	st.Jump(end, il.Always())
}

func resolveSkip(st *state, after il.Constant) {
	if s := st.Configuration.skip; s.active {
		st.JumpFrom(s.origin, after, s.guard)
		st.Configuration.skip = pendingSkip{}
	}
}

func nonary(op string, sem func(cg *il.CodeGen)) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		st.Emit(op, "", nil, sem)
		next(st)
		return true
	}
}

// binary is a two register instruction; rd = rd op rr.
func binary(op string, code il.Operation) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd, rr := reg(st.Group("d")), reg(st.Group("r"))
		st.Emit(op, "{}, {}", []il.Rvalue{rd, rr}, func(cg *il.CodeGen) {
			cg.Emit(code, rd, rd, rr)
			cg.Emit(il.OpEqual, flag(1), rd, il.Const(0, 8))
		})
		next(st)
		return true
	}
}

// compare sets the flags from rd - rr without storing the result. cpi
// compares r16-r31 with a constant.
func compare(op string, imm bool) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		var rd il.Variable
		var rr il.Rvalue
		if imm {
			rd, rr = reg(16+st.Group("d")), il.Const(st.Group("K"), 8)
		} else {
			rd, rr = reg(st.Group("d")), reg(st.Group("r"))
		}
		st.Emit(op, "{}, {}", []il.Rvalue{rd, rr}, func(cg *il.CodeGen) {
			cg.Emit(il.OpEqual, flag(1), rd, rr)
			cg.Emit(il.OpLessUnsigned, flag(0), rd, rr)
			cg.Emit(il.OpLessSigned, flag(4), rd, rr)
		})
		next(st)
		return true
	}
}

// immediate operates on r16-r31 with an 8-bit constant.
func immediate(op string, code il.Operation) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd := reg(16 + st.Group("d"))
		k := il.Const(st.Group("K"), 8)
		st.Emit(op, "{}, {}", []il.Rvalue{rd, k}, func(cg *il.CodeGen) {
			if code == il.OpMove {
				cg.Assign(rd, k)
				return
			}
			cg.Emit(code, rd, rd, k)
		})
		next(st)
		return true
	}
}

func unary(op string, sem func(cg *il.CodeGen, rd il.Variable)) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd := reg(st.Group("d"))
		st.Emit(op, "{}", []il.Rvalue{rd}, func(cg *il.CodeGen) { sem(cg, rd) })
		next(st)
		return true
	}
}

func movw(st *state) bool {
	rd, rr := reg(2*st.Group("d")), reg(2*st.Group("r"))
	st.Emit("movw", "{}, {}", []il.Rvalue{rd, rr}, func(cg *il.CodeGen) {
		cg.Assign(rd, rr)
		cg.Assign(reg(2*st.Group("d")+1), reg(2*st.Group("r")+1))
	})
	next(st)
	return true
}

// word adds or subtracts a 6-bit constant to one of the pairs r24..r30.
func word(op string, code il.Operation) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd := reg(24 + 2*st.Group("d"))
		k := il.Const(st.Group("K"), 8)
		st.Emit(op, "{}, {}", []il.Rvalue{rd, k}, func(cg *il.CodeGen) {
			cg.Emit(code, rd, rd, k)
		})
		next(st)
		return true
	}
}

func stack(op string) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd := reg(st.Group("d"))
		sp := il.Mem(il.Var("sp", 16), 1, il.LittleEndian, "sram")
		st.Emit(op, "{}", []il.Rvalue{rd}, func(cg *il.CodeGen) {
			if op == "push" {
				cg.Emit(il.OpStore, sp, rd)
				cg.Emit(il.OpSubtract, il.Var("sp", 16), il.Var("sp", 16), il.Const(1, 16))
				return
			}
			cg.Emit(il.OpAdd, il.Var("sp", 16), il.Var("sp", 16), il.Const(1, 16))
			cg.Emit(il.OpLoad, rd, sp)
		})
		next(st)
		return true
	}
}

func in(st *state) bool {
	rd, a := reg(st.Group("d")), ioreg(st.Group("A"))
	st.Emit("in", "{}, {}", []il.Rvalue{rd, a}, func(cg *il.CodeGen) { cg.Assign(rd, a) })
	next(st)
	return true
}

func out(st *state) bool {
	a, rr := ioreg(st.Group("A")), reg(st.Group("r"))
	st.Emit("out", "{}, {}", []il.Rvalue{a, rr}, func(cg *il.CodeGen) { cg.Assign(a, rr) })
	next(st)
	return true
}

// direct is lds and sts with a 16-bit data address in the second word.
func direct(op string) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		rd := reg(st.Group("d"))
		m := il.Mem(il.Const(st.Group("k"), 16), 1, il.LittleEndian, "sram")
		if op == "lds" {
			st.Emit(op, "{}, {}", []il.Rvalue{rd, m}, func(cg *il.CodeGen) { cg.Emit(il.OpLoad, rd, m) })
		} else {
			st.Emit(op, "{}, {}", []il.Rvalue{m, rd}, func(cg *il.CodeGen) { cg.Emit(il.OpStore, m, rd) })
		}
		next(st)
		return true
	}
}

type ptrMode int

const (
	plain ptrMode = iota
	postIncrement
	preDecrement
)

// indirect is ld and st through X, Y or Z.
func indirect(op, ptr string, mode ptrMode) disasm.Action[uint16, Mcu] {
	text := ptr
	switch mode {
	case postIncrement:
		text = ptr + "+"
	case preDecrement:
		text = "-" + ptr
	}
	return func(st *state) bool {
		rd := reg(st.Group("d"))
		p := il.Var(ptr, 16)
		m := il.Mem(p, 1, il.LittleEndian, "sram")
		sem := func(cg *il.CodeGen) {
			if mode == preDecrement {
				cg.Emit(il.OpSubtract, p, p, il.Const(1, 16))
			}
			if op == "ld" {
				cg.Emit(il.OpLoad, rd, m)
			} else {
				cg.Emit(il.OpStore, m, rd)
			}
			if mode == postIncrement {
				cg.Emit(il.OpAdd, p, p, il.Const(1, 16))
			}
		}
		operands := []il.Rvalue{rd, il.Var(text, 16)}
		if op == "st" {
			operands[0], operands[1] = operands[1], operands[0]
		}
		st.Emit(op, "{}, {}", operands, sem)
		next(st)
		return true
	}
}

// setFlag is bset and bclr together with their named aliases.
func setFlag(value uint64) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		s := st.Group("s")
		prefix := "se"
		if value == 0 {
			prefix = "cl"
		}
		f := flag(s)
		st.Emit(prefix+lower(flags[s]), "", nil, func(cg *il.CodeGen) {
			cg.Assign(f, il.Const(value, 1))
		})
		next(st)
		return true
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func rjmp(st *state) bool {
	t := st.Configuration.target(st.End() + uint64(2*signed(st.Group("k"), 12)))
	st.Emit("rjmp", "{}", []il.Rvalue{t}, nil)
	resolveSkip(st, st.Configuration.target(st.End()))
	st.Jump(t, il.Always())
	return true
}

func rcall(st *state) bool {
	t := st.Configuration.target(st.End() + uint64(2*signed(st.Group("k"), 12)))
	st.Emit("rcall", "{}", []il.Rvalue{t}, func(cg *il.CodeGen) { cg.Call(t) })
	next(st)
	return true
}

// long is jmp and call with a 22-bit word address spanning both tokens.
func long(op string) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		t := st.Configuration.target(2 * st.Group("k"))
		if op == "call" {
			st.Emit(op, "{}", []il.Rvalue{t}, func(cg *il.CodeGen) { cg.Call(t) })
			next(st)
			return true
		}
		st.Emit(op, "{}", []il.Rvalue{t}, nil)
		resolveSkip(st, st.Configuration.target(st.End()))
		st.Jump(t, il.Always())
		return true
	}
}

// z is the word address held in r31:r30.
var z = il.Var("Z", 16)

func ijmp(st *state) bool {
	st.Emit("ijmp", "", nil, nil)
	resolveSkip(st, st.Configuration.target(st.End()))
	st.Jump(z, il.Always())
	return true
}

func icall(st *state) bool {
	st.Emit("icall", "", nil, func(cg *il.CodeGen) { cg.Call(z) })
	next(st)
	return true
}

func ret(op string) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		st.Emit(op, "", nil, nil)
		resolveSkip(st, st.Configuration.target(st.End()))
		return true
	}
}

var branchNames = [2][8]string{
	{"brcc", "brne", "brpl", "brvc", "brge", "brhc", "brtc", "brid"},
	{"brcs", "breq", "brmi", "brvs", "brlt", "brhs", "brts", "brie"},
}

// branch is brbs (set true) and brbc: a 7-bit relative jump taken when the
// SREG bit s has the given value.
func branch(set bool) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		s := st.Group("s")
		t := st.Configuration.target(st.End() + uint64(2*signed(st.Group("k"), 7)))
		fall := st.Configuration.target(st.End())
		idx := 0
		if set {
			idx = 1
		}
		st.Emit(branchNames[idx][s], "{}", []il.Rvalue{t}, nil)
		resolveSkip(st, fall)
		g := il.Eq(flag(s), set)
		st.Jump(t, g)
		st.Jump(fall, g.Negation())
		return true
	}
}

// skip decodes a conditional skip. If chained is set the next instruction
// is part of the same decode and resolves the skip target; otherwise the
// skipped instruction is assumed to be one word long.
func skip(op string, chained bool) disasm.Action[uint16, Mcu] {
	return func(st *state) bool {
		var operands []il.Rvalue
		var g il.Guard
		var sem func(cg *il.CodeGen)

		switch op {
		case "cpse":
			rd, rr := reg(st.Group("d")), reg(st.Group("r"))
			operands = []il.Rvalue{rd, rr}
			cond := il.Var("skip", 1)
			g = il.IsSet(cond)
			sem = func(cg *il.CodeGen) { cg.Emit(il.OpEqual, cond, rd, rr) }
		case "sbrc", "sbrs":
			r, b := st.Group("r"), st.Group("b")
			operands = []il.Rvalue{reg(r), il.Const(b, 3)}
			g = il.Eq(il.Bit(reg(r).Name, int(b)), op == "sbrs")
		case "sbic", "sbis":
			a, b := ioreg(st.Group("A")), st.Group("b")
			operands = []il.Rvalue{a, il.Const(b, 3)}
			g = il.Eq(il.Bit(a.Name, int(b)), op == "sbis")
		}

		st.Mnemonic(2, op, "{}, {}", operands, sem)
		end := st.Configuration.target(st.Here())
		// a preceding skip in the chain jumps over this instruction
		resolveSkip(st, end)
		st.Jump(end, g.Negation())
		if chained {
			st.Configuration.skip = pendingSkip{active: true, origin: st.Here() - 2, guard: g}
			return true
		}
		st.Jump(st.Configuration.target(st.Here()+2), g)
		return true
	}
}
