// Package mos decodes MOS 6502 code. The opcode byte selects the
// instruction; addressing mode sub-tables consume the operand bytes and
// leave the operand in the configuration for the instruction action.
package mos

import (
	"cflow/internal/disasm"
	"cflow/internal/il"
)

// Variant is the decoder configuration. Arg is the operand of the
// instruction being decoded, set by the addressing mode sub-table.
type Variant struct {
	Arg il.Rvalue
}

// Mos6502 is the NMOS 6502 without undocumented opcodes.
func Mos6502() Variant { return Variant{} }

type state = disasm.State[uint8, Variant]

type action = disasm.Action[uint8, Variant]

type mode int

const (
	implied mode = iota
	accumulator
	immediate
	zeroPage
	zeroPageX
	zeroPageY
	absolute
	absoluteX
	absoluteY
	indirect
	indirectX
	indirectY
	relative
)

var formats = [...]string{
	implied:     "",
	accumulator: "a",
	immediate:   "#{}",
	zeroPage:    "{}",
	zeroPageX:   "{},x",
	zeroPageY:   "{},y",
	absolute:    "{}",
	absoluteX:   "{},x",
	absoluteY:   "{},y",
	indirect:    "({})",
	indirectX:   "({},x)",
	indirectY:   "({}),y",
	relative:    "{}",
}

var (
	regA = il.Var("a", 8)
	regX = il.Var("x", 8)
	regY = il.Var("y", 8)
	regS = il.Var("s", 8)

	flagN = il.Var("N", 1)
	flagV = il.Var("V", 1)
	flagD = il.Var("D", 1)
	flagI = il.Var("I", 1)
	flagZ = il.Var("Z", 1)
	flagC = il.Var("C", 1)

	ea  = il.Var("ea", 16)
	tmp = il.Var("tmp", 8)
)

func wrap(addr uint64) uint64 { return addr & 0xffff }

func ram(offset il.Rvalue, n int) il.Memory {
	return il.Mem(offset, n, il.LittleEndian, "ram")
}

// operandTable returns the sub-table consuming the operand bytes of m.
func operandTable(m mode) *disasm.Decoder[uint8, Variant] {
	t := disasm.New[uint8, Variant]()
	switch m {
	case immediate, zeroPage, zeroPageX, zeroPageY, indirectX, indirectY:
		t.Add(func(st *state) bool {
			st.Configuration.Arg = il.Const(st.Group("k"), 8)
			return true
		}, "kkkkkkkk")
	case absolute, absoluteX, absoluteY, indirect:
		t.Add(func(st *state) bool {
			st.Configuration.Arg = il.Const(st.LittleEndian(2), 16)
			return true
		}, "........", "........")
	case relative:
		t.Add(func(st *state) bool {
			off := int64(int8(st.Group("k")))
			st.Configuration.Arg = il.Const(wrap(st.End()+uint64(off)), 16)
			return true
		}, "kkkkkkkk")
	default:
		return nil
	}
	return t
}

// address lowers the effective address computation of m and returns the
// addressed byte.
func address(cg *il.CodeGen, m mode, arg il.Rvalue) il.Memory {
	switch m {
	case zeroPageX, absoluteX:
		cg.Emit(il.OpAdd, ea, arg, regX)
	case zeroPageY, absoluteY:
		cg.Emit(il.OpAdd, ea, arg, regY)
	case indirectX:
		cg.Emit(il.OpAdd, ea, arg, regX)
		cg.Emit(il.OpLoad, ea, ram(ea, 2))
	case indirectY:
		cg.Emit(il.OpLoad, ea, ram(arg, 2))
		cg.Emit(il.OpAdd, ea, ea, regY)
	default:
		return ram(arg, 1)
	}
	return ram(ea, 1)
}

func setNZ(cg *il.CodeGen, r il.Rvalue) {
	cg.Emit(il.OpEqual, flagZ, r, il.Const(0, 8))
	cg.Emit(il.OpLessSigned, flagN, r, il.Const(0, 8))
}

// emit places the mnemonic for the whole instruction. It fails when the
// addressing mode needs an operand and none was decoded.
func emit(st *state, name string, m mode, sem func(cg *il.CodeGen, arg il.Rvalue)) bool {
	arg := st.Configuration.Arg
	var operands []il.Rvalue
	switch m {
	case implied, accumulator:
	default:
		if arg == nil {
			return false
		}
		operands = []il.Rvalue{arg}
	}
	st.Emit(name, formats[m], operands, func(cg *il.CodeGen) {
		if sem != nil {
			sem(cg, arg)
		}
	})
	return true
}

func fallthrough16(st *state) {
	st.Jump(il.Const(wrap(st.End()), 16), il.Always())
}

// read instructions use the operand value.
func read(name string, sem func(cg *il.CodeGen, v il.Rvalue)) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			ok := emit(st, name, m, func(cg *il.CodeGen, arg il.Rvalue) {
				if m == immediate {
					sem(cg, arg)
					return
				}
				cg.Emit(il.OpLoad, tmp, address(cg, m, arg))
				sem(cg, tmp)
			})
			if ok {
				fallthrough16(st)
			}
			return ok
		}
	}
}

// write instructions store a register.
func write(name string, src il.Variable) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			ok := emit(st, name, m, func(cg *il.CodeGen, arg il.Rvalue) {
				cg.Emit(il.OpStore, address(cg, m, arg), src)
			})
			if ok {
				fallthrough16(st)
			}
			return ok
		}
	}
}

// modify instructions update the accumulator or memory in place.
func modify(name string, op il.Operation, operand il.Rvalue) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			ok := emit(st, name, m, func(cg *il.CodeGen, arg il.Rvalue) {
				if m == accumulator {
					cg.Emit(op, regA, regA, operand)
					setNZ(cg, regA)
					return
				}
				loc := address(cg, m, arg)
				cg.Emit(il.OpLoad, tmp, loc)
				cg.Emit(op, tmp, tmp, operand)
				setNZ(cg, tmp)
				cg.Emit(il.OpStore, loc, tmp)
			})
			if ok {
				fallthrough16(st)
			}
			return ok
		}
	}
}

func simple(name string, sem func(cg *il.CodeGen)) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			emit(st, name, m, func(cg *il.CodeGen, _ il.Rvalue) {
				if sem != nil {
					sem(cg)
				}
			})
			fallthrough16(st)
			return true
		}
	}
}

// terminal instructions have no successor inside the function.
func terminal(name string) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			return emit(st, name, m, nil)
		}
	}
}

func branch(name string, flag il.Variable, set bool) func(mode) action {
	return func(m mode) action {
		return func(st *state) bool {
			if !emit(st, name, m, nil) {
				return false
			}
			g := il.Eq(flag, set)
			st.Jump(st.Configuration.Arg, g)
			st.Jump(il.Const(wrap(st.End()), 16), g.Negation())
			return true
		}
	}
}

// jmp is absolute or, through a pointer in memory, computed.
func jmp(m mode) action {
	return func(st *state) bool {
		if !emit(st, "jmp", m, nil) {
			return false
		}
		if m == indirect {
			st.Jump(ram(st.Configuration.Arg, 2), il.Always())
			return true
		}
		st.Jump(st.Configuration.Arg, il.Always())
		return true
	}
}

func jsr(m mode) action {
	return func(st *state) bool {
		ok := emit(st, "jsr", m, func(cg *il.CodeGen, arg il.Rvalue) {
			cg.Emit(il.OpSubtract, regS, regS, il.Const(2, 8))
			cg.Call(arg)
		})
		if ok {
			fallthrough16(st)
		}
		return ok
	}
}
