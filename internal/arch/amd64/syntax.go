package amd64

import (
	"cflow/internal/disasm"
	"cflow/internal/il"
)

type table = disasm.Decoder[uint8, Mode]

func prefixes() *table {
	d := disasm.New[uint8, Mode]()
	d.Add(func(st *state) bool {
		if !st.Configuration.RexW {
			st.Configuration.OperandSize = 16
		}
		return true
	}, 0x66)
	d.Add(func(st *state) bool {
		st.Configuration.AddressSize = 32
		return true
	}, 0x67)
	d.Add(func(st *state) bool {
		st.Configuration.Rep = uint8(st.Tokens()[len(st.Tokens())-1])
		return true
	}, "1111 001.")
	d.Add(func(st *state) bool {
		m := &st.Configuration
		m.Rex = true
		m.RexW = st.Group("W") == 1
		m.RexR = st.Group("R") == 1
		m.RexX = st.Group("X") == 1
		m.RexB = st.Group("B") == 1
		if m.RexW {
			m.OperandSize = 64
		}
		return true
	}, "0100 WRXB")
	return d
}

// Decoder returns the amd64 instruction table.
func Decoder() *table {
	main := disasm.New[uint8, Mode]()
	addInstructions(main)

	top := disasm.New[uint8, Mode]()
	top.Add(disasm.Accept[uint8, Mode], prefixes(), top)
	top.Add(disasm.Accept[uint8, Mode], main)
	return top
}

// addModRM adds the register, [base] and [base+disp8] forms of an
// instruction taking a mod r/m byte with reg field r.
func addModRM(d *table, act func(form) action, op byte) {
	d.Add(act(direct), op, "11 rrr bbb")
	d.Add(act(indirect), op, "00 rrr bbb")
	d.Add(act(indirectDisp8), op, "01 rrr bbb", "dddd dddd")
}

func addInstructions(d *table) {
	d.Add(nonary("nop", nil), 0x90)
	d.Add(ret, 0xc3)
	d.Add(terminal("int3"), 0xcc)
	d.Add(terminal("hlt"), 0xf4)
	d.Add(terminal("ud2"), 0x0f, 0x0b)
	d.Add(leave, 0xc9)
	d.Add(nonary("syscall", func(cg *il.CodeGen) { cg.Call(il.Var("rax", 64)) }), 0x0f, 0x05)
	d.Add(nonary("endbr64", nil), 0xf3, 0x0f, 0x1e, 0xfa)

	d.Add(push, "0101 0rrr")
	d.Add(pop, "0101 1rrr")

	d.Add(movImm(64), "1011 1rrr", "........", "........", "........", "........",
		"........", "........", "........", "........")
	d.Add(movImm(32), "1011 1rrr", "........", "........", "........", "........")
	d.Add(movImm(16), "1011 1rrr", "........", "........")

	addModRM(d, arith("mov", il.OpMove, true), 0x89)
	addModRM(d, load, 0x8b)
	addModRM(d, arith("add", il.OpAdd, true), 0x01)
	addModRM(d, arith("or", il.OpInclusiveOr, true), 0x09)
	addModRM(d, arith("and", il.OpAnd, true), 0x21)
	addModRM(d, arith("sub", il.OpSubtract, true), 0x29)
	addModRM(d, arith("xor", il.OpExclusiveOr, true), 0x31)
	addModRM(d, arith("cmp", il.OpSubtract, false), 0x39)
	addModRM(d, arith("test", il.OpAnd, false), 0x85)
	d.Add(arithImm8, 0x83, "11 ooo bbb", "iiii iiii")

	d.Add(jmpRel(8), 0xeb, "........")
	d.Add(jmpRel(32), 0xe9, "........", "........", "........", "........")
	d.Add(jcc(8), "0111 cccc", "........")
	d.Add(jcc(32), 0x0f, "1000 cccc", "........", "........", "........", "........")
	d.Add(callRel, 0xe8, "........", "........", "........", "........")

	d.Add(callIndirect(direct), 0xff, "11 010 bbb")
	d.Add(callIndirect(indirect), 0xff, "00 010 bbb")
	d.Add(callIndirect(indirectDisp8), 0xff, "01 010 bbb", "dddd dddd")
	d.Add(jmpIndirect(direct), 0xff, "11 100 bbb")
	d.Add(jmpIndirect(indirect), 0xff, "00 100 bbb")
	d.Add(jmpIndirect(indirectDisp8), 0xff, "01 100 bbb", "dddd dddd")
}
