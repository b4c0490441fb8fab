// Package amd64 decodes a subset of 64-bit x86 code: the common integer
// moves and arithmetic, stack operations and every control transfer needed
// to recover the control flow of compiled functions.
package amd64

import (
	"fmt"

	"cflow/internal/disasm"
	"cflow/internal/il"
)

// Mode carries the prefixes seen so far while decoding one instruction.
type Mode struct {
	OperandSize int
	AddressSize int
	Rex         bool
	RexW        bool
	RexR        bool
	RexX        bool
	RexB        bool
	Rep         uint8
}

// Long is the 64-bit mode default: 32-bit operands, 64-bit addresses.
func Long() Mode { return Mode{OperandSize: 32, AddressSize: 64} }

type state = disasm.State[uint8, Mode]

type action = disasm.Action[uint8, Mode]

var names = map[int][16]string{
	64: {"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"},
	32: {"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi", "r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d"},
	16: {"ax", "cx", "dx", "bx", "sp", "bp", "si", "di", "r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w"},
}

func register(n uint64, size int, ext bool) il.Variable {
	if ext {
		n += 8
	}
	return il.Var(names[size][n&15], size)
}

var (
	rsp = il.Var("rsp", 64)
	rbp = il.Var("rbp", 64)
)

// condition flags indexed by cc >> 1; the low bit of cc negates the test
var conditions = [8]string{"OF", "CF", "ZF", "BE", "SF", "PF", "L", "LE"}

var jccNames = [16]string{
	"jo", "jno", "jb", "jae", "je", "jne", "jbe", "ja",
	"js", "jns", "jp", "jnp", "jl", "jge", "jle", "jg",
}

func condition(cc uint64) il.Guard {
	return il.Eq(il.Var(conditions[(cc>>1)&7], 1), cc&1 == 0)
}

func signed(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

func next(st *state) {
	st.Jump(il.Const(st.End(), 64), il.Always())
}

func stackMem() il.Memory {
	return il.Mem(rsp, 8, il.LittleEndian, "ram")
}

func nonary(op string, sem func(cg *il.CodeGen)) action {
	return func(st *state) bool {
		st.Emit(op, "", nil, sem)
		next(st)
		return true
	}
}

func terminal(op string) action {
	return func(st *state) bool {
		st.Emit(op, "", nil, nil)
		return true
	}
}

func ret(st *state) bool {
	st.Emit("ret", "", nil, func(cg *il.CodeGen) {
		cg.Emit(il.OpAdd, rsp, rsp, il.Const(8, 64))
	})
	return true
}

func leave(st *state) bool {
	st.Emit("leave", "", nil, func(cg *il.CodeGen) {
		cg.Assign(rsp, rbp)
		cg.Emit(il.OpLoad, rbp, stackMem())
		cg.Emit(il.OpAdd, rsp, rsp, il.Const(8, 64))
	})
	next(st)
	return true
}

func push(st *state) bool {
	r := register(st.Group("r"), 64, st.Configuration.RexB)
	st.Emit("push", "{}", []il.Rvalue{r}, func(cg *il.CodeGen) {
		cg.Emit(il.OpSubtract, rsp, rsp, il.Const(8, 64))
		cg.Emit(il.OpStore, stackMem(), r)
	})
	next(st)
	return true
}

func pop(st *state) bool {
	r := register(st.Group("r"), 64, st.Configuration.RexB)
	st.Emit("pop", "{}", []il.Rvalue{r}, func(cg *il.CodeGen) {
		cg.Emit(il.OpLoad, r, stackMem())
		cg.Emit(il.OpAdd, rsp, rsp, il.Const(8, 64))
	})
	next(st)
	return true
}

// movImm accepts only when the operand size selected by the prefixes
// matches the immediate it was built for.
func movImm(size int) action {
	return func(st *state) bool {
		if st.Configuration.OperandSize != size {
			return false
		}
		r := register(st.Group("r"), size, st.Configuration.RexB)
		imm := il.Const(st.LittleEndian(size/8), size)
		st.Emit("mov", "{}, {}", []il.Rvalue{r, imm}, func(cg *il.CodeGen) { cg.Assign(r, imm) })
		next(st)
		return true
	}
}

type form int

const (
	direct form = iota
	indirect
	indirectDisp8
)

// rm returns the r/m operand described by the captured mod r/m bits. It
// fails for encodings needing a SIB byte or RIP relative addressing.
func rm(st *state, f form, size int) (il.Rvalue, bool) {
	b := st.Group("b")
	if f == direct {
		return register(b, size, st.Configuration.RexB), true
	}
	if b&7 == 4 || (f == indirect && b&7 == 5) {
		return nil, false
	}
	base := register(b, 64, st.Configuration.RexB)
	if f == indirect {
		return il.Mem(base, size/8, il.LittleEndian, "ram"), true
	}
	return il.Mem(il.Var(fmt.Sprintf("%s%+d", base.Name, signed(st.Group("d"), 8)), 64), size/8, il.LittleEndian, "ram"), true
}

// arith is an r/m, r instruction. Loads and stores are lowered around
// the operation when r/m is in memory.
func arith(op string, code il.Operation, store bool) func(f form) action {
	return func(f form) action {
		return func(st *state) bool {
			size := st.Configuration.OperandSize
			dst, ok := rm(st, f, size)
			if !ok {
				return false
			}
			src := register(st.Group("r"), size, st.Configuration.RexR)
			st.Emit(op, "{}, {}", []il.Rvalue{dst, src}, func(cg *il.CodeGen) {
				lowerArith(cg, code, dst, src, store)
			})
			next(st)
			return true
		}
	}
}

// load is mov r, r/m.
func load(f form) action {
	return func(st *state) bool {
		size := st.Configuration.OperandSize
		src, ok := rm(st, f, size)
		if !ok {
			return false
		}
		dst := register(st.Group("r"), size, st.Configuration.RexR)
		st.Emit("mov", "{}, {}", []il.Rvalue{dst, src}, func(cg *il.CodeGen) {
			if m, ok := src.(il.Memory); ok {
				cg.Emit(il.OpLoad, dst, m)
				return
			}
			cg.Assign(dst, src)
		})
		next(st)
		return true
	}
}

func lowerArith(cg *il.CodeGen, code il.Operation, dst, src il.Rvalue, store bool) {
	mem, inMemory := dst.(il.Memory)
	if code == il.OpMove {
		if inMemory {
			cg.Emit(il.OpStore, mem, src)
			return
		}
		cg.Assign(dst.(il.Lvalue), src)
		return
	}
	res := il.Var("tmp", dst.Bits())
	val := dst
	if inMemory {
		cg.Emit(il.OpLoad, res, mem)
		val = res
	}
	cg.Emit(code, res, val, src)
	cg.Emit(il.OpEqual, il.Var("ZF", 1), res, il.Const(0, dst.Bits()))
	if !store {
		return
	}
	if inMemory {
		cg.Emit(il.OpStore, mem, res)
		return
	}
	cg.Assign(dst.(il.Lvalue), res)
}

var group1 = [8]struct {
	name  string
	code  il.Operation
	store bool
}{
	{"add", il.OpAdd, true},
	{"or", il.OpInclusiveOr, true},
	{"adc", il.OpAdd, true},
	{"sbb", il.OpSubtract, true},
	{"and", il.OpAnd, true},
	{"sub", il.OpSubtract, true},
	{"xor", il.OpExclusiveOr, true},
	{"cmp", il.OpSubtract, false},
}

// arithImm8 is the 0x83 group with a sign extended 8-bit immediate.
func arithImm8(st *state) bool {
	size := st.Configuration.OperandSize
	g := group1[st.Group("o")&7]
	dst := register(st.Group("b"), size, st.Configuration.RexB)
	imm := il.Const(uint64(signed(st.Group("i"), 8)), size)
	st.Emit(g.name, "{}, {}", []il.Rvalue{dst, imm}, func(cg *il.CodeGen) {
		lowerArith(cg, g.code, dst, imm, g.store)
	})
	next(st)
	return true
}

func jmpRel(bits int) action {
	return func(st *state) bool {
		t := il.Const(st.End()+uint64(signed(st.LittleEndian(bits/8), uint(bits))), 64)
		st.Emit("jmp", "{}", []il.Rvalue{t}, nil)
		st.Jump(t, il.Always())
		return true
	}
}

func jcc(bits int) action {
	return func(st *state) bool {
		cc := st.Group("c")
		t := il.Const(st.End()+uint64(signed(st.LittleEndian(bits/8), uint(bits))), 64)
		st.Emit(jccNames[cc&15], "{}", []il.Rvalue{t}, nil)
		g := condition(cc)
		st.Jump(t, g)
		st.Jump(il.Const(st.End(), 64), g.Negation())
		return true
	}
}

func callRel(st *state) bool {
	t := il.Const(st.End()+uint64(signed(st.LittleEndian(4), 32)), 64)
	st.Emit("call", "{}", []il.Rvalue{t}, func(cg *il.CodeGen) { cg.Call(t) })
	next(st)
	return true
}

// jmpIndirect and callIndirect are the ff /4 and ff /2 forms; their
// targets are only known at run time.
func jmpIndirect(f form) action {
	return func(st *state) bool {
		t, ok := rm(st, f, 64)
		if !ok {
			return false
		}
		st.Emit("jmp", "{}", []il.Rvalue{t}, nil)
		st.Jump(t, il.Always())
		return true
	}
}

func callIndirect(f form) action {
	return func(st *state) bool {
		t, ok := rm(st, f, 64)
		if !ok {
			return false
		}
		st.Emit("call", "{}", []il.Rvalue{t}, func(cg *il.CodeGen) { cg.Call(t) })
		next(st)
		return true
	}
}
