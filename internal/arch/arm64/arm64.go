// Package arm64 recovers the control flow of AArch64 code. Instruction
// bodies are decoded with golang.org/x/arch/arm64/arm64asm; this package
// classifies the result into fall through, branches, calls and returns.
package arm64

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"cflow/internal/disasm"
	"cflow/internal/il"
)

// Config is the decoder configuration. AArch64 has no decode state that
// carries between instruction words.
type Config struct{}

type state = disasm.State[uint32, Config]

// condition codes are tested pairwise: the low bit negates the base test
var condFlags = [8]string{"EQ", "CS", "MI", "VS", "HI", "GE", "GT", "AL"}

// Decoder returns a table matching every instruction word.
func Decoder() *disasm.Decoder[uint32, Config] {
	d := disasm.New[uint32, Config]()
	d.Add(decode, "........ ........ ........ ........")
	return d
}

func decode(st *state) bool {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], st.Tokens()[len(st.Tokens())-1])
	inst, err := arm64asm.Decode(word[:])
	if err != nil {
		return false
	}
	pc := st.Here()
	op := strings.ToLower(inst.Op.String())
	args := operands(inst)

	switch inst.Op {
	case arm64asm.B:
		t := target(pc, lastArg(inst))
		if c, ok := inst.Args[0].(arm64asm.Cond); ok && c.Value>>1 != 7 {
			st.Emit("b."+strings.ToLower(c.String()), "{}", []il.Rvalue{t}, nil)
			g := il.Eq(il.Var(condFlags[c.Value>>1], 1), c.Value&1 == 0)
			st.Jump(t, g)
			st.Jump(il.Const(st.End(), 64), g.Negation())
			return true
		}
		st.Emit(op, "{}", []il.Rvalue{t}, nil)
		st.Jump(t, il.Always())
	case arm64asm.BL:
		t := target(pc, inst.Args[0])
		st.Emit(op, "{}", []il.Rvalue{t}, func(cg *il.CodeGen) { cg.Call(t) })
		next(st)
	case arm64asm.CBZ, arm64asm.CBNZ:
		r := register(inst.Args[0])
		t := target(pc, inst.Args[1])
		st.Emit(op, "{}, {}", []il.Rvalue{r, t}, nil)
		g := il.Eq(il.Var(fmt.Sprintf("nz(%s)", r.Name), 1), inst.Op == arm64asm.CBNZ)
		st.Jump(t, g)
		st.Jump(il.Const(st.End(), 64), g.Negation())
	case arm64asm.TBZ, arm64asm.TBNZ:
		r := register(inst.Args[0])
		var bit uint32
		if imm, ok := inst.Args[1].(arm64asm.Imm); ok {
			bit = imm.Imm
		}
		t := target(pc, inst.Args[2])
		st.Emit(op, "{}, {}, {}", []il.Rvalue{r, il.Const(uint64(bit), 8), t}, nil)
		g := il.Eq(il.Bit(r.Name, int(bit)), inst.Op == arm64asm.TBNZ)
		st.Jump(t, g)
		st.Jump(il.Const(st.End(), 64), g.Negation())
	case arm64asm.BR:
		r := register(inst.Args[0])
		st.Emit(op, "{}", []il.Rvalue{r}, nil)
		st.Jump(r, il.Always())
	case arm64asm.BLR:
		r := register(inst.Args[0])
		st.Emit(op, "{}", []il.Rvalue{r}, func(cg *il.CodeGen) { cg.Call(r) })
		next(st)
	case arm64asm.RET, arm64asm.ERET:
		st.Emit(op, "", nil, nil)
	case arm64asm.BRK, arm64asm.HLT:
		st.Emit(op, args, nil, nil)
	default:
		st.Emit(op, args, nil, nil)
		next(st)
	}
	return true
}

func next(st *state) {
	st.Jump(il.Const(st.End(), 64), il.Always())
}

// operands returns the operand text of inst as printed by arm64asm.
func operands(inst arm64asm.Inst) string {
	s := strings.ToLower(inst.String())
	_, rest, _ := strings.Cut(s, " ")
	return rest
}

func lastArg(inst arm64asm.Inst) arm64asm.Arg {
	var last arm64asm.Arg
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		last = a
	}
	return last
}

func target(pc uint64, arg arm64asm.Arg) il.Constant {
	rel, ok := arg.(arm64asm.PCRel)
	if !ok {
		panic(fmt.Sprintf("arm64: %v is not pc relative", arg))
	}
	return il.Const(pc+uint64(int64(rel)), 64)
}

func register(arg arm64asm.Arg) il.Variable {
	name := strings.ToLower(arg.String())
	if strings.HasPrefix(name, "w") {
		return il.Var(name, 32)
	}
	return il.Var(name, 64)
}
