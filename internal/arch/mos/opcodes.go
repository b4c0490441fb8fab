package mos

import (
	"sort"

	"golang.org/x/exp/maps"

	"cflow/internal/disasm"
	"cflow/internal/il"
)

type modes map[mode]uint8

type instruction struct {
	modes  modes
	action func(mode) action
}

func alu(op il.Operation) func(cg *il.CodeGen, v il.Rvalue) {
	return func(cg *il.CodeGen, v il.Rvalue) {
		cg.Emit(op, regA, regA, v)
		setNZ(cg, regA)
	}
}

func load(r il.Variable) func(cg *il.CodeGen, v il.Rvalue) {
	return func(cg *il.CodeGen, v il.Rvalue) {
		cg.Assign(r, v)
		setNZ(cg, r)
	}
}

func cmp(r il.Variable) func(cg *il.CodeGen, v il.Rvalue) {
	return func(cg *il.CodeGen, v il.Rvalue) {
		cg.Emit(il.OpEqual, flagZ, r, v)
		cg.Emit(il.OpLessUnsigned, flagC, r, v)
		cg.Emit(il.OpExclusiveOr, flagC, flagC, il.Const(1, 1))
	}
}

func transfer(dst, src il.Variable) func(cg *il.CodeGen) {
	return func(cg *il.CodeGen) {
		cg.Assign(dst, src)
		if dst != regS {
			setNZ(cg, dst)
		}
	}
}

func set(f il.Variable, v uint64) func(cg *il.CodeGen) {
	return func(cg *il.CodeGen) { cg.Assign(f, il.Const(v, 1)) }
}

func step(r il.Variable, op il.Operation) func(cg *il.CodeGen) {
	return func(cg *il.CodeGen) {
		cg.Emit(op, r, r, il.Const(1, 8))
		setNZ(cg, r)
	}
}

func push(r il.Variable) func(cg *il.CodeGen) {
	return func(cg *il.CodeGen) {
		cg.Emit(il.OpStore, il.Mem(regS, 1, il.LittleEndian, "stack"), r)
		cg.Emit(il.OpSubtract, regS, regS, il.Const(1, 8))
	}
}

func pull(r il.Variable) func(cg *il.CodeGen) {
	return func(cg *il.CodeGen) {
		cg.Emit(il.OpAdd, regS, regS, il.Const(1, 8))
		cg.Emit(il.OpLoad, r, il.Mem(regS, 1, il.LittleEndian, "stack"))
	}
}

var regP = il.Var("p", 8)

var instructions = map[string]instruction{
	"adc": {modes{immediate: 0x69, zeroPage: 0x65, zeroPageX: 0x75, absolute: 0x6d, absoluteX: 0x7d, absoluteY: 0x79, indirectX: 0x61, indirectY: 0x71}, read("adc", alu(il.OpAdd))},
	"and": {modes{immediate: 0x29, zeroPage: 0x25, zeroPageX: 0x35, absolute: 0x2d, absoluteX: 0x3d, absoluteY: 0x39, indirectX: 0x21, indirectY: 0x31}, read("and", alu(il.OpAnd))},
	"cmp": {modes{immediate: 0xc9, zeroPage: 0xc5, zeroPageX: 0xd5, absolute: 0xcd, absoluteX: 0xdd, absoluteY: 0xd9, indirectX: 0xc1, indirectY: 0xd1}, read("cmp", cmp(regA))},
	"eor": {modes{immediate: 0x49, zeroPage: 0x45, zeroPageX: 0x55, absolute: 0x4d, absoluteX: 0x5d, absoluteY: 0x59, indirectX: 0x41, indirectY: 0x51}, read("eor", alu(il.OpExclusiveOr))},
	"lda": {modes{immediate: 0xa9, zeroPage: 0xa5, zeroPageX: 0xb5, absolute: 0xad, absoluteX: 0xbd, absoluteY: 0xb9, indirectX: 0xa1, indirectY: 0xb1}, read("lda", load(regA))},
	"ora": {modes{immediate: 0x09, zeroPage: 0x05, zeroPageX: 0x15, absolute: 0x0d, absoluteX: 0x1d, absoluteY: 0x19, indirectX: 0x01, indirectY: 0x11}, read("ora", alu(il.OpInclusiveOr))},
	"sbc": {modes{immediate: 0xe9, zeroPage: 0xe5, zeroPageX: 0xf5, absolute: 0xed, absoluteX: 0xfd, absoluteY: 0xf9, indirectX: 0xe1, indirectY: 0xf1}, read("sbc", alu(il.OpSubtract))},
	"sta": {modes{zeroPage: 0x85, zeroPageX: 0x95, absolute: 0x8d, absoluteX: 0x9d, absoluteY: 0x99, indirectX: 0x81, indirectY: 0x91}, write("sta", regA)},

	"ldx": {modes{immediate: 0xa2, zeroPage: 0xa6, zeroPageY: 0xb6, absolute: 0xae, absoluteY: 0xbe}, read("ldx", load(regX))},
	"ldy": {modes{immediate: 0xa0, zeroPage: 0xa4, zeroPageX: 0xb4, absolute: 0xac, absoluteX: 0xbc}, read("ldy", load(regY))},
	"cpx": {modes{immediate: 0xe0, zeroPage: 0xe4, absolute: 0xec}, read("cpx", cmp(regX))},
	"cpy": {modes{immediate: 0xc0, zeroPage: 0xc4, absolute: 0xcc}, read("cpy", cmp(regY))},
	"stx": {modes{zeroPage: 0x86, zeroPageY: 0x96, absolute: 0x8e}, write("stx", regX)},
	"sty": {modes{zeroPage: 0x84, zeroPageX: 0x94, absolute: 0x8c}, write("sty", regY)},
	"bit": {modes{zeroPage: 0x24, absolute: 0x2c}, read("bit", func(cg *il.CodeGen, v il.Rvalue) {
		cg.Emit(il.OpAnd, tmp, regA, v)
		cg.Emit(il.OpEqual, flagZ, tmp, il.Const(0, 8))
	})},

	"asl": {modes{accumulator: 0x0a, zeroPage: 0x06, zeroPageX: 0x16, absolute: 0x0e, absoluteX: 0x1e}, modify("asl", il.OpShiftLeft, il.Const(1, 8))},
	"lsr": {modes{accumulator: 0x4a, zeroPage: 0x46, zeroPageX: 0x56, absolute: 0x4e, absoluteX: 0x5e}, modify("lsr", il.OpShiftRight, il.Const(1, 8))},
	"rol": {modes{accumulator: 0x2a, zeroPage: 0x26, zeroPageX: 0x36, absolute: 0x2e, absoluteX: 0x3e}, modify("rol", il.OpShiftLeft, il.Const(1, 8))},
	"ror": {modes{accumulator: 0x6a, zeroPage: 0x66, zeroPageX: 0x76, absolute: 0x6e, absoluteX: 0x7e}, modify("ror", il.OpShiftRight, il.Const(1, 8))},
	"inc": {modes{zeroPage: 0xe6, zeroPageX: 0xf6, absolute: 0xee, absoluteX: 0xfe}, modify("inc", il.OpAdd, il.Const(1, 8))},
	"dec": {modes{zeroPage: 0xc6, zeroPageX: 0xd6, absolute: 0xce, absoluteX: 0xde}, modify("dec", il.OpSubtract, il.Const(1, 8))},

	"bcc": {modes{relative: 0x90}, branch("bcc", flagC, false)},
	"bcs": {modes{relative: 0xb0}, branch("bcs", flagC, true)},
	"bne": {modes{relative: 0xd0}, branch("bne", flagZ, false)},
	"beq": {modes{relative: 0xf0}, branch("beq", flagZ, true)},
	"bpl": {modes{relative: 0x10}, branch("bpl", flagN, false)},
	"bmi": {modes{relative: 0x30}, branch("bmi", flagN, true)},
	"bvc": {modes{relative: 0x50}, branch("bvc", flagV, false)},
	"bvs": {modes{relative: 0x70}, branch("bvs", flagV, true)},

	"jmp": {modes{absolute: 0x4c, indirect: 0x6c}, jmp},
	"jsr": {modes{absolute: 0x20}, jsr},
	"brk": {modes{implied: 0x00}, terminal("brk")},
	"rti": {modes{implied: 0x40}, terminal("rti")},
	"rts": {modes{implied: 0x60}, terminal("rts")},

	"clc": {modes{implied: 0x18}, simple("clc", set(flagC, 0))},
	"sec": {modes{implied: 0x38}, simple("sec", set(flagC, 1))},
	"cli": {modes{implied: 0x58}, simple("cli", set(flagI, 0))},
	"sei": {modes{implied: 0x78}, simple("sei", set(flagI, 1))},
	"clv": {modes{implied: 0xb8}, simple("clv", set(flagV, 0))},
	"cld": {modes{implied: 0xd8}, simple("cld", set(flagD, 0))},
	"sed": {modes{implied: 0xf8}, simple("sed", set(flagD, 1))},

	"tax": {modes{implied: 0xaa}, simple("tax", transfer(regX, regA))},
	"tay": {modes{implied: 0xa8}, simple("tay", transfer(regY, regA))},
	"tsx": {modes{implied: 0xba}, simple("tsx", transfer(regX, regS))},
	"txa": {modes{implied: 0x8a}, simple("txa", transfer(regA, regX))},
	"txs": {modes{implied: 0x9a}, simple("txs", transfer(regS, regX))},
	"tya": {modes{implied: 0x98}, simple("tya", transfer(regA, regY))},
	"inx": {modes{implied: 0xe8}, simple("inx", step(regX, il.OpAdd))},
	"iny": {modes{implied: 0xc8}, simple("iny", step(regY, il.OpAdd))},
	"dex": {modes{implied: 0xca}, simple("dex", step(regX, il.OpSubtract))},
	"dey": {modes{implied: 0x88}, simple("dey", step(regY, il.OpSubtract))},
	"pha": {modes{implied: 0x48}, simple("pha", push(regA))},
	"php": {modes{implied: 0x08}, simple("php", push(regP))},
	"pla": {modes{implied: 0x68}, simple("pla", pull(regA))},
	"plp": {modes{implied: 0x28}, simple("plp", pull(regP))},
	"nop": {modes{implied: 0xea}, simple("nop", nil)},
}

// Decoder returns the 6502 instruction table.
func Decoder() *disasm.Decoder[uint8, Variant] {
	var operands [relative + 1]*disasm.Decoder[uint8, Variant]
	for m := range operands {
		operands[m] = operandTable(mode(m))
	}

	d := disasm.New[uint8, Variant]()
	for _, name := range sortedNames() {
		in := instructions[name]
		for m := implied; m <= relative; m++ {
			op, ok := in.modes[m]
			if !ok {
				continue
			}
			if operands[m] == nil {
				d.Add(in.action(m), op)
				continue
			}
			d.Add(in.action(m), op, operands[m])
		}
	}
	return d
}

func sortedNames() []string {
	names := maps.Keys(instructions)
	sort.Strings(names)
	return names
}
