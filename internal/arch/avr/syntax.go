package avr

import (
	"cflow/internal/disasm"
	"cflow/internal/il"
)

type table = disasm.Decoder[uint16, Mcu]

// Decoder returns the AVR instruction table.
func Decoder() *table {
	chain := disasm.New[uint16, Mcu]()
	addSkips(chain, true)

	main := disasm.New[uint16, Mcu]()
	addInstructions(main)

	top := disasm.New[uint16, Mcu]()
	top.Add(disasm.Accept[uint16, Mcu], chain, top)
	top.Add(disasm.Accept[uint16, Mcu], main)
	addSkips(top, false)
	return top
}

func addSkips(d *table, chained bool) {
	d.Add(skip("cpse", chained), "0001 00rd dddd rrrr")
	d.Add(skip("sbrc", chained), "1111 110r rrrr 0bbb")
	d.Add(skip("sbrs", chained), "1111 111r rrrr 0bbb")
	d.Add(skip("sbic", chained), "1001 1001 AAAA Abbb")
	d.Add(skip("sbis", chained), "1001 1011 AAAA Abbb")
}

func addInstructions(d *table) {
	d.Add(nonary("nop", nil), 0x0000)
	d.Add(ret("ret"), 0x9508)
	d.Add(ret("reti"), 0x9518)
	d.Add(ijmp, 0x9409)
	d.Add(icall, 0x9509)
	d.Add(nonary("sleep", nil), 0x9588)
	d.Add(nonary("wdr", nil), 0x95a8)
	d.Add(nonary("break", nil), 0x9598)
	d.Add(movw, "0000 0001 dddd rrrr")

	d.Add(compare("cpc", false), "0000 01rd dddd rrrr")
	d.Add(binary("sbc", il.OpSubtract), "0000 10rd dddd rrrr")
	d.Add(binary("add", il.OpAdd), "0000 11rd dddd rrrr")
	d.Add(compare("cp", false), "0001 01rd dddd rrrr")
	d.Add(binary("sub", il.OpSubtract), "0001 10rd dddd rrrr")
	d.Add(binary("adc", il.OpAdd), "0001 11rd dddd rrrr")
	d.Add(binary("and", il.OpAnd), "0010 00rd dddd rrrr")
	d.Add(binary("eor", il.OpExclusiveOr), "0010 01rd dddd rrrr")
	d.Add(binary("or", il.OpInclusiveOr), "0010 10rd dddd rrrr")
	d.Add(binary("mov", il.OpMove), "0010 11rd dddd rrrr")

	d.Add(compare("cpi", true), "0011 KKKK dddd KKKK")
	d.Add(immediate("sbci", il.OpSubtract), "0100 KKKK dddd KKKK")
	d.Add(immediate("subi", il.OpSubtract), "0101 KKKK dddd KKKK")
	d.Add(immediate("ori", il.OpInclusiveOr), "0110 KKKK dddd KKKK")
	d.Add(immediate("andi", il.OpAnd), "0111 KKKK dddd KKKK")
	d.Add(immediate("ldi", il.OpMove), "1110 KKKK dddd KKKK")

	d.Add(rjmp, "1100 kkkk kkkk kkkk")
	d.Add(rcall, "1101 kkkk kkkk kkkk")
	d.Add(long("jmp"), "1001 010k kkkk 110k", "kkkk kkkk kkkk kkkk")
	d.Add(long("call"), "1001 010k kkkk 111k", "kkkk kkkk kkkk kkkk")
	d.Add(branch(true), "1111 00kk kkkk ksss")
	d.Add(branch(false), "1111 01kk kkkk ksss")

	d.Add(setFlag(1), "1001 0100 0sss 1000")
	d.Add(setFlag(0), "1001 0100 1sss 1000")

	d.Add(unary("com", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpExclusiveOr, rd, rd, il.Const(0xff, 8))
	}), "1001 010d dddd 0000")
	d.Add(unary("neg", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpSubtract, rd, il.Const(0, 8), rd)
	}), "1001 010d dddd 0001")
	d.Add(unary("swap", func(cg *il.CodeGen, rd il.Variable) {
		lo, hi := il.Var("lo", 8), il.Var("hi", 8)
		cg.Emit(il.OpShiftLeft, lo, rd, il.Const(4, 8))
		cg.Emit(il.OpShiftRight, hi, rd, il.Const(4, 8))
		cg.Emit(il.OpInclusiveOr, rd, lo, hi)
	}), "1001 010d dddd 0010")
	d.Add(unary("inc", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpAdd, rd, rd, il.Const(1, 8))
	}), "1001 010d dddd 0011")
	d.Add(unary("asr", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpShiftRight, rd, rd, il.Const(1, 8))
	}), "1001 010d dddd 0101")
	d.Add(unary("lsr", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpShiftRight, rd, rd, il.Const(1, 8))
	}), "1001 010d dddd 0110")
	d.Add(unary("ror", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpShiftRight, rd, rd, il.Const(1, 8))
	}), "1001 010d dddd 0111")
	d.Add(unary("dec", func(cg *il.CodeGen, rd il.Variable) {
		cg.Emit(il.OpSubtract, rd, rd, il.Const(1, 8))
	}), "1001 010d dddd 1010")

	d.Add(word("adiw", il.OpAdd), "1001 0110 KKdd KKKK")
	d.Add(word("sbiw", il.OpSubtract), "1001 0111 KKdd KKKK")

	d.Add(stack("push"), "1001 001d dddd 1111")
	d.Add(stack("pop"), "1001 000d dddd 1111")
	d.Add(in, "1011 0AAd dddd AAAA")
	d.Add(out, "1011 1AAr rrrr AAAA")
	d.Add(direct("lds"), "1001 000d dddd 0000", "kkkk kkkk kkkk kkkk")
	d.Add(direct("sts"), "1001 001d dddd 0000", "kkkk kkkk kkkk kkkk")

	for _, p := range []struct {
		ptr  string
		mode ptrMode
		ld   string
		st   string
	}{
		{"X", plain, "1001 000d dddd 1100", "1001 001d dddd 1100"},
		{"X", postIncrement, "1001 000d dddd 1101", "1001 001d dddd 1101"},
		{"X", preDecrement, "1001 000d dddd 1110", "1001 001d dddd 1110"},
		{"Y", postIncrement, "1001 000d dddd 1001", "1001 001d dddd 1001"},
		{"Y", preDecrement, "1001 000d dddd 1010", "1001 001d dddd 1010"},
		{"Z", postIncrement, "1001 000d dddd 0001", "1001 001d dddd 0001"},
		{"Z", preDecrement, "1001 000d dddd 0010", "1001 001d dddd 0010"},
		{"Y", plain, "1000 000d dddd 1000", "1000 001d dddd 1000"},
		{"Z", plain, "1000 000d dddd 0000", "1000 001d dddd 0000"},
	} {
		d.Add(indirect("ld", p.ptr, p.mode), p.ld)
		d.Add(indirect("st", p.ptr, p.mode), p.st)
	}
}
