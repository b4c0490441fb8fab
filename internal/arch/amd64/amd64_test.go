package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"cflow/internal/function"
	"cflow/internal/il"
	"cflow/internal/region"
)

func TestInstructions(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		text string
	}{
		{"nop", []byte{0x90}, "nop"},
		{"ret", []byte{0xc3}, "ret"},
		{"push rbp", []byte{0x55}, "push rbp"},
		{"push r15", []byte{0x41, 0x57}, "push r15"},
		{"pop rbp", []byte{0x5d}, "pop rbp"},
		{"mov rbp, rsp", []byte{0x48, 0x89, 0xe5}, "mov rbp, rsp"},
		{"mov eax, ecx", []byte{0x89, 0xc8}, "mov eax, ecx"},
		{"mov eax, [rdi]", []byte{0x8b, 0x07}, "mov eax, ram[rdi]"},
		{"mov rax, [rdi+8]", []byte{0x48, 0x8b, 0x47, 0x08}, "mov rax, ram[rdi+8]"},
		{"xor eax, eax", []byte{0x31, 0xc0}, "xor eax, eax"},
		{"sub rsp, 16", []byte{0x48, 0x83, 0xec, 0x10}, "sub rsp, 0x10"},
		{"cmp eax, -1", []byte{0x83, 0xf8, 0xff}, "cmp eax, 0xffffffff"},
		{"mov eax, imm32", []byte{0xb8, 0x01, 0x00, 0x00, 0x00}, "mov eax, 0x1"},
		{"mov rax, imm64", []byte{0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}, "mov rax, 0x1122334455667788"},
		{"mov ax, imm16", []byte{0x66, 0xb8, 0x34, 0x12}, "mov ax, 0x1234"},
		{"mov r8d, imm32", []byte{0x41, 0xb8, 0x02, 0x00, 0x00, 0x00}, "mov r8d, 0x2"},
		{"call rel32", []byte{0xe8, 0x00, 0x01, 0x00, 0x00}, "call 0x105"},
		{"jmp rel8", []byte{0xeb, 0xfe}, "jmp 0x0"},
		{"je rel8", []byte{0x74, 0x05}, "je 0x7"},
		{"jne rel32", []byte{0x0f, 0x85, 0x10, 0x00, 0x00, 0x00}, "jne 0x16"},
		{"jmp rax", []byte{0xff, 0xe0}, "jmp rax"},
		{"call [rax]", []byte{0xff, 0x10}, "call ram[rax]"},
		{"call r11", []byte{0x41, 0xff, 0xd3}, "call r11"},
		{"syscall", []byte{0x0f, 0x05}, "syscall"},
		{"leave", []byte{0xc9}, "leave"},
		{"int3", []byte{0xcc}, "int3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := Decoder().Next(region.New("ram", 0, tt.data), 0, Long())
			require.True(t, ok)
			require.Len(t, st.Mnemonics, 1)
			m := st.Mnemonics[0]
			assert.Equal(t, tt.text, m.String())

			inst, err := x86asm.Decode(tt.data, 64)
			require.NoError(t, err)
			assert.Equal(t, uint64(inst.Len), m.Area.Len(), "length disagrees with x86asm: %s", inst)
		})
	}
}

func TestUnsupportedAddressing(t *testing.T) {
	// mov eax, [rsp] needs a SIB byte
	_, ok := Decoder().Next(region.New("ram", 0, []byte{0x8b, 0x04, 0x24}), 0, Long())
	assert.False(t, ok)
}

func TestConditionalBranch(t *testing.T) {
	data := []byte{
		0x31, 0xc0, // 0: xor eax, eax
		0x85, 0xff, // 2: test edi, edi
		0x74, 0x05, // 4: je 0xb
		0xb8, 0x01, 0x00, 0x00, 0x00, // 6: mov eax, 1
		0xc3, // b: ret
	}
	fn, diags := function.Disassemble(nil, Decoder(), Long(), region.New("ram", 0, data), 0, "text")

	assert.Empty(t, diags)
	var areas []il.Bound
	for _, bb := range fn.BasicBlocks() {
		areas = append(areas, bb.Area)
	}
	assert.Equal(t, []il.Bound{il.NewBound(0, 6), il.NewBound(6, 0xb), il.NewBound(0xb, 0xc)}, areas)
	assert.Equal(t, 3, fn.CFG.NumVertices())
	assert.Equal(t, 3, fn.CFG.NumEdges())

	entry, ok := fn.Entry()
	require.True(t, ok)
	var guards []string
	for _, e := range fn.CFG.Out(entry) {
		guards = append(guards, e.Guard.String())
	}
	assert.ElementsMatch(t, []string{"ZF == 1", "ZF == 0"}, guards)
}

func TestCallsAndComputedJumps(t *testing.T) {
	data := []byte{
		0xe8, 0x00, 0x00, 0x00, 0x00, // 0: call 5
		0xff, 0xd0, // 5: call rax
		0xff, 0xe0, // 7: jmp rax
	}
	fn, diags := function.Disassemble(nil, Decoder(), Long(), region.New("ram", 0, data), 0, "text")

	assert.Empty(t, diags)
	assert.Equal(t, []il.Rvalue{il.Const(5, 64), il.Var("rax", 64)}, fn.CollectCalls())
	assert.Equal(t, 2, fn.CFG.NumVertices())
	assert.Equal(t, 1, fn.CFG.NumEdges())
}

func TestPrefixesDoNotLeak(t *testing.T) {
	// the operand size prefix only applies to the instruction it precedes
	data := []byte{
		0x66, 0xb8, 0x34, 0x12, // mov ax, 0x1234
		0xb8, 0x78, 0x56, 0x34, 0x12, // mov eax, 0x12345678
		0xc3,
	}
	fn, _ := function.Disassemble(nil, Decoder(), Long(), region.New("ram", 0, data), 0, "text")

	ms := fn.Mnemonics()
	require.Len(t, ms, 3)
	assert.Equal(t, "mov ax, 0x1234", ms[0].String())
	assert.Equal(t, "mov eax, 0x12345678", ms[1].String())
}
