package arm64

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cflow/internal/function"
	"cflow/internal/il"
	"cflow/internal/region"
)

func code(words ...uint32) *region.Region {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return region.New("ram", 0, b)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		word  uint32
		text  string
		jumps int
	}{
		{"nop", 0xd503201f, "nop", 1},
		{"ret", 0xd65f03c0, "ret", 0},
		{"b self", 0x14000000, "b 0x0", 1},
		{"bl", 0x94000040, "bl 0x100", 1},
		{"b.eq", 0x54000040, "b.eq 0x8", 2},
		{"cbz", 0xb4000040, "cbz x0, 0x8", 2},
		{"tbz", 0x36180040, "tbz w0, 0x3, 0x8", 2},
		{"br", 0xd61f0200, "br x16", 1},
		{"blr", 0xd63f0100, "blr x8", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := Decoder().Next(code(tt.word), 0, Config{})
			require.True(t, ok)
			require.Len(t, st.Mnemonics, 1)
			assert.Equal(t, tt.text, st.Mnemonics[0].String())
			assert.Equal(t, uint64(4), st.Mnemonics[0].Area.Len())
			assert.Len(t, st.Jumps, tt.jumps)
		})
	}
}

func TestCompareAndBranch(t *testing.T) {
	src := code(
		0xb4000060, // 0: cbz x0, 0xc
		0xd2800020, // 4: mov x0, #1
		0xd65f03c0, // 8: ret
		0xd65f03c0, // c: ret
	)
	fn, diags := function.Disassemble(nil, Decoder(), Config{}, src, 0, "text")

	assert.Empty(t, diags)
	var areas []il.Bound
	for _, bb := range fn.BasicBlocks() {
		areas = append(areas, bb.Area)
	}
	assert.Equal(t, []il.Bound{il.NewBound(0, 4), il.NewBound(4, 0xc), il.NewBound(0xc, 0x10)}, areas)
	assert.Equal(t, 3, fn.CFG.NumVertices())
	assert.Equal(t, 2, fn.CFG.NumEdges())

	entry, ok := fn.Entry()
	require.True(t, ok)
	var guards []string
	for _, e := range fn.CFG.Out(entry) {
		guards = append(guards, e.Guard.String())
	}
	assert.ElementsMatch(t, []string{"nz(x0) == 0", "nz(x0) == 1"}, guards)
}

func TestCallsAndRegisterBranch(t *testing.T) {
	src := code(
		0x94000002, // 0: bl 0x8
		0xd61f0200, // 4: br x16
	)
	fn, diags := function.Disassemble(nil, Decoder(), Config{}, src, 0, "text")

	assert.Empty(t, diags)
	assert.Equal(t, []il.Rvalue{il.Const(8, 64)}, fn.CollectCalls())
	assert.Equal(t, 2, fn.CFG.NumVertices())
	require.Equal(t, 1, fn.CFG.NumEdges())
	val, ok := fn.CFG.Vertex(fn.CFG.Edges()[0].To).Value()
	require.True(t, ok)
	assert.Equal(t, il.Var("x16", 64), val)
}

func TestTruncatedWord(t *testing.T) {
	_, ok := Decoder().Next(region.New("ram", 0, []byte{0x1f, 0x20, 0x03}), 0, Config{})
	assert.False(t, ok)
}
