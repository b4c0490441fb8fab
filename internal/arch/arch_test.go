package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cflow/internal/arch/avr"
	"cflow/internal/il"
	"cflow/internal/region"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"amd64", "arm64", "atmega103", "atmega8", "atmega88", "avr", "mos6502"}, Names())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("z80")
	require.ErrorIs(t, err, ErrUnknownArchitecture)
	assert.Contains(t, err.Error(), "z80")
}

func TestEveryArchitectureDecodesItsReturn(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		bits int
	}{
		{"amd64", []byte{0xc3}, 8},
		{"arm64", []byte{0xc0, 0x03, 0x5f, 0xd6}, 32},
		{"mos6502", []byte{0x60}, 8},
		{"avr", []byte{0x08, 0x95}, 16},
		{"atmega8", []byte{0x08, 0x95}, 16},
		{"atmega88", []byte{0x08, 0x95}, 16},
		{"atmega103", []byte{0x08, 0x95}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, a.Name)
			assert.Equal(t, tt.bits, a.TokenBits)

			fn, diags := a.Disassemble(nil, region.New("ram", 0, tt.code), 0, "text")
			assert.Empty(t, diags)
			assert.Equal(t, 1, fn.CFG.NumVertices())
			assert.Equal(t, 0, fn.CFG.NumEdges())
		})
	}
}

func TestAVRCustomProgramCounter(t *testing.T) {
	a := AVR(avr.Mcu{Name: "attiny", PCBits: 10})
	// rjmp .-2 at 0 wraps to the top of the address space
	fn, _ := a.Disassemble(nil, region.New("ram", 0, []byte{0xfe, 0xcf}), 0, "flash")
	require.Equal(t, 2, fn.CFG.NumVertices())
	require.Equal(t, 1, fn.CFG.NumEdges())
	val, ok := fn.CFG.Vertex(fn.CFG.Edges()[0].To).Value()
	require.True(t, ok)
	assert.Equal(t, il.Const(0x3fe, 10), val)
	assert.Equal(t, "attiny", a.Name)
}
