package disasm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cflow/internal/il"
)

type mode struct {
	wide    bool
	pending []string
}

func (m mode) Clone() mode {
	m.pending = append([]string(nil), m.pending...)
	return m
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		width   int
		mask    uint64
		bits    uint64
		fields  int
		wantErr bool
	}{
		{name: "fixed", pattern: "0001 0010", width: 8, mask: 0xff, bits: 0x12},
		{name: "dont care", pattern: "1... ..01", width: 8, mask: 0x83, bits: 0x81},
		{name: "groups", pattern: "0001 00rd dddd rrrr", width: 16, mask: 0xfc00, bits: 0x1000, fields: 10},
		{name: "underscores", pattern: "1111_0000", width: 8, mask: 0xff, bits: 0xf0},
		{name: "short", pattern: "0101", width: 8, wantErr: true},
		{name: "long", pattern: "0101 0101 0", width: 8, wantErr: true},
		{name: "bad char", pattern: "0101 010#", width: 8, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parsePattern(tt.pattern, tt.width)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mask, p.mask)
			assert.Equal(t, tt.bits, p.bits)
			assert.Len(t, p.fields, tt.fields)
		})
	}
}

func TestAddPanicsOnMalformedRule(t *testing.T) {
	d := New[uint8, mode]()
	assert.Panics(t, func() { d.Add(nil, "0101") })
	assert.Panics(t, func() { d.Add(nil, 0x1ff) })
	assert.Panics(t, func() { d.Add(nil, 3.5) })
	assert.Panics(t, func() { d.Add(nil) })
	assert.Equal(t, 0, d.Len())
}

func TestFirstMatchWins(t *testing.T) {
	d := New[uint8, mode]()
	d.Add(func(st *State[uint8, mode]) bool {
		st.Emit("specific", "", nil, nil)
		return true
	}, 0x10)
	d.Add(func(st *State[uint8, mode]) bool {
		st.Emit("generic", "", nil, nil)
		return true
	}, "0001 ....")

	st, ok := d.Next(bytesSource{data: []byte{0x10}}, 0, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, "specific", st.Mnemonics[0].Opcode)

	st, ok = d.Next(bytesSource{data: []byte{0x1f}}, 0, mode{})
	require.True(t, ok)
	assert.Equal(t, "generic", st.Mnemonics[0].Opcode)

	_, ok = d.Next(bytesSource{data: []byte{0x20}}, 0, mode{})
	assert.False(t, ok)
}

func TestRejectingActionFallsThrough(t *testing.T) {
	d := New[uint8, mode]()
	// register 3 is reserved, the catch-all rule takes over
	d.Add(func(st *State[uint8, mode]) bool {
		if st.Group("r") == 3 {
			return false
		}
		st.Emit("inc", "{}", []il.Rvalue{il.Var("r", 8)}, nil)
		st.Jump(il.Const(st.End(), 8), il.Always())
		return true
	}, "0000 0rrr")
	d.Add(func(st *State[uint8, mode]) bool {
		st.Emit("invalid", "", nil, nil)
		return true
	}, "........")

	st, ok := d.Next(bytesSource{data: []byte{0x03}}, 0, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, "invalid", st.Mnemonics[0].Opcode)
	assert.Empty(t, st.Jumps)

	st, ok = d.Next(bytesSource{data: []byte{0x02}}, 0, mode{})
	require.True(t, ok)
	assert.Equal(t, "inc", st.Mnemonics[0].Opcode)
	assert.Equal(t, uint64(2), st.Group("r"))
	require.Len(t, st.Jumps, 1)
	assert.Equal(t, Jump{Origin: 0, Target: il.Const(1, 8), Guard: il.Always()}, st.Jumps[0])
}

func TestMultiTokenGroupConcatenation(t *testing.T) {
	d := New[uint16, mode]()
	d.Add(func(st *State[uint16, mode]) bool {
		st.Emit("call", "{}", []il.Rvalue{il.Const(st.Group("k"), 22)}, nil)
		return true
	}, "1001 010k kkkk 111k", "kkkk kkkk kkkk kkkk")

	// call 0x1234 (word address), little endian words 0x940e 0x1234
	st, ok := d.Next(bytesSource{data: []byte{0x0e, 0x94, 0x34, 0x12}}, 0, mode{})
	require.True(t, ok)
	assert.Equal(t, uint64(0x1234), st.Group("k"))
	assert.Equal(t, il.NewBound(0, 4), st.Mnemonics[0].Area)
	assert.Equal(t, []uint16{0x940e, 0x1234}, st.Tokens())
	assert.Equal(t, uint64(0x1234940e), st.LittleEndian(2))
}

func TestSubTableBacktracking(t *testing.T) {
	prefix := New[uint8, mode]()
	prefix.Add(func(st *State[uint8, mode]) bool {
		st.Configuration.wide = true
		st.Configuration.pending = append(st.Configuration.pending, "wide")
		return true
	}, 0x66)

	main := New[uint8, mode]()
	main.Add(Accept[uint8, mode], prefix, main)
	main.Add(func(st *State[uint8, mode]) bool {
		size := 8
		if st.Configuration.wide {
			size = 16
		}
		st.Emit("nop", "{}", []il.Rvalue{il.Const(uint64(size), 8)}, nil)
		return true
	}, 0x90)
	main.Add(func(st *State[uint8, mode]) bool {
		if st.Configuration.wide {
			return false
		}
		st.Emit("bad", "", nil, nil)
		return true
	}, "........")

	st, ok := main.Next(bytesSource{base: 0x100, data: []byte{0x66, 0x66, 0x90}}, 0x100, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, il.NewBound(0x100, 0x103), st.Mnemonics[0].Area)
	assert.Equal(t, il.Const(16, 8), st.Mnemonics[0].Operands[0])
	assert.Equal(t, []string{"wide", "wide"}, st.Configuration.pending)

	// the prefix chain fails on 0x01 and is rolled back before the catch-all
	st, ok = main.Next(bytesSource{data: []byte{0x66, 0x01}}, 0, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.False(t, st.Configuration.wide)
	assert.Empty(t, st.Configuration.pending)
	assert.Len(t, st.Tokens(), 1)
	assert.Equal(t, "bad", st.Mnemonics[0].Opcode)
	assert.Equal(t, il.NewBound(0, 1), st.Mnemonics[0].Area)
}

func TestSubTableSeesOuterGroups(t *testing.T) {
	operand := New[uint8, mode]()
	operand.Add(func(st *State[uint8, mode]) bool {
		if !st.HasGroup("r") {
			return false
		}
		st.Emit("ld", "{}, {}", []il.Rvalue{il.Var(fmt.Sprintf("r%d", st.Group("r")), 8), il.Const(st.Group("k"), 8)}, nil)
		return true
	}, "kkkk kkkk")

	d := New[uint8, mode]()
	d.Add(nil, "rrrr 0000", operand)

	st, ok := d.Next(bytesSource{data: []byte{0x30, 0x7f}}, 0, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, "ld r3, 0x7f", st.Mnemonics[0].String())
	assert.Equal(t, map[string]uint64{"r": 3, "k": 0x7f}, st.Groups())

	// a failing sub-table rolls the outer captures back
	_, ok = d.Next(bytesSource{data: []byte{0x30}}, 0, mode{})
	assert.False(t, ok)
}

func TestInitialConfigurationIsNotShared(t *testing.T) {
	d := New[uint8, mode]()
	d.Add(func(st *State[uint8, mode]) bool {
		st.Configuration.pending = append(st.Configuration.pending, "x")
		st.Emit("op", "", nil, nil)
		return true
	}, "........")

	initial := mode{pending: make([]string, 0, 4)}
	for i := 0; i < 3; i++ {
		st, ok := d.Next(bytesSource{data: []byte{0}}, 0, initial)
		require.True(t, ok)
		assert.Equal(t, []string{"x"}, st.Configuration.pending)
	}
	assert.Empty(t, initial.pending)
}

func TestChainedMnemonicsAndJumpOrigins(t *testing.T) {
	d := New[uint8, mode]()
	second := New[uint8, mode]()
	second.Add(func(st *State[uint8, mode]) bool {
		st.Emit("b", "", nil, nil)
		st.Jump(il.Const(st.End(), 8), il.Always())
		return true
	}, 0x02)
	d.Add(func(st *State[uint8, mode]) bool {
		return true
	}, func() *Decoder[uint8, mode] {
		first := New[uint8, mode]()
		first.Add(func(st *State[uint8, mode]) bool {
			st.Emit("a", "", nil, nil)
			st.Jump(il.Const(st.End(), 8), il.Always())
			st.JumpFrom(st.Address, il.Const(0x40, 8), il.Always())
			return true
		}, 0x01)
		return first
	}(), second)

	st, ok := d.Next(bytesSource{base: 0x10, data: []byte{0x01, 0x02}}, 0x10, mode{})
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 2)
	assert.Equal(t, il.NewBound(0x10, 0x11), st.Mnemonics[0].Area)
	assert.Equal(t, il.NewBound(0x11, 0x12), st.Mnemonics[1].Area)
	require.Len(t, st.Jumps, 3)
	assert.Equal(t, uint64(0x10), st.Jumps[0].Origin)
	assert.Equal(t, il.Const(0x11, 8), st.Jumps[0].Target)
	assert.Equal(t, uint64(0x11), st.Jumps[2].Origin)
	assert.Equal(t, il.Const(0x12, 8), st.Jumps[2].Target)
	assert.Equal(t, uint64(0x12), st.Here())
}

func TestTokenExhaustion(t *testing.T) {
	d := New[uint16, mode]()
	d.Add(nil, "................")

	_, ok := d.Next(bytesSource{data: []byte{0x01}}, 0, mode{})
	assert.False(t, ok, "half a token is not a token")

	_, ok = d.Next(bytesSource{data: []byte{0x01, 0x02}}, 2, mode{})
	assert.False(t, ok)

	_, ok = d.Next(bytesSource{base: 8, data: []byte{0x01, 0x02}}, 4, mode{})
	assert.False(t, ok)
}

func TestBigEndianTokens(t *testing.T) {
	d := New[uint16, mode]()
	d.SetByteOrder(il.BigEndian)
	d.Add(func(st *State[uint16, mode]) bool {
		st.Emit("x", "", nil, nil)
		return true
	}, 0x1234)

	_, ok := d.Next(bytesSource{data: []byte{0x12, 0x34}}, 0, mode{})
	assert.True(t, ok)
	_, ok = d.Next(bytesSource{data: []byte{0x34, 0x12}}, 0, mode{})
	assert.False(t, ok)
}

func TestGroupPanicsWhenMissing(t *testing.T) {
	d := New[uint8, mode]()
	d.Add(func(st *State[uint8, mode]) bool {
		assert.True(t, st.HasGroup("a"))
		assert.False(t, st.HasGroup("b"))
		assert.Equal(t, map[string]uint64{"a": 0xf}, st.Groups())
		assert.Panics(t, func() { st.Group("b") })
		st.Emit("x", "", nil, nil)
		return true
	}, "0000 aaaa")
	_, ok := d.Next(bytesSource{data: []byte{0x0f}}, 0, mode{})
	assert.True(t, ok)
}
