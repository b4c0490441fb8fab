package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalELF returns an executable with one PT_LOAD segment holding code
// mapped at vaddr.
func minimalELF(t *testing.T, machine elf.Machine, vaddr uint64, code []byte, loads int) []byte {
	t.Helper()
	const ehsize, phsize = 64, 56
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     vaddr,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phsize,
		Phnum:     uint16(loads),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	off := uint64(ehsize + phsize*loads)
	for i := 0; i < loads; i++ {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Off:    off,
			Vaddr:  vaddr,
			Paddr:  vaddr,
			Filesz: uint64(len(code)),
			Memsz:  uint64(len(code)),
			Align:  0x1000,
		}))
	}
	buf.Write(code)
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	code := []byte{0x31, 0xc0, 0xc3}
	path := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, os.WriteFile(path, minimalELF(t, elf.EM_X86_64, 0x401000, code, 1), 0o644))

	im, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, im.Path)
	assert.Equal(t, "amd64", im.Machine)
	assert.Equal(t, uint64(0x401000), im.Entry)
	assert.Equal(t, code, im.Region.Read(0x401000, 3))
	assert.False(t, im.Region.Defined(0x401003))
	assert.Empty(t, im.Symbols)
}

func TestParseErrors(t *testing.T) {
	t.Run("no load segments", func(t *testing.T) {
		_, err := Parse(bytes.NewReader(minimalELF(t, elf.EM_AARCH64, 0x1000, nil, 0)))
		assert.ErrorIs(t, err, ErrNoLoadSegments)
	})
	t.Run("overlapping segments", func(t *testing.T) {
		_, err := Parse(bytes.NewReader(minimalELF(t, elf.EM_AARCH64, 0x1000, []byte{1, 2, 3, 4}, 2)))
		assert.Error(t, err)
	})
	t.Run("not elf", func(t *testing.T) {
		_, err := Parse(bytes.NewReader([]byte("#!/bin/sh\n")))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})
}

func TestSymbols(t *testing.T) {
	im := &Image{Symbols: []Symbol{
		newSymbol("main", 0x1000, 16),
		newSymbol("_ZN3foo3barEv", 0x1010, 8),
	}}

	assert.Equal(t, "foo::bar()", im.Symbols[1].Name)
	assert.Equal(t, "main", im.Symbols[0].Name)

	tests := []struct {
		name string
		addr uint64
		ok   bool
	}{
		{"main", 0x1000, true},
		{"foo::bar()", 0x1010, true},
		{"_ZN3foo3barEv", 0x1010, true},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := im.FindFunctionByName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.addr, addr)
		})
	}

	s, ok := im.SymbolAt(0x1010)
	require.True(t, ok)
	assert.Equal(t, "_ZN3foo3barEv", s.Raw)
	_, ok = im.SymbolAt(0x1008)
	assert.False(t, ok)
}
