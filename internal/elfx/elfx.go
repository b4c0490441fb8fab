// Package elfx loads ELF executables into a region and recovers the
// function symbols and entry point needed to seed disassembly.
package elfx

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ianlancetaylor/demangle"

	"cflow/internal/region"
)

var ErrNoLoadSegments = errors.New("elfx: no loadable segments")

// Symbol is a function symbol. Name is the demangled form when the raw
// name is a mangled C++ or Rust symbol.
type Symbol struct {
	Name string
	Raw  string
	Addr uint64
	Size uint64
}

type Image struct {
	Path    string
	Machine string
	Entry   uint64
	Region  *region.Region
	Symbols []Symbol
}

var machines = map[elf.Machine]string{
	elf.EM_X86_64:  "amd64",
	elf.EM_AARCH64: "arm64",
	elf.EM_AVR:     "avr",
}

// Open reads the ELF file at path.
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	im, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	im.Path = path
	return im, nil
}

// Parse builds an image from the PT_LOAD segments of the ELF file in r.
func Parse(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()

	im := &Image{Machine: machines[f.Machine], Entry: f.Entry, Region: region.New("ram", 0, nil)}
	loads := 0
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		seg := make([]byte, p.Filesz)
		if _, err := p.ReadAt(seg, 0); err != nil {
			return nil, fmt.Errorf("read segment at %#x: %w", p.Vaddr, err)
		}
		if err := im.Region.Define(p.Vaddr, seg); err != nil {
			return nil, err
		}
		loads++
	}
	if loads == 0 {
		return nil, ErrNoLoadSegments
	}
	im.Symbols = functionSymbols(f)
	return im, nil
}

// functionSymbols merges .symtab and .dynsym, keeping one symbol per
// address, sorted by address.
func functionSymbols(f *elf.File) []Symbol {
	var all []elf.Symbol
	if syms, err := f.Symbols(); err == nil {
		all = append(all, syms...)
	}
	if syms, err := f.DynamicSymbols(); err == nil {
		all = append(all, syms...)
	}

	seen := make(map[uint64]bool)
	var out []Symbol
	for _, s := range all {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Section == elf.SHN_UNDEF {
			continue
		}
		if seen[s.Value] {
			continue
		}
		seen[s.Value] = true
		out = append(out, newSymbol(s.Name, s.Value, s.Size))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func newSymbol(raw string, addr, size uint64) Symbol {
	return Symbol{Name: demangle.Filter(raw, demangle.NoClones), Raw: raw, Addr: addr, Size: size}
}

// FindFunctionByName returns the address of the function whose raw or
// demangled name is name.
func (im *Image) FindFunctionByName(name string) (uint64, bool) {
	for _, s := range im.Symbols {
		if s.Name == name || s.Raw == name {
			return s.Addr, true
		}
	}
	return 0, false
}

// SymbolAt returns the function symbol starting at addr.
func (im *Image) SymbolAt(addr uint64) (Symbol, bool) {
	i := sort.Search(len(im.Symbols), func(i int) bool { return im.Symbols[i].Addr >= addr })
	if i < len(im.Symbols) && im.Symbols[i].Addr == addr {
		return im.Symbols[i], true
	}
	return Symbol{}, false
}
