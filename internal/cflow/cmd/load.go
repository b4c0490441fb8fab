package cmd

import (
	"bytes"
	"crypto/sha256"
	"debug/elf"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cflow/internal/arch"
	"cflow/internal/arch/avr"
	"cflow/internal/elfx"
	"cflow/internal/function"
	"cflow/internal/logging"
	"cflow/internal/region"
)

// input is a loaded file ready for disassembly.
type input struct {
	path    string
	digest  string
	kind    string
	arch    string
	region  *region.Region
	entries []uint64
	image   *elfx.Image
}

// loadInput reads path as an ELF file, a PRG file or a raw image and
// resolves the entry points named in cfg.
func loadInput(path string, cfg CflowConfig) (*input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	in := &input{path: path, digest: hex.EncodeToString(sum[:]), arch: cfg.Arch}
	name := filepath.Base(path)

	var defaultEntry uint64
	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		im, err := elfx.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		in.kind, in.image, in.region, defaultEntry = "elf", im, im.Region, im.Entry
		if in.arch == "" {
			in.arch = im.Machine
		}
	case cfg.PRG:
		r, start, err := region.LoadPRG(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		in.kind, in.region, defaultEntry = "prg", r, start
		if in.arch == "" {
			in.arch = "mos6502"
		}
	default:
		r, err := region.LoadRaw(name, data, cfg.Base)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		in.kind, in.region, defaultEntry = "raw", r, cfg.Base
	}
	if in.arch == "" {
		return nil, fmt.Errorf("%s: cannot detect the architecture of a %s image, use --arch", path, in.kind)
	}

	if len(cfg.Entries) == 0 {
		in.entries = []uint64{defaultEntry}
		return in, nil
	}
	for _, e := range cfg.Entries {
		addr, err := in.resolve(e)
		if err != nil {
			return nil, err
		}
		in.entries = append(in.entries, addr)
	}
	return in, nil
}

// resolve parses an address in Go integer syntax or looks up a symbol.
func (in *input) resolve(entry string) (uint64, error) {
	if addr, err := strconv.ParseUint(entry, 0, 64); err == nil {
		return addr, nil
	}
	if in.image != nil {
		if addr, ok := in.image.FindFunctionByName(entry); ok {
			return addr, nil
		}
	}
	return 0, fmt.Errorf("entry %q is neither an address nor a known symbol", entry)
}

// architecture selects the plugin, honoring a custom AVR program counter.
func architecture(name string, pcBits int) (arch.Architecture, error) {
	a, err := arch.Lookup(name)
	if err != nil {
		return a, err
	}
	if pcBits > 0 && a.TokenBits == 16 {
		return arch.AVR(avr.Mcu{Name: name, PCBits: pcBits}), nil
	}
	return a, nil
}

// disassembleAll recovers one function per entry. An entry that lands in
// a function recovered earlier extends that function instead.
func disassembleAll(a arch.Architecture, in *input, lg *logging.LoggerCloser) ([]*function.Function, []function.Diagnostic) {
	var fns []*function.Function
	var all []function.Diagnostic
	for _, entry := range in.entries {
		idx := -1
		for i, fn := range fns {
			if _, ok := fn.FindBasicBlockAt(entry); ok {
				idx = i
				break
			}
		}

		var cont *function.Function
		if idx >= 0 {
			cont = fns[idx]
		}
		fn, diags := a.Disassemble(cont, in.region, entry, in.region.Name())
		if cont == nil && in.image != nil {
			if sym, ok := in.image.SymbolAt(entry); ok {
				fn.Name = sym.Name
			}
		}
		for _, d := range diags {
			lg.Warn(d.Kind.String(), "function", fn.Name, "detail", d.String())
		}
		all = append(all, diags...)

		if idx >= 0 {
			fns[idx] = fn
			continue
		}
		fns = append(fns, fn)
	}
	return fns, all
}
