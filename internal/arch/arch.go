// Package arch is the registry of architecture plugins. Each entry binds a
// decoder table to its initial configuration so callers can disassemble
// without knowing the token type.
package arch

import (
	"errors"
	"fmt"
	"sort"

	"cflow/internal/arch/amd64"
	"cflow/internal/arch/arm64"
	"cflow/internal/arch/avr"
	"cflow/internal/arch/mos"
	"cflow/internal/disasm"
	"cflow/internal/function"
)

var ErrUnknownArchitecture = errors.New("arch: unknown architecture")

// DisassembleFunc decodes the function reachable from start, extending
// cont when it is not nil.
type DisassembleFunc func(cont *function.Function, src disasm.Source, start uint64, region string) (*function.Function, []function.Diagnostic)

// Architecture describes one plugin.
type Architecture struct {
	Name        string
	TokenBits   int
	Description string
	Disassemble DisassembleFunc
}

func bind[T disasm.Token, C any](dec *disasm.Decoder[T, C], initial C) DisassembleFunc {
	return func(cont *function.Function, src disasm.Source, start uint64, region string) (*function.Function, []function.Diagnostic) {
		return function.Disassemble(cont, dec, initial, src, start, region)
	}
}

// AVR returns the AVR plugin for mcu, for devices without a preset.
func AVR(mcu avr.Mcu) Architecture {
	return Architecture{
		Name:        mcu.Name,
		TokenBits:   16,
		Description: fmt.Sprintf("8-bit AVR with a %d-bit program counter", mcu.PCBits),
		Disassemble: bind(avr.Decoder(), mcu),
	}
}

var registry = map[string]func() Architecture{
	"amd64": func() Architecture {
		return Architecture{Name: "amd64", TokenBits: 8, Description: "x86-64 integer subset", Disassemble: bind(amd64.Decoder(), amd64.Long())}
	},
	"arm64": func() Architecture {
		return Architecture{Name: "arm64", TokenBits: 32, Description: "AArch64", Disassemble: bind(arm64.Decoder(), arm64.Config{})}
	},
	"mos6502": func() Architecture {
		return Architecture{Name: "mos6502", TokenBits: 8, Description: "MOS 6502 documented opcodes", Disassemble: bind(mos.Decoder(), mos.Mos6502())}
	},
	"avr":       func() Architecture { a := AVR(avr.ATmega103()); a.Name = "avr"; return a },
	"atmega8":   func() Architecture { return AVR(avr.ATmega8()) },
	"atmega88":  func() Architecture { return AVR(avr.ATmega88()) },
	"atmega103": func() Architecture { return AVR(avr.ATmega103()) },
}

// Lookup returns the architecture registered under name.
func Lookup(name string) (Architecture, error) {
	mk, ok := registry[name]
	if !ok {
		return Architecture{}, fmt.Errorf("%w: %q", ErrUnknownArchitecture, name)
	}
	return mk(), nil
}

// Names lists the registered architectures in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
