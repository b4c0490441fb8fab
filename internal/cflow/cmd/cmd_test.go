package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cflow/internal/arch"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CFLOW_NO_COLOR", "1")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// two mos functions: 0 calls 6, 6 returns
var mosProgram = []byte{
	0x20, 0x06, 0x00, // 0: jsr 6
	0x4c, 0x00, 0x00, // 3: jmp 0
	0xe8, // 6: inx
	0x60, // 7: rts
}

func TestDisasmListing(t *testing.T) {
	path := writeFile(t, "prog.bin", mosProgram)
	out, err := execute(t, "disasm", path, "--arch", "mos6502", "--entry", "0", "--entry", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "func_0  ; ")
	assert.Contains(t, out, "func_6  ; ")
	assert.Contains(t, out, "00000000  jsr 0x6")
	assert.Contains(t, out, "00000007  rts")
}

func TestDisasmExtendsFunction(t *testing.T) {
	path := writeFile(t, "prog.bin", []byte{0xe8, 0xe8, 0x60})
	out, err := execute(t, "run", path, "--arch", "mos6502", "-e", "0", "-e", "1", "--json")
	require.NoError(t, err)

	var s Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.Len(t, s.Functions, 1)
	assert.Equal(t, "func_0", s.Functions[0].Name)
	assert.Equal(t, "0x0", s.Functions[0].Entry)
	assert.Equal(t, 2, s.Functions[0].Blocks)
	assert.Equal(t, 1, s.Functions[0].Edges)
}

func TestRunSummary(t *testing.T) {
	path := writeFile(t, "prog.bin", mosProgram)
	out, err := execute(t, "run", path, "--arch", "mos6502")
	require.NoError(t, err)
	assert.Contains(t, out, "(raw, mos6502)")
	assert.Contains(t, out, "sha256 ")
	assert.Contains(t, out, "func_0")
	assert.Contains(t, out, "0 diagnostics")
}

func TestPRG(t *testing.T) {
	path := writeFile(t, "game.prg", []byte{0x00, 0xc0, 0xa9, 0x01, 0x60})
	out, err := execute(t, "disasm", path, "--prg", "--format", "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "func_c000")
	assert.Contains(t, out, "lda #0x1")
}

func TestConfigFile(t *testing.T) {
	bin := writeFile(t, "prog.bin", mosProgram)
	cfg := writeFile(t, "cflow.yaml", []byte("arch: mos6502\nentries: [\"6\"]\nformat: dot\n"))

	out, err := execute(t, "--config", cfg, "disasm", bin)
	require.NoError(t, err)
	assert.Contains(t, out, `digraph "func_6"`)

	out, err = execute(t, "--config", cfg, "disasm", bin, "--format", "listing")
	require.NoError(t, err)
	assert.Contains(t, out, "func_6  ; ")
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, "c.yaml", []byte("arch: atmega8\nbase: 0x100\npcBits: 13\ncolor: never\n"))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, CflowConfig{Arch: "atmega8", Base: 0x100, PCBits: 13, Color: "never"}, cfg)
	})
	t.Run("empty", func(t *testing.T) {
		cfg, err := LoadConfig(writeFile(t, "c.yaml", nil))
		require.NoError(t, err)
		assert.Equal(t, CflowConfig{}, cfg)
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfig(writeFile(t, "c.yaml", []byte("architecture: avr\n")))
		assert.Error(t, err)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestErrors(t *testing.T) {
	bin := writeFile(t, "prog.bin", mosProgram)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown arch", []string{"disasm", bin, "--arch", "z80"}, "unknown architecture"},
		{"no arch", []string{"disasm", bin}, "use --arch"},
		{"bad entry", []string{"disasm", bin, "--arch", "avr", "--entry", "main"}, "neither an address"},
		{"bad format", []string{"disasm", bin, "--arch", "avr", "--format", "svg"}, "unknown format"},
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "none"), "--arch", "avr"}, "read "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := architecture("z80", 0)
	assert.ErrorIs(t, err, arch.ErrUnknownArchitecture)
}

func TestSchema(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, out, "pcBits")
	assert.Contains(t, out, "mos6502")
}
