package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cflow/internal/arch/mos"
	"cflow/internal/function"
	"cflow/internal/region"
)

func loop(t *testing.T) Result {
	t.Helper()
	data := []byte{
		0xa2, 0x00, // 0: ldx #0
		0xbd, 0x00, 0x10, // 2: lda 0x1000,x
		0xf0, 0x06, // 5: beq 0xd
		0x20, 0x00, 0x20, // 7: jsr 0x2000
		0xe8,       // a: inx
		0xd0, 0xf5, // b: bne 2
		0x60, // d: rts
	}
	fn, diags := function.Disassemble(nil, mos.Decoder(), mos.Mos6502(), region.New("ram", 0, data), 0, "ram")
	require.Empty(t, diags)
	return Result{
		Arch:        "mos6502",
		Source:      "loop.bin",
		Functions:   []*function.Function{fn},
		Diagnostics: []function.Diagnostic{{Kind: function.MatchFailure, Address: 0x20}},
	}
}

func TestListing(t *testing.T) {
	res := loop(t)
	var buf bytes.Buffer
	require.NoError(t, Listing(&buf, res.Functions[0], false))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "func_0  ; "))
	assert.Contains(t, out, "loc_0:  ; entry\n")
	assert.Contains(t, out, "00000007  jsr 0x2000\n")
	assert.Contains(t, out, "loc_d if Z == 1")
	assert.Contains(t, out, "loc_7 if Z == 0")
	assert.NotContains(t, out, "\x1b[")
}

func TestTree(t *testing.T) {
	out := Tree(loop(t).Functions[0])
	assert.True(t, strings.HasPrefix(out, "func_0\n"))
	for _, want := range []string{"[2 bytes]  loc_0", "ldx #0x0", "-> loc_2", "[true]"} {
		assert.Contains(t, out, want)
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "html", loop(t), Options{}))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "loc_0 #")
}

func TestRenderFormats(t *testing.T) {
	res := loop(t)
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, format, res, Options{}))
			assert.NotEmpty(t, buf.String())
		})
	}

	err := Render(&bytes.Buffer{}, "svg", res, Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "json", loop(t), Options{}))

	var out []struct {
		Name     string            `json:"name"`
		Vertices []json.RawMessage `json:"vertices"`
		Edges    []json.RawMessage `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "func_0", out[0].Name)
	assert.Len(t, out[0].Vertices, 4)
	assert.Len(t, out[0].Edges, 5)
}

func TestMarkdown(t *testing.T) {
	text := MarkdownText(loop(t))
	assert.Contains(t, text, "# loop.bin")
	assert.Contains(t, text, "| func_0 | `0x0` | 4 | 5 | 1 |")
	assert.Contains(t, text, "- `0x2000`")
	assert.Contains(t, text, "- match failure: no instruction matches at 0x20")

	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, loop(t), Options{Color: true, Width: 80}))
	assert.Contains(t, buf.String(), "func_0")
}
