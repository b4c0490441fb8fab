package colorize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabled(t *testing.T) {
	t.Setenv("CFLOW_NO_COLOR", "1")
	assert.False(t, Enabled())
	assert.Equal(t, "1000  jmp 0x1000", Line("1000  jmp 0x1000"))
	out, err := Assembly("nop")
	require.NoError(t, err)
	assert.Equal(t, "nop", out)
}

func TestLineKeepsText(t *testing.T) {
	t.Setenv("CFLOW_NO_COLOR", "")
	tests := []string{
		"1000  mov eax, 0x1",
		"c000 lda #0x1",
		"; entry",
		"not-an-address jmp",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			out := Line(line)
			assert.Contains(t, out, "\x1b[")
			assert.Equal(t, line, strings.TrimSpace(Strip(out)))
		})
	}
}

func TestStyleRegistered(t *testing.T) {
	assert.Equal(t, "cflow-dark", listingStyle().Name)
	assert.Same(t, ListingDark, listingStyle())
}
