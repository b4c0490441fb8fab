// Package colorize highlights listing lines for terminal output.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Enabled reports whether colors are on. Setting CFLOW_NO_COLOR turns
// them off.
func Enabled() bool {
	return os.Getenv("CFLOW_NO_COLOR") == ""
}

func assemblyLexer() chroma.Lexer {
	for _, name := range []string{"nasm", "gas", "armasm"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func listingStyle() *chroma.Style {
	for _, name := range []string{"cflow-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Assembly highlights a block of assembly text. The input is returned
// unchanged when colors are off or no lexer is available.
func Assembly(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := assemblyLexer()
	if lexer == nil {
		return code, nil
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, listingStyle(), it); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// Line colorizes one listing line of the form "<hex address>  <mnemonic>".
// The address is dimmed and the rest goes through the assembly lexer.
func Line(line string) string {
	if !Enabled() {
		return line
	}
	if strings.HasPrefix(strings.TrimSpace(line), ";") {
		return fmt.Sprintf("\033[38;2;235;194;237m%s\033[0m", line)
	}
	addr, rest, ok := strings.Cut(line, " ")
	if !ok || !isHex(addr) {
		return full(line)
	}
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m %s", addr, full(rest))
}

func full(line string) string {
	out, err := Assembly(line)
	if err != nil {
		return line
	}
	return strings.TrimSuffix(out, "\n")
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}

// Strip removes ANSI escape sequences.
func Strip(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
