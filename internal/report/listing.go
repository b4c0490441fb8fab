package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"

	"cflow/internal/function"
	"cflow/internal/ui/colorize"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	edgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Listing writes fn as labelled blocks in address order. Each block ends
// with a comment naming its successors.
func Listing(w io.Writer, fn *function.Function, color bool) error {
	style := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  ; %s\n", style(titleStyle, fn.Name), fn.UUID)
	entry, hasEntry := fn.Entry()
	for _, v := range fn.CFG.Vertices() {
		bb, ok := fn.CFG.Vertex(v).Block()
		if !ok {
			continue
		}
		name := label(fn.CFG.Vertex(v)) + ":"
		if hasEntry && v == entry {
			name += "  ; entry"
		}
		b.WriteString(style(labelStyle, name))
		b.WriteByte('\n')
		for _, m := range bb.Mnemonics {
			line := fmt.Sprintf("%08x  %s", m.Area.Start, m)
			if color {
				line = colorize.Line(line)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		var succ []string
		for _, e := range fn.CFG.Out(v) {
			s := label(fn.CFG.Vertex(e.To))
			if !e.Guard.IsAlways() {
				s += " if " + e.Guard.String()
			}
			succ = append(succ, s)
		}
		if len(succ) > 0 {
			b.WriteString(style(edgeStyle, "          ; -> "+strings.Join(succ, ", ")))
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
