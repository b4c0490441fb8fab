package report

import (
	"fmt"
	"io"
	"strings"

	"cflow/internal/cflow/styles"
)

// MarkdownText is the markdown summary rendered by Markdown.
func MarkdownText(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", res.Source)
	fmt.Fprintf(&b, "Architecture `%s`, %d functions, %d diagnostics.\n\n", res.Arch, len(res.Functions), len(res.Diagnostics))

	b.WriteString("| function | entry | blocks | edges | calls |\n|---|---|---|---|---|\n")
	for _, fn := range res.Functions {
		entry := "-"
		if bb, ok := fn.EntryPoint(); ok {
			entry = fmt.Sprintf("`%#x`", bb.Area.Start)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
			fn.Name, entry, len(fn.BasicBlocks()), fn.CFG.NumEdges(), len(fn.CollectCalls()))
	}

	for _, fn := range res.Functions {
		calls := fn.CollectCalls()
		if len(calls) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s calls\n\n", fn.Name)
		for _, c := range calls {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
	}

	if len(res.Diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		for _, d := range res.Diagnostics {
			fmt.Fprintf(&b, "- %s: %s\n", d.Kind, d)
		}
	}
	return b.String()
}

// Markdown renders the summary for a terminal, or writes the raw markdown
// when colors are off.
func Markdown(w io.Writer, res Result, o Options) error {
	text := MarkdownText(res)
	if !o.Color {
		_, err := io.WriteString(w, text)
		return err
	}
	width := o.Width
	if width <= 0 {
		width = 100
	}
	r, err := styles.MarkdownRenderer(width)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(text)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
