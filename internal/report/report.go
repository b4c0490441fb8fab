// Package report renders recovered functions: assembly listings, Graphviz,
// block trees, interactive HTML graphs, JSON and markdown summaries.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cflow/internal/function"
	"cflow/internal/il"
)

var ErrUnknownFormat = errors.New("report: unknown format")

// Result is everything one disassembly run produced.
type Result struct {
	Arch        string
	Source      string
	Functions   []*function.Function
	Diagnostics []function.Diagnostic
}

// Options tune the terminal renderers.
type Options struct {
	Color bool
	Width int
}

var formats = []string{"listing", "dot", "tree", "html", "json", "report"}

// Formats lists the accepted format names.
func Formats() []string {
	return append([]string(nil), formats...)
}

// Render writes res to w in the named format.
func Render(w io.Writer, format string, res Result, o Options) error {
	switch format {
	case "listing", "":
		for i, fn := range res.Functions {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := Listing(w, fn, o.Color); err != nil {
				return err
			}
		}
		return nil
	case "dot":
		for _, fn := range res.Functions {
			if _, err := io.WriteString(w, fn.Dot()); err != nil {
				return err
			}
		}
		return nil
	case "tree":
		for _, fn := range res.Functions {
			if _, err := io.WriteString(w, Tree(fn)); err != nil {
				return err
			}
		}
		return nil
	case "html":
		return HTML(w, res.Functions...)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Functions)
	case "report":
		return Markdown(w, res, o)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// label names a vertex: loc_<start> for blocks, the value otherwise.
func label(t function.ControlFlowTarget) string {
	if bb, ok := t.Block(); ok {
		return fmt.Sprintf("loc_%x", bb.Area.Start)
	}
	v, _ := t.Value()
	if c, ok := il.ConstantValue(v); ok {
		return fmt.Sprintf("%#x", c)
	}
	return v.String()
}
