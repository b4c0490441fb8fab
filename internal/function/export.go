package function

import (
	"encoding/json"
	"fmt"
	"strings"

	"cflow/internal/il"
)

type jsonMnemonic struct {
	Start  uint64   `json:"start"`
	End    uint64   `json:"end"`
	Opcode string   `json:"opcode"`
	Text   string   `json:"text"`
	Lowers []string `json:"statements,omitempty"`
}

type jsonVertex struct {
	ID        int             `json:"id"`
	Kind      string          `json:"kind"`
	Start     *uint64         `json:"start,omitempty"`
	End       *uint64         `json:"end,omitempty"`
	Mnemonics []jsonMnemonic  `json:"mnemonics,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

type jsonEdge struct {
	From  int      `json:"from"`
	To    int      `json:"to"`
	Guard il.Guard `json:"guard"`
}

type jsonFunction struct {
	UUID     string       `json:"uuid"`
	Name     string       `json:"name"`
	Region   string       `json:"region"`
	Entry    *int         `json:"entry"`
	Vertices []jsonVertex `json:"vertices"`
	Edges    []jsonEdge   `json:"edges"`
}

// MarshalJSON exports the function identity and graph.
func (f *Function) MarshalJSON() ([]byte, error) {
	out := jsonFunction{
		UUID:     f.UUID.String(),
		Name:     f.Name,
		Region:   f.Region,
		Vertices: []jsonVertex{},
		Edges:    []jsonEdge{},
	}
	if v, ok := f.Entry(); ok {
		id := int(v)
		out.Entry = &id
	}
	for _, v := range f.CFG.Vertices() {
		t := f.CFG.Vertex(v)
		jv := jsonVertex{ID: int(v)}
		if bb, ok := t.Block(); ok {
			start, end := bb.Area.Start, bb.Area.End
			jv.Kind, jv.Start, jv.End = "resolved", &start, &end
			for _, m := range bb.Mnemonics {
				jm := jsonMnemonic{Start: m.Area.Start, End: m.Area.End, Opcode: m.Opcode, Text: m.String()}
				for _, s := range m.Instructions {
					jm.Lowers = append(jm.Lowers, s.String())
				}
				jv.Mnemonics = append(jv.Mnemonics, jm)
			}
		} else {
			val, _ := t.Value()
			raw, err := il.MarshalValue(val)
			if err != nil {
				return nil, fmt.Errorf("vertex %d: %w", v, err)
			}
			jv.Kind, jv.Value = "unresolved", raw
		}
		out.Vertices = append(out.Vertices, jv)
	}
	for _, e := range f.CFG.Edges() {
		out.Edges = append(out.Edges, jsonEdge{From: int(e.From), To: int(e.To), Guard: e.Guard})
	}
	return json.Marshal(out)
}

// Dot renders the graph in Graphviz format.
func (f *Function) Dot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", f.Name)
	b.WriteString("\tnode [shape=box fontname=monospace];\n")
	entry, hasEntry := f.Entry()
	for _, v := range f.CFG.Vertices() {
		t := f.CFG.Vertex(v)
		if bb, ok := t.Block(); ok {
			var label strings.Builder
			for _, m := range bb.Mnemonics {
				line := fmt.Sprintf("%08x  %s", m.Area.Start, m)
				label.WriteString(strings.ReplaceAll(line, `"`, `\"`))
				label.WriteString(`\l`)
			}
			attrs := ""
			if hasEntry && v == entry {
				attrs = " penwidth=2"
			}
			fmt.Fprintf(&b, "\tv%d [label=\"%s\"%s];\n", v, label.String(), attrs)
			continue
		}
		val, _ := t.Value()
		fmt.Fprintf(&b, "\tv%d [label=%q shape=ellipse style=dashed];\n", v, val.String())
	}
	for _, e := range f.CFG.Edges() {
		if e.Guard.IsAlways() {
			fmt.Fprintf(&b, "\tv%d -> v%d;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&b, "\tv%d -> v%d [label=%q];\n", e.From, e.To, e.Guard.String())
	}
	b.WriteString("}\n")
	return b.String()
}
