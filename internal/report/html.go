package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"cflow/internal/function"
)

// HTML writes a page with one force directed graph per function.
func HTML(w io.Writer, fns ...*function.Function) error {
	page := components.NewPage()
	page.PageTitle = "cflow"
	for _, fn := range fns {
		page.AddCharts(graph(fn))
	}
	return page.Render(w)
}

func graph(fn *function.Function) *charts.Graph {
	g := charts.NewGraph()
	g.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fn.Name,
			Subtitle: fmt.Sprintf("%d blocks, %d edges", fn.CFG.NumVertices(), fn.CFG.NumEdges()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	nodes, links := graphData(fn)
	g.AddSeries(fn.Name, nodes, links).SetSeriesOptions(
		charts.WithGraphChartOpts(opts.GraphChart{
			Force:  &opts.GraphForce{Repulsion: 800, Gravity: 0.2},
			Layout: "force",
			Roam:   opts.Bool(true),
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right", Formatter: "{b}"}),
	)
	return g
}

// graphData names nodes by vertex so two unresolved targets with the same
// value stay distinct.
func graphData(fn *function.Function) ([]opts.GraphNode, []opts.GraphLink) {
	entry, hasEntry := fn.Entry()
	name := func(v function.VertexID) string {
		return fmt.Sprintf("%s #%d", label(fn.CFG.Vertex(v)), v)
	}

	var nodes []opts.GraphNode
	for _, v := range fn.CFG.Vertices() {
		t := fn.CFG.Vertex(v)
		color, size, tip := "#7C9C9D", float32(0), "unresolved"
		if bb, ok := t.Block(); ok {
			color, size = "#569CD6", float32(bb.Area.Len())
			lines := make([]string, 0, len(bb.Mnemonics))
			for _, m := range bb.Mnemonics {
				lines = append(lines, fmt.Sprintf("%x  %s", m.Area.Start, m))
			}
			tip = strings.Join(lines, "<br>")
		}
		if hasEntry && v == entry {
			color = "#FFD700"
		}
		nodes = append(nodes, opts.GraphNode{
			Name:  name(v),
			Value: size,
			Tooltip: &opts.Tooltip{
				Show:      opts.Bool(true),
				Formatter: types.FuncStr(tip),
			},
			ItemStyle: &opts.ItemStyle{Color: color},
		})
	}
	var links []opts.GraphLink
	for _, e := range fn.CFG.Edges() {
		links = append(links, opts.GraphLink{Source: name(e.From), Target: name(e.To)})
	}
	return nodes, links
}
