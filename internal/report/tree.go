package report

import (
	"fmt"

	"github.com/xlab/treeprint"

	"cflow/internal/function"
)

// Tree renders the blocks reachable from the entry in reverse post order,
// each with its mnemonics and outgoing edges as leaves.
func Tree(fn *function.Function) string {
	tree := treeprint.NewWithRoot(fn.Name)
	order := fn.Postorder()
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		t := fn.CFG.Vertex(v)
		bb, ok := t.Block()
		if !ok {
			tree.AddNode(label(t) + " (unresolved)")
			continue
		}
		branch := tree.AddMetaBranch(fmt.Sprintf("%d bytes", bb.Area.Len()), label(t))
		for _, m := range bb.Mnemonics {
			branch.AddNode(m.String())
		}
		for _, e := range fn.CFG.Out(v) {
			branch.AddMetaNode(e.Guard.String(), "-> "+label(fn.CFG.Vertex(e.To)))
		}
	}
	return tree.String()
}
