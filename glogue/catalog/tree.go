package catalog

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Tree renders the extend DAG below n as a tree. Shared sub-patterns appear
// once per path, so output grows quickly with pattern size.
func Tree(n *Node) string {
	tree := treeprint.NewWithRoot(n.String())
	addInEdges(tree, n)
	return tree.String()
}

func addInEdges(branch treeprint.Tree, n *Node) {
	for _, e := range n.in {
		label := fmt.Sprintf("%s via %s", e.Src, e.Step)
		if len(e.Src.in) == 0 {
			branch.AddNode(label)
			continue
		}
		addInEdges(branch.AddBranch(label), e.Src)
	}
}
