package reporting

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/types"
	"github.com/ethereum-optimism/infra/op-matrix/ui"
)

// FormatResultTree renders a result tree with box drawing prefixes. Failure
// messages are shown below their case when showMessages is set.
func FormatResultTree(tree *types.ResultTree, showMessages bool) string {
	var b strings.Builder
	root := tree.Root()
	fmt.Fprintf(&b, "%s [%s] %s\n", tree.Name(), root.Name(), tree.Status().Symbol())
	writeResultChildren(&b, root, 1, nil, showMessages)
	return b.String()
}

func writeResultChildren(b *strings.Builder, s *types.Suite, depth int, parentIsLast []bool, showMessages bool) {
	children := s.Children()
	for i, child := range children {
		isLast := i == len(children)-1
		prefix := ui.BuildTreePrefix(depth, isLast, parentIsLast)
		switch n := child.(type) {
		case *types.Suite:
			fmt.Fprintf(b, "%s%s/ %s\n", prefix, n.Name(), n.Status().Symbol())
			writeResultChildren(b, n, depth+1, append(append([]bool{}, parentIsLast...), isLast), showMessages)
		case *types.Case:
			fmt.Fprintf(b, "%s%s %s\n", prefix, n.Name(), n.Status().Symbol())
			if showMessages && n.Message() != "" && n.Status().IsFailure() {
				indent := ui.BuildTreePrefix(depth+1, true, append(append([]bool{}, parentIsLast...), isLast))
				indent = strings.TrimSuffix(indent, ui.TreeLastBranch) + ui.TreeIndent
				for _, line := range strings.Split(n.Message(), "\n") {
					fmt.Fprintf(b, "%s%s\n", indent, line)
				}
			}
		default:
			panic(fmt.Sprintf("unexpected result node %T", child))
		}
	}
}

// FormatConfigTree renders a configuration tree showing selection state.
func FormatConfigTree(tree *configtree.Tree) string {
	var b strings.Builder
	var lastStack []bool
	_ = tree.Walk(func(n *configtree.Node, depth int) error {
		if depth == 0 {
			fmt.Fprintf(&b, "%s\n", n.Name())
			return nil
		}
		isLast := isLastChild(n)
		if len(lastStack) >= depth {
			lastStack = lastStack[:depth-1]
		}
		prefix := ui.BuildTreePrefix(depth, isLast, lastStack)
		lastStack = append(lastStack, isLast)

		switch n.Kind() {
		case configtree.KindKeyValue:
			mark := "[ ]"
			if n.Selected() {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "%s%s %s = %q\n", prefix, mark, n.Name(), n.Value())
		default:
			fmt.Fprintf(&b, "%s%s/\n", prefix, n.Name())
		}
		return nil
	})
	return b.String()
}

func isLastChild(n *configtree.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	siblings := parent.Children()
	return siblings[len(siblings)-1] == n
}
