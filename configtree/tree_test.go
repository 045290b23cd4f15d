package configtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds:
//
//	build
//	├── compiler (opt: O0 selected, O2 selected, O3)
//	├── sanitizer (asan, ubsan selected)
//	└── platform
//	    └── arch (x86 selected)
func sampleTree(t *testing.T) *Tree {
	t.Helper()
	tree := New("build")
	require.NoError(t, tree.AddChild("", NewCategory("compiler")))
	require.NoError(t, tree.AddChild("compiler", NewKeyValue("O0", "-O0", true)))
	require.NoError(t, tree.AddChild("compiler", NewKeyValue("O2", "-O2", true)))
	require.NoError(t, tree.AddChild("compiler", NewKeyValue("O3", "-O3", false)))
	require.NoError(t, tree.AddChild("", NewCategory("sanitizer")))
	require.NoError(t, tree.AddChild("sanitizer", NewKeyValue("asan", "address", false)))
	require.NoError(t, tree.AddChild("sanitizer", NewKeyValue("ubsan", "undefined", true)))
	require.NoError(t, tree.AddChild("", NewCategory("platform")))
	require.NoError(t, tree.AddChild("platform", NewCategory("arch")))
	require.NoError(t, tree.AddChild("platform/arch", NewKeyValue("x86", "x86_64", true)))
	return tree
}

func names(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

func TestAddChildDuplicateName(t *testing.T) {
	tree := sampleTree(t)
	before := tree.Clone()

	err := tree.AddChild("compiler", NewKeyValue("O2", "-O2", false))
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.True(t, Equal(before, tree), "failed edit must not change the tree")
}

func TestAddChildErrors(t *testing.T) {
	tree := sampleTree(t)

	tests := []struct {
		name   string
		parent string
		node   *Node
		err    error
	}{
		{name: "missing parent", parent: "nope", node: NewCategory("x"), err: ErrNotFound},
		{name: "leaf parent", parent: "compiler/O2", node: NewCategory("x"), err: ErrInvalidNode},
		{name: "empty name", parent: "", node: NewCategory(""), err: ErrInvalidNode},
		{name: "separator in name", parent: "", node: NewCategory("a/b"), err: ErrInvalidNode},
		{name: "root as child", parent: "", node: New("other").Root(), err: ErrInvalidNode},
		{name: "nil node", parent: "", node: nil, err: ErrInvalidNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tree.AddChild(tt.parent, tt.node), tt.err)
		})
	}
}

func TestAddChildRejectsAttachedNode(t *testing.T) {
	tree := sampleTree(t)
	node, err := tree.Find("compiler/O2")
	require.NoError(t, err)
	require.ErrorIs(t, tree.AddChild("sanitizer", node), ErrInvalidNode)
}

func TestChildrenKeepInsertionOrder(t *testing.T) {
	tree := New("root")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, tree.AddChild("", NewCategory(name)))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names(tree.Root().Children()))
}

func TestRemoveChild(t *testing.T) {
	tree := sampleTree(t)
	require.NoError(t, tree.RemoveChild("platform"))

	_, err := tree.Find("platform/arch/x86")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"compiler", "sanitizer"}, names(tree.Root().Children()))

	require.ErrorIs(t, tree.RemoveChild("platform"), ErrNotFound)
	require.ErrorIs(t, tree.RemoveChild(""), ErrInvalidNode)

	// A removed name can be reused.
	require.NoError(t, tree.AddChild("", NewCategory("platform")))
	assert.Equal(t, []string{"compiler", "sanitizer", "platform"}, names(tree.Root().Children()))
}

func TestGetChildrenByType(t *testing.T) {
	tree := New("root")
	require.NoError(t, tree.AddChild("", NewCategory("group")))
	require.NoError(t, tree.AddChild("group", NewKeyValue("a", "1", true)))
	require.NoError(t, tree.AddChild("group", NewCategory("nested")))
	require.NoError(t, tree.AddChild("group", NewKeyValue("b", "2", false)))

	leaves, err := tree.GetChildrenByType("group", KindKeyValue)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(leaves))

	cats, err := tree.GetChildrenByType("group", KindCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"nested"}, names(cats))

	_, err = tree.GetChildrenByType("missing", KindCategory)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetSelected(t *testing.T) {
	tree := sampleTree(t)

	require.NoError(t, tree.SetSelected("compiler/O3", true))
	node, _ := tree.Find("compiler/O3")
	assert.True(t, node.Selected())

	require.NoError(t, tree.ToggleSelection("compiler/O3"))
	assert.False(t, node.Selected())

	// Categories ignore selection changes.
	require.NoError(t, tree.SetSelected("compiler", true))
	cat, _ := tree.Find("compiler")
	assert.False(t, cat.Selected())

	require.ErrorIs(t, tree.SetSelected("compiler/O9", true), ErrNotFound)
}

func TestSetValue(t *testing.T) {
	tree := sampleTree(t)
	require.NoError(t, tree.SetValue("compiler/O2", "-O2 -g"))
	node, _ := tree.Find("compiler/O2")
	assert.Equal(t, "-O2 -g", node.Value())
	require.ErrorIs(t, tree.SetValue("compiler", "x"), ErrInvalidNode)
}

func TestWalkIsPreOrder(t *testing.T) {
	tree := sampleTree(t)
	var visited []string
	require.NoError(t, tree.Walk(func(n *Node, depth int) error {
		visited = append(visited, n.Path())
		return nil
	}))
	assert.Equal(t, []string{
		"",
		"compiler", "compiler/O0", "compiler/O2", "compiler/O3",
		"sanitizer", "sanitizer/asan", "sanitizer/ubsan",
		"platform", "platform/arch", "platform/arch/x86",
	}, visited)
}

func TestWalkSkipChildren(t *testing.T) {
	tree := sampleTree(t)
	var visited []string
	require.NoError(t, tree.Walk(func(n *Node, depth int) error {
		visited = append(visited, n.Path())
		if depth == 1 {
			return SkipChildren
		}
		return nil
	}))
	assert.Equal(t, []string{"", "compiler", "sanitizer", "platform"}, visited)
}

func TestOptionGroups(t *testing.T) {
	tree := sampleTree(t)
	groups := tree.OptionGroups()
	paths := make([]string, 0, len(groups))
	for _, g := range groups {
		paths = append(paths, g.Path())
	}
	assert.Equal(t, []string{"compiler", "sanitizer", "platform/arch"}, paths)
}

func TestCloneIsIndependent(t *testing.T) {
	tree := sampleTree(t)
	clone := tree.Clone()
	require.True(t, Equal(tree, clone))

	require.NoError(t, clone.SetSelected("compiler/O3", true))
	assert.False(t, Equal(tree, clone))
}
