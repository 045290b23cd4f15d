package configtree

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates node names in a path.
const PathSeparator = "/"

var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrNotFound      = errors.New("node not found")
	ErrInvalidNode   = errors.New("invalid node")
)

// Tree is an ordered tree of configuration nodes owned by a session. It is not
// safe for concurrent mutation; readers such as the combination generator must
// not run while the tree is edited.
type Tree struct {
	root *Node
}

// New creates a tree with an empty root.
func New(rootName string) *Tree {
	return &Tree{root: newNode(rootName, KindRoot)}
}

func (t *Tree) Root() *Node { return t.root }

// Find resolves a slash separated path below the root. The empty path and "/"
// resolve to the root itself.
func (t *Tree) Find(path string) (*Node, error) {
	path = strings.Trim(path, PathSeparator)
	if path == "" {
		return t.root, nil
	}
	cur := t.root
	for _, name := range strings.Split(path, PathSeparator) {
		next, ok := cur.Child(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

// AddChild attaches a detached node (and its subtree) below parentPath.
// The tree is left untouched when an error is returned.
func (t *Tree) AddChild(parentPath string, node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if err := validateName(node.name); err != nil {
		return err
	}
	if node.kind == KindRoot {
		return fmt.Errorf("%w: a root node cannot be a child", ErrInvalidNode)
	}
	if err := validateText("value", node.value); err != nil {
		return err
	}
	if node.parent != nil {
		return fmt.Errorf("%w: node %q already belongs to %q", ErrInvalidNode, node.name, node.parent.Path())
	}
	parent, err := t.Find(parentPath)
	if err != nil {
		return err
	}
	if parent.kind == KindKeyValue {
		return fmt.Errorf("%w: key-value node %q cannot have children", ErrInvalidNode, parent.Path())
	}
	if _, exists := parent.Child(node.name); exists {
		return fmt.Errorf("%w: %q already has a child named %q", ErrDuplicateName, parent.Path(), node.name)
	}
	node.parent = parent
	parent.children.Put(node.name, node)
	return nil
}

// RemoveChild removes the node at path together with its subtree.
func (t *Tree) RemoveChild(path string) error {
	node, err := t.Find(path)
	if err != nil {
		return err
	}
	if node == t.root {
		return fmt.Errorf("%w: the root cannot be removed", ErrInvalidNode)
	}
	node.parent.children.Remove(node.name)
	node.detach()
	return nil
}

// GetChildrenByType returns the direct children of the node at path that
// match kind, in insertion order.
func (t *Tree) GetChildrenByType(path string, kind NodeKind) ([]*Node, error) {
	node, err := t.Find(path)
	if err != nil {
		return nil, err
	}
	return node.ChildrenByKind(kind), nil
}

// SetSelected sets the enabled flag of a KeyValue leaf. It is a no-op for
// other node kinds so bulk toggles over mixed paths stay simple.
func (t *Tree) SetSelected(path string, selected bool) error {
	node, err := t.Find(path)
	if err != nil {
		return err
	}
	if node.kind == KindKeyValue {
		node.selected = selected
	}
	return nil
}

// ToggleSelection flips the enabled flag of a KeyValue leaf.
func (t *Tree) ToggleSelection(path string) error {
	node, err := t.Find(path)
	if err != nil {
		return err
	}
	return t.SetSelected(path, !node.selected)
}

// SetValue changes the flag value of a KeyValue leaf.
func (t *Tree) SetValue(path, value string) error {
	node, err := t.Find(path)
	if err != nil {
		return err
	}
	if node.kind != KindKeyValue {
		return fmt.Errorf("%w: %q is a %s node", ErrInvalidNode, path, node.kind)
	}
	if err := validateText("value", value); err != nil {
		return err
	}
	node.value = value
	return nil
}

// SkipChildren is returned by a WalkFunc to prune the current subtree.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every node during Walk.
type WalkFunc func(node *Node, depth int) error

// Walk visits the tree depth-first, pre-order, starting with the root.
func (t *Tree) Walk(fn WalkFunc) error {
	return walk(t.root, 0, fn)
}

func walk(n *Node, depth int, fn WalkFunc) error {
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.Children() {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// OptionGroups returns, in pre-order, every category that has at least one
// KeyValue child.
func (t *Tree) OptionGroups() []*Node {
	var groups []*Node
	_ = t.Walk(func(n *Node, _ int) error {
		if n.kind == KindCategory && len(n.ChildrenByKind(KindKeyValue)) > 0 {
			groups = append(groups, n)
		}
		return nil
	})
	return groups
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{root: t.root.clone()}
}

// Equal reports whether both trees are isomorphic: same names, kinds, values,
// selection flags and child order at every level.
func Equal(a, b *Tree) bool {
	if a == nil || b == nil {
		return a == b
	}
	return nodesEqual(a.root, b.root)
}

func nodesEqual(a, b *Node) bool {
	if a.name != b.name || a.kind != b.kind || a.value != b.value || a.selected != b.selected {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !nodesEqual(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
