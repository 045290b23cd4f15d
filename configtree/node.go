package configtree

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// NodeKind tags the variant of a Node.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindCategory
	KindKeyValue
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCategory:
		return "category"
	case KindKeyValue:
		return "keyvalue"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// ParseNodeKind is the inverse of NodeKind.String
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "root":
		return KindRoot, nil
	case "category":
		return KindCategory, nil
	case "keyvalue":
		return KindKeyValue, nil
	default:
		return 0, fmt.Errorf("%w: unknown node type %q", ErrInvalidNode, s)
	}
}

// Node is one element of a configuration tree. Children keep insertion order
// and are unique by name. Only KeyValue nodes carry a value and a selection flag.
type Node struct {
	name     string
	kind     NodeKind
	value    string
	selected bool

	parent   *Node
	children *linkedhashmap.Map // name -> *Node
}

func newNode(name string, kind NodeKind) *Node {
	return &Node{name: name, kind: kind, children: linkedhashmap.New()}
}

// NewCategory creates a detached category node.
func NewCategory(name string) *Node {
	return newNode(name, KindCategory)
}

// NewKeyValue creates a detached leaf holding a flag value.
func NewKeyValue(name, value string, selected bool) *Node {
	n := newNode(name, KindKeyValue)
	n.value = value
	n.selected = selected
	return n
}

func (n *Node) Name() string   { return n.name }
func (n *Node) Kind() NodeKind { return n.kind }
func (n *Node) Parent() *Node  { return n.parent }

// Value is empty for anything but KeyValue nodes.
func (n *Node) Value() string { return n.value }

// Selected is always false for anything but KeyValue nodes.
func (n *Node) Selected() bool { return n.selected }

// Children returns the direct children in insertion order.
func (n *Node) Children() []*Node {
	values := n.children.Values()
	out := make([]*Node, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*Node))
	}
	return out
}

// Child looks up a direct child by name
func (n *Node) Child(name string) (*Node, bool) {
	v, ok := n.children.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Node), true
}

// ChildrenByKind returns the direct children of the given kind, preserving
// insertion order.
func (n *Node) ChildrenByKind(kind NodeKind) []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Len is the number of direct children
func (n *Node) Len() int { return n.children.Size() }

// Path is the slash separated list of names below the root. The root's path
// is the empty string.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.kind != KindRoot; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, PathSeparator)
}

// clone deep-copies the subtree, detached from any parent.
func (n *Node) clone() *Node {
	cp := newNode(n.name, n.kind)
	cp.value = n.value
	cp.selected = n.selected
	for _, c := range n.Children() {
		cc := c.clone()
		cc.parent = cp
		cp.children.Put(cc.name, cc)
	}
	return cp
}

// detach drops all references below n so removed subtrees are not reachable
// through stale pointers held by callers.
func (n *Node) detach() {
	for _, c := range n.Children() {
		c.detach()
	}
	n.children.Clear()
	n.parent = nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidNode)
	}
	if strings.Contains(name, PathSeparator) {
		return fmt.Errorf("%w: name %q contains %q", ErrInvalidNode, name, PathSeparator)
	}
	return validateText("name", name)
}

// validateText rejects text that the XML store cannot hold unchanged: invalid
// UTF-8 and characters outside the XML 1.0 Char production.
func validateText(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s %q is not valid UTF-8", ErrInvalidNode, field, s)
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: %s %q contains unsupported character %U", ErrInvalidNode, field, s, r)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// String renders the selection state of a leaf for logs
func (n *Node) String() string {
	switch n.kind {
	case KindKeyValue:
		return fmt.Sprintf("%s=%s [%s]", n.name, n.value, strconv.FormatBool(n.selected))
	default:
		return fmt.Sprintf("%s (%s)", n.name, n.kind)
	}
}
