package configtree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the on-disk representation of a tree.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension, defaulting to XML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatXML
	}
}

// record is the format-neutral shape of one serialized node.
type record struct {
	XMLName  xml.Name `xml:"node" yaml:"-"`
	Name     string   `xml:"name,attr" yaml:"name"`
	Type     string   `xml:"type,attr" yaml:"type"`
	Value    *string  `xml:"value,attr,omitempty" yaml:"value,omitempty"`
	Selected *bool    `xml:"selected,attr,omitempty" yaml:"selected,omitempty"`
	Children []record `xml:"node" yaml:"children,omitempty"`
}

// Load reads a tree from path.
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config tree %s: %w", path, err)
	}
	defer f.Close()

	tree, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load config tree %s: %w", path, err)
	}
	return tree, nil
}

// Save writes the tree to path, replacing any existing file.
func Save(path string, tree *Tree) error {
	var buf bytes.Buffer
	if err := Encode(&buf, tree, FormatFromPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config tree %s: %w", path, err)
	}
	return nil
}

// Encode serializes the tree in the given format.
func Encode(w io.Writer, tree *Tree, format Format) error {
	rec := toRecord(tree.root)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatXML:
		if err := checkRecord(rec); err != nil {
			return err
		}
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode xml: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	default:
		return fmt.Errorf("unsupported config tree format %q", format)
	}
}

// Decode parses a tree, enforcing the same invariants as AddChild.
func Decode(r io.Reader, format Format) (*Tree, error) {
	var rec record
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatXML:
		if err := xml.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode xml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config tree format %q", format)
	}
	return fromRecord(rec)
}

func toRecord(n *Node) record {
	rec := record{Name: n.name, Type: n.kind.String()}
	if n.kind == KindKeyValue {
		value := n.value
		selected := n.selected
		rec.Value = &value
		rec.Selected = &selected
	}
	for _, c := range n.Children() {
		rec.Children = append(rec.Children, toRecord(c))
	}
	return rec
}

// checkRecord catches text that encoding/xml would silently replace, such as a
// root name given to New.
func checkRecord(rec record) error {
	if err := validateText("name", rec.Name); err != nil {
		return err
	}
	if rec.Value != nil {
		if err := validateText("value", *rec.Value); err != nil {
			return err
		}
	}
	for _, c := range rec.Children {
		if err := checkRecord(c); err != nil {
			return err
		}
	}
	return nil
}

func fromRecord(rec record) (*Tree, error) {
	kind, err := ParseNodeKind(rec.Type)
	if err != nil {
		return nil, err
	}
	if kind != KindRoot {
		return nil, fmt.Errorf("%w: top-level node %q has type %s, want root", ErrInvalidNode, rec.Name, rec.Type)
	}
	if rec.Value != nil || rec.Selected != nil {
		return nil, fmt.Errorf("%w: root %q cannot carry a value", ErrInvalidNode, rec.Name)
	}
	if err := validateText("name", rec.Name); err != nil {
		return nil, err
	}
	tree := New(rec.Name)
	for _, child := range rec.Children {
		if err := addRecord(tree, "", child); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func addRecord(tree *Tree, parentPath string, rec record) error {
	kind, err := ParseNodeKind(rec.Type)
	if err != nil {
		return err
	}
	var node *Node
	switch kind {
	case KindRoot:
		return fmt.Errorf("%w: nested root %q below %q", ErrInvalidNode, rec.Name, parentPath)
	case KindCategory:
		if rec.Value != nil || rec.Selected != nil {
			return fmt.Errorf("%w: category %q cannot carry a value", ErrInvalidNode, rec.Name)
		}
		node = NewCategory(rec.Name)
	case KindKeyValue:
		if len(rec.Children) > 0 {
			return fmt.Errorf("%w: key-value %q cannot have children", ErrInvalidNode, rec.Name)
		}
		var value string
		if rec.Value != nil {
			value = *rec.Value
		}
		node = NewKeyValue(rec.Name, value, rec.Selected != nil && *rec.Selected)
	}
	if err := tree.AddChild(parentPath, node); err != nil {
		return err
	}
	path := rec.Name
	if parentPath != "" {
		path = parentPath + PathSeparator + rec.Name
	}
	for _, child := range rec.Children {
		if err := addRecord(tree, path, child); err != nil {
			return err
		}
	}
	return nil
}
