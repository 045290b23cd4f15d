package types

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// DefaultConfigurationName is used for the configuration that has no choices at all.
const DefaultConfigurationName = "default"

// Choice is one resolved (group, value) pair of a TestConfiguration.
type Choice struct {
	Group  string // path of the option group below the root, e.g. "compiler/opt"
	Option string // name of the selected leaf
	Value  string // flag value carried by the leaf
}

// TestConfiguration is one fully-resolved combination of option choices.
// Values are immutable once built by NewTestConfiguration.
type TestConfiguration struct {
	index   int
	choices []Choice
	key     string
	slug    string
}

// NewTestConfiguration builds a configuration from choices ordered by group.
func NewTestConfiguration(index int, choices []Choice) TestConfiguration {
	cp := make([]Choice, len(choices))
	copy(cp, choices)
	key := compositeKey(cp)
	return TestConfiguration{
		index:   index,
		choices: cp,
		key:     key,
		slug:    slugify(key),
	}
}

// Index is the position of the configuration in generation order.
func (c TestConfiguration) Index() int { return c.index }

// Key is the deterministic composite key: "group=value" pairs joined by ';',
// with '\\', '=' and ';' escaped so distinct pair sets never share a key.
func (c TestConfiguration) Key() string { return c.key }

// Name is the human readable identifier used for result trees and reports.
func (c TestConfiguration) Name() string {
	if len(c.choices) == 0 {
		return DefaultConfigurationName
	}
	return c.key
}

// Slug is a filesystem safe version of the key
func (c TestConfiguration) Slug() string { return c.slug }

// Choices returns a copy of the (group, value) pairs in group order.
func (c TestConfiguration) Choices() []Choice {
	cp := make([]Choice, len(c.choices))
	copy(cp, c.choices)
	return cp
}

// IsDefault reports whether the configuration carries no choices.
func (c TestConfiguration) IsDefault() bool { return len(c.choices) == 0 }

// Lookup returns the value chosen for group, if any
func (c TestConfiguration) Lookup(group string) (string, bool) {
	for _, ch := range c.choices {
		if ch.Group == group {
			return ch.Value, true
		}
	}
	return "", false
}

func (c TestConfiguration) String() string {
	return fmt.Sprintf("#%d %s", c.index, c.Name())
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, `;`, `\;`)

func compositeKey(choices []Choice) string {
	parts := make([]string, 0, len(choices))
	for _, ch := range choices {
		parts = append(parts, keyEscaper.Replace(ch.Group)+"="+keyEscaper.Replace(ch.Value))
	}
	return strings.Join(parts, ";")
}

// slugify keeps [A-Za-z0-9._-] and replaces everything else. The FNV suffix
// keeps keys that sanitize to the same text apart.
func slugify(key string) string {
	if key == "" {
		return DefaultConfigurationName
	}
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	slug := b.String()
	if len(slug) > 80 {
		slug = slug[:80]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%s-%08x", slug, h.Sum32())
}
