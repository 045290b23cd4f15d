// Package combination expands a configuration tree into the concrete test
// configurations that get executed, one per element of the cartesian product
// of the selected options of every option group.
package combination

import (
	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// axis is the selected choice set of one option group.
type axis struct {
	group   string
	choices []types.Choice
}

// Generate returns the configurations for the current state of tree. Groups
// are taken in pre-order; the first group varies slowest. A group with no
// selected leaves is left out of every configuration.
//
// Configurations are identified by their (group, value) pairs, not by the
// leaves that produced them: selected leaves of one group that carry the same
// value count as one choice, credited to the first of them. The result always
// holds at least the default configuration and never contains two
// configurations with the same key.
//
// The tree is snapshotted first, so later edits do not affect the result.
func Generate(tree *configtree.Tree) []types.TestConfiguration {
	if tree == nil {
		return []types.TestConfiguration{types.NewTestConfiguration(0, nil)}
	}
	axes := collectAxes(tree.Clone())

	var out []types.TestConfiguration
	emit := func(choices []types.Choice) {
		out = append(out, types.NewTestConfiguration(len(out), choices))
	}

	current := make([]types.Choice, 0, len(axes))
	var expand func(depth int)
	expand = func(depth int) {
		if depth == len(axes) {
			emit(current)
			return
		}
		for _, ch := range axes[depth].choices {
			current = append(current, ch)
			expand(depth + 1)
			current = current[:len(current)-1]
		}
	}
	expand(0)
	return out
}

// Count returns how many configurations Generate produces, without building
// them.
func Count(tree *configtree.Tree) int {
	if tree == nil {
		return 1
	}
	n := 1
	for _, a := range collectAxes(tree) {
		n *= len(a.choices)
	}
	return n
}

func collectAxes(tree *configtree.Tree) []axis {
	var axes []axis
	for _, group := range tree.OptionGroups() {
		a := axis{group: group.Path()}
		values := make(map[string]struct{})
		for _, leaf := range group.ChildrenByKind(configtree.KindKeyValue) {
			if !leaf.Selected() {
				continue
			}
			if _, dup := values[leaf.Value()]; dup {
				continue
			}
			values[leaf.Value()] = struct{}{}
			a.choices = append(a.choices, types.Choice{
				Group:  a.group,
				Option: leaf.Name(),
				Value:  leaf.Value(),
			})
		}
		if len(a.choices) == 0 {
			continue
		}
		axes = append(axes, a)
	}
	return axes
}
