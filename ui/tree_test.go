package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildTreePrefix(t *testing.T) {
	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		expected     string
	}{
		{name: "root", depth: 0, expected: ""},
		{name: "first level", depth: 1, isLast: false, expected: TreeBranch},
		{name: "first level last", depth: 1, isLast: true, expected: TreeLastBranch},
		{name: "second level below open parent", depth: 2, parentIsLast: []bool{false}, expected: TreeContinue + TreeBranch},
		{name: "second level below last parent", depth: 2, isLast: true, parentIsLast: []bool{true}, expected: TreeIndent + TreeLastBranch},
		{name: "missing parent info", depth: 3, parentIsLast: []bool{true}, expected: TreeIndent + TreeContinue + TreeBranch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildTreePrefix(tt.depth, tt.isLast, tt.parentIsLast))
		})
	}
}

func TestBox(t *testing.T) {
	header := BuildBoxHeader("Plan", 20)
	lines := strings.Split(strings.TrimSuffix(header, "\n"), "\n")
	for _, l := range lines {
		assert.Equal(t, 20, utf8.RuneCountInString(l), l)
	}

	line := BuildBoxLine("a very long line that does not fit", 20)
	assert.Equal(t, 20, utf8.RuneCountInString(strings.TrimSuffix(line, "\n")))
	assert.Contains(t, line, "...")

	footer := BuildBoxFooter(20)
	assert.Equal(t, 20, utf8.RuneCountInString(strings.TrimSuffix(footer, "\n")))

	// A short width grows to fit the title.
	wide := BuildBoxHeader("a long title", 4)
	assert.Contains(t, wide, "a long title")
}
