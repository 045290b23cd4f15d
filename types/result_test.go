package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteStatusDerivedFromChildren(t *testing.T) {
	tests := []struct {
		name     string
		statuses []TestStatus
		expected TestStatus
	}{
		{name: "empty suite is skipped", statuses: nil, expected: TestStatusSkip},
		{name: "all passed", statuses: []TestStatus{TestStatusPass, TestStatusPass}, expected: TestStatusPass},
		{name: "one failure fails the suite", statuses: []TestStatus{TestStatusPass, TestStatusFail}, expected: TestStatusFail},
		{name: "error without failure", statuses: []TestStatus{TestStatusPass, TestStatusError}, expected: TestStatusError},
		{name: "failure wins over error", statuses: []TestStatus{TestStatusError, TestStatusFail}, expected: TestStatusFail},
		{name: "only skips", statuses: []TestStatus{TestStatusSkip, TestStatusSkip}, expected: TestStatusSkip},
		{name: "skip and pass", statuses: []TestStatus{TestStatusSkip, TestStatusPass}, expected: TestStatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite := NewSuite("suite")
			for i, st := range tt.statuses {
				require.NoError(t, suite.Append(NewCase(string(rune('a'+i)), st, "")))
			}
			assert.Equal(t, tt.expected, suite.Status())
		})
	}
}

func TestNestedFailurePropagates(t *testing.T) {
	root := NewSuite("root")
	inner := NewSuite("inner")
	require.NoError(t, inner.Append(NewCase("deep", TestStatusFail, "boom")))
	require.NoError(t, root.Append(NewCase("top", TestStatusPass, "")))
	require.NoError(t, root.Append(inner))

	tree := NewResultTree("cfg", root)
	assert.Equal(t, TestStatusFail, tree.Status())
	assert.Equal(t, TestStatusFail, inner.Status())
}

func TestResultTreeIsSealed(t *testing.T) {
	root := NewSuite("root")
	inner := NewSuite("inner")
	require.NoError(t, root.Append(inner))
	NewResultTree("cfg", root)

	assert.ErrorIs(t, root.Append(NewCase("late", TestStatusPass, "")), ErrSealed)
	assert.ErrorIs(t, inner.Append(NewCase("late", TestStatusPass, "")), ErrSealed)
}

func TestChildrenReturnsCopy(t *testing.T) {
	root := NewSuite("root")
	require.NoError(t, root.Append(NewCase("a", TestStatusPass, "")))
	children := root.Children()
	children[0] = NewCase("mutated", TestStatusFail, "")
	assert.Equal(t, "a", root.Children()[0].Name())
}

func TestWalkCasesPathsAndOrder(t *testing.T) {
	root := NewSuite("Master")
	alpha := NewSuite("alpha")
	beta := NewSuite("beta")
	require.NoError(t, beta.Append(NewCase("b1", TestStatusPass, "")))
	require.NoError(t, alpha.Append(NewCase("a1", TestStatusFail, "")))
	require.NoError(t, alpha.Append(beta))
	require.NoError(t, root.Append(NewCase("top", TestStatusPass, "")))
	require.NoError(t, root.Append(alpha))
	tree := NewResultTree("cfg", root)

	var ids []string
	tree.WalkCases(func(path []string, c *Case) {
		ids = append(ids, CaseID(path, c.Name()))
	})
	assert.Equal(t, []string{"top", "alpha/a1", "alpha/beta/b1"}, ids)

	counts := tree.Counts()
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.Passed)
	assert.Equal(t, 1, counts.Failed)
}

func TestNewErrorTree(t *testing.T) {
	tree := NewErrorTree("cfg", "timeout", "process exceeded 1s")
	require.Len(t, tree.Root().Children(), 1)
	c, ok := tree.Root().Children()[0].(*Case)
	require.True(t, ok)
	assert.Equal(t, "timeout", c.Name())
	assert.Equal(t, TestStatusError, c.Status())
	assert.Equal(t, "process exceeded 1s", c.Message())
	assert.Equal(t, TestStatusError, tree.Status())
}

func TestStatusSeverity(t *testing.T) {
	assert.Greater(t, TestStatusError.Severity(), TestStatusFail.Severity())
	assert.Greater(t, TestStatusFail.Severity(), TestStatusPass.Severity())
	assert.Greater(t, TestStatusPass.Severity(), TestStatusSkip.Severity())
	assert.Greater(t, TestStatusSkip.Severity(), TestStatusAbsent.Severity())
	assert.True(t, TestStatusError.IsFailure())
	assert.False(t, TestStatusSkip.IsFailure())
}
