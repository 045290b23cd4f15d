package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSealed is returned when appending to a suite that belongs to a completed tree.
var ErrSealed = errors.New("result tree is sealed")

// ResultNode is either a *Suite or a *Case. Callers narrow it with a type
// switch; there are no other implementations.
type ResultNode interface {
	Name() string
	Status() TestStatus
	resultNode()
}

// Case is a leaf of a result tree.
type Case struct {
	name    string
	status  TestStatus
	message string
}

// NewCase creates a case with the given status and optional message.
func NewCase(name string, status TestStatus, message string) *Case {
	return &Case{name: name, status: status, message: message}
}

func (c *Case) Name() string       { return c.name }
func (c *Case) Status() TestStatus { return c.status }

// Message holds failure detail or a log excerpt, if any.
func (c *Case) Message() string { return c.message }
func (*Case) resultNode()       {}

// Suite groups cases and nested suites in document order. Its status is
// derived from its descendants.
type Suite struct {
	name     string
	children []ResultNode
	sealed   bool
}

// NewSuite creates an empty, unsealed suite.
func NewSuite(name string) *Suite {
	return &Suite{name: name}
}

func (s *Suite) Name() string { return s.name }
func (*Suite) resultNode()    {}

// Append adds a child node. It fails once the suite is part of a ResultTree.
func (s *Suite) Append(child ResultNode) error {
	if s.sealed {
		return ErrSealed
	}
	if child == nil {
		return errors.New("nil result node")
	}
	s.children = append(s.children, child)
	return nil
}

// Children returns a copy of the child list in document order.
func (s *Suite) Children() []ResultNode {
	cp := make([]ResultNode, len(s.children))
	copy(cp, s.children)
	return cp
}

// Status is fail if any descendant case failed, error if any errored and
// none failed, skip if the suite is empty or only skipped cases exist, and
// pass otherwise.
func (s *Suite) Status() TestStatus {
	allSkipped := true
	anyFailed := false
	anyErrored := false
	for _, child := range s.children {
		switch st := child.Status(); st {
		case TestStatusFail:
			anyFailed = true
			allSkipped = false
		case TestStatusError:
			anyErrored = true
			allSkipped = false
		case TestStatusSkip:
		default:
			allSkipped = false
		}
	}
	switch {
	case anyFailed:
		return TestStatusFail
	case anyErrored:
		return TestStatusError
	case allSkipped:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}

func (s *Suite) seal() {
	s.sealed = true
	for _, child := range s.children {
		if sub, ok := child.(*Suite); ok {
			sub.seal()
		}
	}
}

// ResultTree is the completed outcome of one test run, named after the
// configuration that produced it.
type ResultTree struct {
	name string
	root *Suite
}

// NewResultTree seals root and everything below it.
func NewResultTree(name string, root *Suite) *ResultTree {
	if root == nil {
		root = NewSuite(name)
	}
	root.seal()
	return &ResultTree{name: name, root: root}
}

// NewErrorTree builds the synthetic tree recorded when a configuration could
// not produce a report: one Error case below a root suite.
func NewErrorTree(name, caseName, message string) *ResultTree {
	root := NewSuite(name)
	_ = root.Append(NewCase(caseName, TestStatusError, message))
	return NewResultTree(name, root)
}

func (t *ResultTree) Name() string       { return t.name }
func (t *ResultTree) Root() *Suite       { return t.root }
func (t *ResultTree) Status() TestStatus { return t.root.Status() }

// CaseVisitor receives each case with the names of the suites above it,
// excluding the root suite.
type CaseVisitor func(path []string, c *Case)

// WalkCases visits all cases depth-first in document order.
func (t *ResultTree) WalkCases(fn CaseVisitor) {
	walkCases(t.root, nil, fn)
}

func walkCases(s *Suite, path []string, fn CaseVisitor) {
	for _, child := range s.children {
		switch n := child.(type) {
		case *Case:
			fn(path, n)
		case *Suite:
			sub := make([]string, len(path), len(path)+1)
			copy(sub, path)
			walkCases(n, append(sub, n.name), fn)
		default:
			panic(fmt.Sprintf("unexpected result node %T", child))
		}
	}
}

// CaseID joins suite path and case name into the identity used across trees.
func CaseID(path []string, name string) string {
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, "/") + "/" + name
}

// Counts tallies case statuses
type Counts struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Errored int
	Absent  int
}

// Add records one status
func (c *Counts) Add(status TestStatus) {
	c.Total++
	switch status {
	case TestStatusPass:
		c.Passed++
	case TestStatusFail:
		c.Failed++
	case TestStatusSkip:
		c.Skipped++
	case TestStatusError:
		c.Errored++
	case TestStatusAbsent:
		c.Absent++
	}
}

// Counts tallies every case in the tree
func (t *ResultTree) Counts() Counts {
	var c Counts
	t.WalkCases(func(_ []string, cs *Case) {
		c.Add(cs.Status())
	})
	return c
}
