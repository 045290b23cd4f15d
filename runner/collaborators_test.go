package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

func TestMultiCollaborators(t *testing.T) {
	a, b := &MemoryLineLogger{}, &MemoryLineLogger{}
	lines := MultiLineLogger{a, b, NopLineLogger{}}
	lines.WriteLine("one")
	lines.WriteLine("two")
	assert.Equal(t, []string{"one", "two"}, a.Lines())
	assert.Equal(t, []string{"one", "two"}, b.Lines())

	p1, p2 := &recordingProgress{}, &recordingProgress{}
	progress := MultiProgress{p1, NopProgress{}, p2}
	cfg := types.NewTestConfiguration(0, nil)
	tree := types.NewErrorTree(cfg.Name(), CaseProcess, "boom")
	progress.OnConfigurationStarted(cfg)
	progress.OnConfigurationCompleted(cfg, tree)
	progress.OnSessionCompleted(reporting.Aggregate(map[string]*types.ResultTree{cfg.Name(): tree}))

	for _, p := range []*recordingProgress{p1, p2} {
		assert.Equal(t, []string{"default"}, p.started)
		assert.Equal(t, []string{"default"}, p.completed)
		assert.Len(t, p.Reports(), 1)
	}
}

func TestMemoryLineLoggerCopies(t *testing.T) {
	m := &MemoryLineLogger{}
	m.WriteLine("a")
	got := m.Lines()
	got[0] = "changed"
	assert.Equal(t, []string{"a"}, m.Lines())
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "COMPILER_OPT", envName("compiler/opt"))
	assert.Equal(t, "C__STD", envName("c++std"))
	assert.Equal(t, "ARCH64", envName("arch64"))
}
