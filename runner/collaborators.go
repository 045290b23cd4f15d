package runner

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// LineLogger receives the output of the external process, one line at a time.
// Lines of one configuration arrive in the order the process produced them;
// configurations never interleave.
type LineLogger interface {
	WriteLine(text string)
}

// ProgressReporter is notified as a session advances. Calls come from the
// session goroutine, one at a time.
type ProgressReporter interface {
	OnConfigurationStarted(config types.TestConfiguration)
	OnConfigurationCompleted(config types.TestConfiguration, result *types.ResultTree)
	OnSessionCompleted(report *reporting.Report)
}

// TreeSink receives snapshots for presentation. Trees handed to it are never
// modified afterwards.
type TreeSink interface {
	ShowConfigTree(tree *configtree.Tree)
	ShowResultTree(config types.TestConfiguration, result *types.ResultTree)
}

// NopLineLogger drops all output
type NopLineLogger struct{}

func (NopLineLogger) WriteLine(string) {}

// NopProgress ignores all events
type NopProgress struct{}

func (NopProgress) OnConfigurationStarted(types.TestConfiguration)                     {}
func (NopProgress) OnConfigurationCompleted(types.TestConfiguration, *types.ResultTree) {}
func (NopProgress) OnSessionCompleted(*reporting.Report)                               {}

// NopTreeSink ignores all snapshots
type NopTreeSink struct{}

func (NopTreeSink) ShowConfigTree(*configtree.Tree)                            {}
func (NopTreeSink) ShowResultTree(types.TestConfiguration, *types.ResultTree) {}

// MultiProgress fans events out to several reporters in order.
type MultiProgress []ProgressReporter

func (m MultiProgress) OnConfigurationStarted(config types.TestConfiguration) {
	for _, p := range m {
		p.OnConfigurationStarted(config)
	}
}

func (m MultiProgress) OnConfigurationCompleted(config types.TestConfiguration, result *types.ResultTree) {
	for _, p := range m {
		p.OnConfigurationCompleted(config, result)
	}
}

func (m MultiProgress) OnSessionCompleted(report *reporting.Report) {
	for _, p := range m {
		p.OnSessionCompleted(report)
	}
}

// MultiLineLogger copies every line to several loggers.
type MultiLineLogger []LineLogger

func (m MultiLineLogger) WriteLine(text string) {
	for _, l := range m {
		l.WriteLine(text)
	}
}

// MemoryLineLogger keeps every line in memory. It is safe for concurrent use.
type MemoryLineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (m *MemoryLineLogger) WriteLine(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, text)
}

// Lines returns a copy of everything written so far
func (m *MemoryLineLogger) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}
