package matrix

import (
	"fmt"
	"io"
	"sync"

	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

var (
	_ runner.TreeSink         = (*console)(nil)
	_ runner.ProgressReporter = (*console)(nil)
)

// console prints progress lines and, when enabled, the trees of a session.
type console struct {
	mu        sync.Mutex
	out       io.Writer
	showTrees bool
	total     int
}

func newConsole(out io.Writer, showTrees bool) *console {
	return &console{out: out, showTrees: showTrees}
}

func (c *console) ShowConfigTree(tree *configtree.Tree) {
	if !c.showTrees {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s\n", reporting.FormatConfigTree(tree))
}

func (c *console) ShowResultTree(cfg types.TestConfiguration, tree *types.ResultTree) {
	if !c.showTrees {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s\n", reporting.FormatResultTree(tree, true))
}

// setTotal is the number of configurations of the session being printed.
func (c *console) setTotal(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
}

func (c *console) OnConfigurationStarted(cfg types.TestConfiguration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "▶ [%d/%d] %s\n", cfg.Index()+1, c.total, cfg.Name())
}

func (c *console) OnConfigurationCompleted(cfg types.TestConfiguration, result *types.ResultTree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := result.Counts()
	fmt.Fprintf(c.out, "%s [%d/%d] %s: %d passed, %d failed, %d skipped, %d errored\n",
		result.Status().Symbol(), cfg.Index()+1, c.total, cfg.Name(),
		counts.Passed, counts.Failed, counts.Skipped, counts.Errored)
}

func (c *console) OnSessionCompleted(*reporting.Report) {}
