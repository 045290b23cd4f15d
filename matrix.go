package matrix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-matrix/combination"
	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/logging"
	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// matrix implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &matrix{}

// matrix runs one test session over every configuration of a tree.
type matrix struct {
	ctx     context.Context
	config  *Config
	version string

	tree         *configtree.Tree
	orchestrator *runner.Orchestrator
	files        *logging.FileLogger
	console      *console
	service      *service.Service
	stdout       io.Writer

	running atomic.Bool
	stopped atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New loads the configuration tree and wires the orchestrator. Every error is
// an operational one.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*matrix, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating matrix with config",
		"configTree", config.ConfigTree,
		"testBinary", config.TestBinary,
		"reportDir", config.ReportDir,
		"schema", config.Schema.Name,
		"timeout", config.Timeout)

	tree, err := configtree.Load(config.ConfigTree)
	if err != nil {
		return nil, err
	}

	parser, err := runner.NewXMLParser(config.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create report parser: %w", err)
	}

	runID := uuid.New().String()
	files, err := logging.NewFileLogger(config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	if config.OutputRealtimeLogs {
		files.SetMirror(os.Stdout)
	}

	con := newConsole(os.Stdout, config.ShowTrees)
	orch, err := runner.New(runner.Config{
		Binary:         config.TestBinary,
		Args:           config.TestArgs,
		Dir:            config.WorkDir,
		ReportDir:      config.ReportDir,
		ReportTemplate: config.ReportTemplate,
		FlagStyle:      config.FlagStyle,
		Timeout:        config.Timeout,
		Runner:         runner.NewExecRunner(config.Log, config.GracePeriod),
		Parser:         parser,
		Lines:          files,
		Progress:       runner.MultiProgress{con, files},
		Sink:           con,
		Log:            config.Log,
	})
	if err != nil {
		_ = files.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	svc := service.New(ctx, service.Config{
		ControlAddr: config.ControlAddr,
		MetricsAddr: config.MetricsAddr,
		Log:         config.Log,
	}, orch)

	config.Log.Info("matrix.New: loaded config tree and created orchestrator", "run_id", runID, "log_dir", files.Dir())

	return &matrix{
		ctx:              ctx,
		config:           config,
		version:          version,
		tree:             tree,
		orchestrator:     orch,
		files:            files,
		console:          con,
		service:          svc,
		stdout:           os.Stdout,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the session to its end, printing the results.
// Start implements the cliapp.Lifecycle interface.
func (m *matrix) Start(ctx context.Context) error {
	m.ctx = ctx
	m.running.Store(true)
	m.config.Log.Info("Starting op-matrix", "version", m.version, "run_id", m.files.RunID())

	if err := m.service.Start(); err != nil {
		metrics.RecordErrorDetails("service_start", err)
		return NewRuntimeError(err)
	}

	configs := combination.Generate(m.tree)
	m.console.setTotal(len(configs))
	m.config.Log.Info("Generated configurations", "count", len(configs), "combinations", combination.Count(m.tree))

	if err := m.orchestrator.StartFromTree(ctx, m.tree); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to start session: %w", err))
	}
	// Wait follows restarts triggered through the control server.
	state, err := m.orchestrator.Wait(context.Background())
	if err != nil {
		return NewRuntimeError(err)
	}
	sess := m.orchestrator.Session()
	report := sess.Report()

	m.printResults(sess, report)
	if m.config.Output != "" {
		meta := reporting.Meta{
			RunID:     sess.RunID,
			State:     state.String(),
			Timestamp: sess.StartedAt,
			Duration:  sess.Duration(),
		}
		if err := reporting.WriteFile(m.config.Output, report, meta); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to write report: %w", err))
		}
		m.config.Log.Info("Wrote report", "path", m.config.Output)
	}

	switch state {
	case runner.StateFailed:
		return NewRuntimeError(fmt.Errorf("session failed: %w", sess.Err))
	case runner.StateStopped:
		m.config.Log.Warn("Session was stopped before all configurations ran",
			"ran", len(sess.Results), "configurations", len(sess.Configurations))
		return NewTestFailureError(fmt.Sprintf("session stopped after %d of %d configurations",
			len(sess.Results), len(sess.Configurations)))
	}
	if report.HasFailures() {
		m.config.Log.Warn("Session completed with failures, returning exit code 1")
		return NewTestFailureError(strings.Join(report.FailedCases(), ", "))
	}

	m.config.Log.Info("Session completed, exiting")
	go func() {
		m.shutdownCallback(nil)
	}()
	return nil
}

func (m *matrix) printResults(sess runner.Session, report *reporting.Report) {
	reporting.RenderSummary(m.stdout, report, reporting.TableOptions{
		Title:    "Configuration Results",
		Duration: sess.Duration(),
		Colored:  true,
	})
	if len(report.Cases) > 0 {
		reporting.RenderMatrix(m.stdout, report, reporting.TableOptions{Colored: true})
	}
	if failed := report.FailedCases(); len(failed) > 0 {
		fmt.Fprintln(m.stdout, "Failed cases:")
		for _, f := range failed {
			fmt.Fprintf(m.stdout, "  %s\n", f)
		}
	}
	fmt.Fprintf(m.stdout, "Logs: %s\n", m.files.Dir())
}

// Stop cancels a running session and shuts the servers down.
// Stop implements the cliapp.Lifecycle interface.
func (m *matrix) Stop(ctx context.Context) error {
	m.config.Log.Info("Stopping op-matrix")
	if m.stopped.Swap(true) {
		m.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	m.running.Store(false)

	var errs []error
	if err := m.orchestrator.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop session: %w", err))
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.service.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop servers: %w", err))
	}
	if err := m.files.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close logs: %w", err))
	}
	m.config.Log.Info("op-matrix stopped")
	return errors.Join(errs...)
}

// Stopped implements the cliapp.Lifecycle interface.
func (m *matrix) Stopped() bool {
	return !m.running.Load()
}
