package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/types"
	"github.com/ethereum-optimism/infra/op-matrix/ui"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	AllLogsFilename    = "all.log"
	SummaryFilename    = "summary.log"
	PassedDirname      = "passed"
	FailedDirname      = "failed"

	headerWidth = 72
)

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 256),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// FileLogger keeps the output of an invocation on disk:
//
//	testrun-<id>/all.log            every output line, per configuration
//	testrun-<id>/passed/<slug>.log  output of configurations without failures
//	testrun-<id>/failed/<slug>.log  output of configurations with failures
//	testrun-<id>/summary.log        tables written when a session completes
//
// It consumes process output lines and progress events, so it can be plugged
// into the orchestrator as both.
type FileLogger struct {
	runID     string
	logDir    string
	passedDir string
	failedDir string

	mu      sync.Mutex
	all     *AsyncFile
	mirror  io.Writer
	current *types.TestConfiguration
	started time.Time
	buf     strings.Builder
	closed  bool
}

// NewFileLogger creates the run directory below baseDir.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	l := &FileLogger{
		runID:     runID,
		logDir:    logDir,
		passedDir: filepath.Join(logDir, PassedDirname),
		failedDir: filepath.Join(logDir, FailedDirname),
	}
	for _, dir := range []string{baseDir, logDir, l.passedDir, l.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	all, err := NewAsyncFile(l.AllLogsFile())
	if err != nil {
		return nil, err
	}
	l.all = all
	return l, nil
}

// SetMirror echoes every output line to w as it arrives. A nil writer turns
// mirroring off.
func (l *FileLogger) SetMirror(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = w
}

func (l *FileLogger) RunID() string       { return l.runID }
func (l *FileLogger) Dir() string         { return l.logDir }
func (l *FileLogger) AllLogsFile() string { return filepath.Join(l.logDir, AllLogsFilename) }
func (l *FileLogger) SummaryFile() string { return filepath.Join(l.logDir, SummaryFilename) }

// ConfigurationLogFile is where the output of cfg ends up once it completed.
func (l *FileLogger) ConfigurationLogFile(cfg types.TestConfiguration, failed bool) string {
	dir := l.passedDir
	if failed {
		dir = l.failedDir
	}
	return filepath.Join(dir, safeFilename(cfg.Slug())+".log")
}

// WriteLine records one line of process output. Escape sequences are removed
// from the files but kept for the mirror.
func (l *FileLogger) WriteLine(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	if l.mirror != nil {
		_, _ = fmt.Fprintln(l.mirror, text)
	}
	clean := stripansi.Strip(text)
	if l.current != nil {
		l.buf.WriteString(clean)
		l.buf.WriteByte('\n')
	}
	_ = l.all.Write([]byte(clean + "\n"))
}

// OnConfigurationStarted opens a new section in all.log.
func (l *FileLogger) OnConfigurationStarted(cfg types.TestConfiguration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	c := cfg
	l.current = &c
	l.started = time.Now()
	l.buf.Reset()

	var header strings.Builder
	header.WriteString("\n")
	header.WriteString(ui.BuildBoxHeader("CONFIGURATION: "+cfg.Name(), headerWidth))
	header.WriteString(ui.BuildBoxLine(fmt.Sprintf("Index: %d", cfg.Index()), headerWidth))
	header.WriteString(ui.BuildBoxLine("Time:  "+l.started.Format(time.RFC3339), headerWidth))
	header.WriteString(ui.BuildBoxFooter(headerWidth))
	header.WriteString("\n")
	_ = l.all.Write([]byte(header.String()))
}

// OnConfigurationCompleted writes the buffered output of cfg, followed by its
// result tree, to the passed or failed directory.
func (l *FileLogger) OnConfigurationCompleted(cfg types.TestConfiguration, result *types.ResultTree) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	failed := result.Status().IsFailure()
	var content strings.Builder
	fmt.Fprintf(&content, "Configuration: %s\n", cfg.Name())
	fmt.Fprintf(&content, "Status:        %s\n", result.Status())
	fmt.Fprintf(&content, "Duration:      %s\n", time.Since(l.started).Round(time.Millisecond))
	for _, ch := range cfg.Choices() {
		fmt.Fprintf(&content, "  %s = %s (%s)\n", ch.Group, ch.Value, ch.Option)
	}
	fmt.Fprintf(&content, "\nRESULTS:\n~~~~~~~~\n%s\n", reporting.FormatResultTree(result, true))
	if l.buf.Len() > 0 {
		fmt.Fprintf(&content, "\nOUTPUT:\n~~~~~~~\n%s", l.buf.String())
	}

	path := l.ConfigurationLogFile(cfg, failed)
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing configuration log %s: %v\n", path, err)
	}
	// A restarted session may have left the opposite outcome behind.
	_ = os.Remove(l.ConfigurationLogFile(cfg, !failed))

	_ = l.all.Write([]byte(fmt.Sprintf("\n=== %s: %s ===\n", cfg.Name(), result.Status())))
	l.current = nil
	l.buf.Reset()
}

// OnSessionCompleted writes the summary and matrix tables to summary.log.
func (l *FileLogger) OnSessionCompleted(report *reporting.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	var content strings.Builder
	opts := reporting.TableOptions{Title: fmt.Sprintf("Run %s", l.runID)}
	reporting.RenderSummary(&content, report, opts)
	content.WriteString("\n")
	reporting.RenderMatrix(&content, report, reporting.TableOptions{})
	if failed := report.FailedCases(); len(failed) > 0 {
		content.WriteString("\nFailed cases:\n")
		for _, f := range failed {
			fmt.Fprintf(&content, "  %s\n", f)
		}
	}
	if err := os.WriteFile(l.SummaryFile(), []byte(content.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing summary %s: %v\n", l.SummaryFile(), err)
	}
}

// Close flushes all.log. Later events are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.all.Close()
}

// safeFilename replaces characters that are awkward in file names
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(s)
}
