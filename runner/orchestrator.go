package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-matrix/combination"
	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

var (
	ErrAlreadyRunning      = errors.New("execution already running")
	ErrNotStarted          = errors.New("no execution to restart")
	ErrNoConfigurations    = errors.New("no configurations to run")
	ErrNoConfigTree        = errors.New("no configuration tree")
	ErrProcessLaunchFailed = errors.New("process launch failed")
	ErrTimeout             = errors.New("configuration timed out")
)

// FlagStyle selects how the choices of a configuration reach the process.
type FlagStyle string

const (
	// FlagStyleArgs appends one "group=value" argument per choice.
	FlagStyleArgs FlagStyle = "args"
	// FlagStyleEnv sets OP_MATRIX_OPT_<GROUP>=value per choice.
	FlagStyleEnv FlagStyle = "env"
)

// ParseFlagStyle validates a flag style name
func ParseFlagStyle(s string) (FlagStyle, error) {
	switch FlagStyle(strings.ToLower(s)) {
	case FlagStyleArgs:
		return FlagStyleArgs, nil
	case FlagStyleEnv:
		return FlagStyleEnv, nil
	default:
		return "", fmt.Errorf("unknown flag style %q, want %q or %q", s, FlagStyleArgs, FlagStyleEnv)
	}
}

// Config holds configuration for creating an Orchestrator
type Config struct {
	// Binary is the external test executable, run once per configuration.
	Binary string
	// Args are text/template strings rendered per configuration. Available
	// fields: .Index .Key .Name .Slug .ReportPath .Choices
	Args []string
	Dir  string

	// ReportDir and ReportTemplate locate the report a configuration writes.
	// The rendered template is relative to ReportDir unless absolute.
	ReportDir      string
	ReportTemplate string

	FlagStyle FlagStyle
	// Timeout bounds each configuration; zero disables it.
	Timeout time.Duration

	Runner   ProcessRunner
	Parser   ReportParser
	Lines    LineLogger
	Progress ProgressReporter
	Sink     TreeSink
	Log      log.Logger
}

// Orchestrator runs one external test process per configuration, strictly
// one at a time, and collects a result tree for each.
type Orchestrator struct {
	binary     string
	args       []*template.Template
	dir        string
	reportDir  string
	reportPath *template.Template
	flagStyle  FlagStyle
	timeout    time.Duration

	runner   ProcessRunner
	parser   ReportParser
	lines    LineLogger
	progress ProgressReporter
	sink     TreeSink
	log      log.Logger
	tracer   trace.Tracer

	// ctl serializes Start, Stop and Restart
	ctl sync.Mutex

	mu     sync.Mutex
	state  State
	sess   *session
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("test binary is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "."
	}
	if cfg.ReportTemplate == "" {
		cfg.ReportTemplate = DefaultReportTemplate
	}
	if cfg.FlagStyle == "" {
		cfg.FlagStyle = FlagStyleArgs
	}
	if _, err := ParseFlagStyle(string(cfg.FlagStyle)); err != nil {
		return nil, err
	}
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner(cfg.Log, DefaultGracePeriod)
	}
	if cfg.Parser == nil {
		p, err := NewXMLParser(BoostSchema)
		if err != nil {
			return nil, err
		}
		cfg.Parser = p
	}
	if cfg.Lines == nil {
		cfg.Lines = NopLineLogger{}
	}
	if cfg.Progress == nil {
		cfg.Progress = NopProgress{}
	}
	if cfg.Sink == nil {
		cfg.Sink = NopTreeSink{}
	}

	reportPath, err := parseTemplate("report", cfg.ReportTemplate)
	if err != nil {
		return nil, err
	}
	args := make([]*template.Template, 0, len(cfg.Args))
	for i, a := range cfg.Args {
		t, err := parseTemplate(fmt.Sprintf("arg%d", i), a)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}

	cfg.Log.Debug("New orchestrator", "binary", cfg.Binary, "args", cfg.Args, "reportDir", cfg.ReportDir,
		"reportTemplate", cfg.ReportTemplate, "flagStyle", cfg.FlagStyle, "timeout", cfg.Timeout)

	return &Orchestrator{
		binary:     cfg.Binary,
		args:       args,
		dir:        cfg.Dir,
		reportDir:  cfg.ReportDir,
		reportPath: reportPath,
		flagStyle:  cfg.FlagStyle,
		timeout:    cfg.Timeout,
		runner:     cfg.Runner,
		parser:     cfg.Parser,
		lines:      cfg.Lines,
		progress:   cfg.Progress,
		sink:       cfg.Sink,
		log:        cfg.Log,
		tracer:     otel.Tracer("matrix runner"),
	}, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template %q: %w", name, text, err)
	}
	return t, nil
}

// Start begins a session over configs in a new goroutine. ctx bounds the
// whole session, including sessions created later by Restart. Start fails
// with ErrAlreadyRunning while a session is active, and succeeds from idle
// or any finished state.
func (o *Orchestrator) Start(ctx context.Context, configs []types.TestConfiguration) error {
	o.ctl.Lock()
	defer o.ctl.Unlock()
	return o.start(ctx, nil, configs)
}

// StartFromTree generates the configurations of a snapshot of tree and
// starts a session over them.
func (o *Orchestrator) StartFromTree(ctx context.Context, tree *configtree.Tree) error {
	if tree == nil {
		return ErrNoConfigTree
	}
	o.ctl.Lock()
	defer o.ctl.Unlock()

	o.mu.Lock()
	active := o.state.Active()
	o.mu.Unlock()
	if active {
		return ErrAlreadyRunning
	}

	snapshot := tree.Clone()
	o.sink.ShowConfigTree(snapshot)
	return o.start(ctx, snapshot, combination.Generate(snapshot))
}

// StartFromFile loads a configuration tree and starts a session over it. A
// tree that cannot be loaded leaves the orchestrator untouched.
func (o *Orchestrator) StartFromFile(ctx context.Context, path string) error {
	tree, err := configtree.Load(path)
	if err != nil {
		return err
	}
	return o.StartFromTree(ctx, tree)
}

func (o *Orchestrator) start(ctx context.Context, tree *configtree.Tree, configs []types.TestConfiguration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Active() {
		return ErrAlreadyRunning
	}
	if len(configs) == 0 {
		return ErrNoConfigurations
	}
	o.launchLocked(ctx, tree, configs, make(chan struct{}))
	return nil
}

func (o *Orchestrator) launchLocked(parent context.Context, tree *configtree.Tree, configs []types.TestConfiguration, done chan struct{}) {
	cp := make([]types.TestConfiguration, len(configs))
	copy(cp, configs)
	sess := &session{
		runID:     uuid.New().String(),
		tree:      tree,
		configs:   cp,
		current:   -1,
		startedAt: time.Now(),
	}
	ctx, cancel := context.WithCancel(parent)
	o.sess = sess
	o.parent = parent
	o.cancel = cancel
	o.done = done
	o.setStateLocked(StateRunning)
	go o.run(ctx, sess, done)
}

// Stop cancels the running session and waits until its process is gone.
// Results collected so far stay available. Stop is a no-op unless a session
// is running.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.ctl.Lock()
	defer o.ctl.Unlock()

	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return nil
	}
	cancel, done := o.cancel, o.done
	o.mu.Unlock()

	o.log.Info("Stopping session")
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart stops any running session, discards its results and starts again
// from the first configuration of the same list. When ctx ends before the
// old process is gone, the restart still completes in the background.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.ctl.Lock()

	o.mu.Lock()
	prev := o.sess
	if prev == nil {
		o.mu.Unlock()
		o.ctl.Unlock()
		return ErrNotStarted
	}
	wasRunning := o.state == StateRunning
	prev.discard = true
	cancel, oldDone, parent := o.cancel, o.done, o.parent
	next := make(chan struct{})
	o.done = next
	o.setStateLocked(StateRestarting)
	o.mu.Unlock()

	o.log.Info("Restarting session", "run_id", prev.runID, "was_running", wasRunning)
	relaunch := func() {
		<-oldDone
		o.mu.Lock()
		o.launchLocked(parent, prev.tree, prev.configs, next)
		o.mu.Unlock()
		o.ctl.Unlock()
	}
	if !wasRunning {
		relaunch()
		return nil
	}

	cancel()
	select {
	case <-oldDone:
		relaunch()
		return nil
	case <-ctx.Done():
		go relaunch()
		return ctx.Err()
	}
}

// Wait blocks until no session is active and returns the final state.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	for {
		o.mu.Lock()
		state, done := o.state, o.done
		o.mu.Unlock()
		if !state.Active() {
			return state, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Done is closed when the active session ends. It is closed already when
// nothing is running.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return o.done
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a snapshot of the current or last session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return Session{State: o.state, Current: -1}
	}
	return o.sess.snapshot(o.state)
}

func (o *Orchestrator) setStateLocked(state State) {
	o.state = state
	metrics.RecordSessionState(state.String(), StateNames())
}

func (o *Orchestrator) run(ctx context.Context, sess *session, done chan struct{}) {
	defer close(done)

	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("session %s", sess.runID))
	defer span.End()
	logger := o.log.New("run_id", sess.runID)
	logger.Info("Starting session", "configurations", len(sess.configs))

	final, err := o.runConfigurations(ctx, logger, sess)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	o.finish(logger, sess, final, err)
}

func (o *Orchestrator) runConfigurations(ctx context.Context, logger log.Logger, sess *session) (final State, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Session panicked", "panic", r, "stack", string(debug.Stack()))
			metrics.RecordError("session_panic")
			final, err = StateFailed, fmt.Errorf("session panicked: %v", r)
		}
	}()

	for i, cfg := range sess.configs {
		if ctx.Err() != nil {
			return StateStopped, nil
		}
		o.mu.Lock()
		sess.current = i
		o.mu.Unlock()

		o.progress.OnConfigurationStarted(cfg)
		result, ok := o.runConfiguration(ctx, logger, sess.runID, cfg)
		if !ok {
			return StateStopped, nil
		}

		o.mu.Lock()
		sess.results = append(sess.results, result)
		o.mu.Unlock()
		o.progress.OnConfigurationCompleted(cfg, result.Tree)
		o.sink.ShowResultTree(cfg, result.Tree)
	}
	return StateCompleted, nil
}

func (o *Orchestrator) finish(logger log.Logger, sess *session, final State, err error) {
	o.mu.Lock()
	sess.current = -1
	sess.finishedAt = time.Now()
	sess.err = err
	if o.sess == sess && o.state == StateRunning {
		o.setStateLocked(final)
	}
	discard := sess.discard
	snapshot := sess.snapshot(final)
	o.mu.Unlock()

	metrics.RecordSession(sess.runID, final.String(), snapshot.Duration())
	if discard {
		logger.Info("Session discarded", "results", len(snapshot.Results))
		return
	}
	report := snapshot.Report()
	logger.Info("Session finished", "state", final, "results", len(snapshot.Results),
		"configurations", len(snapshot.Configurations), "duration", snapshot.Duration(), "failures", report.HasFailures())
	o.progress.OnSessionCompleted(report)
}

// runConfiguration runs one configuration to a result tree. It reports false
// when the session was cancelled while the configuration ran; nothing is
// recorded for it then.
func (o *Orchestrator) runConfiguration(ctx context.Context, logger log.Logger, runID string, cfg types.TestConfiguration) (NamedResult, bool) {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("configuration %s", cfg.Name()),
		trace.WithAttributes(attribute.Int("index", cfg.Index()), attribute.String("slug", cfg.Slug())))
	defer span.End()

	logger = logger.New("configuration", cfg.Name(), "index", cfg.Index())
	name := cfg.Name()
	start := time.Now()

	record := func(outcome string, tree *types.ResultTree) (NamedResult, bool) {
		elapsed := time.Since(start)
		metrics.RecordConfiguration(runID, outcome, elapsed)
		metrics.RecordCases(runID, name, tree.Counts())
		span.SetAttributes(attribute.String("outcome", outcome), attribute.String("status", string(tree.Status())))
		if tree.Status().IsFailure() {
			span.SetStatus(codes.Error, outcome)
		}
		return NamedResult{Configuration: cfg, Tree: tree, Duration: elapsed}, true
	}

	spec, reportPath, err := o.prepare(cfg)
	if err != nil {
		logger.Error("Failed to prepare configuration", "err", err)
		return record(metrics.OutcomeLaunchFailed, types.NewErrorTree(name, CaseProcessLaunch,
			fmt.Sprintf("%v: %v", ErrProcessLaunchFailed, err)))
	}

	tail := newTailBuffer(defaultOutputTailBytes)
	procCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.timeout > 0 {
		procCtx, cancel = context.WithTimeout(ctx, o.timeout)
	}
	logger.Info("Running configuration", "binary", spec.Binary, "report", reportPath)
	runErr := o.runner.Run(procCtx, spec, func(line string) {
		tail.WriteLine(line)
		o.lines.WriteLine(line)
	})
	timedOut := runErr != nil && errors.Is(procCtx.Err(), context.DeadlineExceeded)
	cancel()

	var exitErr *ExitError
	switch {
	case ctx.Err() != nil:
		logger.Info("Configuration interrupted", "duration", time.Since(start))
		metrics.RecordConfiguration(runID, metrics.OutcomeInterrupted, time.Since(start))
		return NamedResult{}, false
	case timedOut:
		logger.Warn("Configuration timed out", "timeout", o.timeout)
		return record(metrics.OutcomeTimeout, types.NewErrorTree(name, CaseTimeout,
			withExcerpt(fmt.Sprintf("%v: no exit within %s", ErrTimeout, o.timeout), tail)))
	case errors.Is(runErr, ErrProcessLaunchFailed):
		logger.Error("Failed to launch test process", "err", runErr)
		return record(metrics.OutcomeLaunchFailed, types.NewErrorTree(name, CaseProcessLaunch,
			withExcerpt(runErr.Error(), tail)))
	case runErr != nil && !errors.As(runErr, &exitErr):
		logger.Error("Test process failed", "err", runErr)
		return record(metrics.OutcomeProcessFailed, types.NewErrorTree(name, CaseProcess,
			withExcerpt(runErr.Error(), tail)))
	}
	if exitErr != nil {
		// Test frameworks exit non-zero when cases fail; the report decides.
		logger.Debug("Test process exited with non-zero status", "code", exitErr.Code)
	}

	tree, err := o.parseReport(name, reportPath)
	if err != nil {
		logger.Warn("Failed to parse report", "report", reportPath, "err", err)
		msg := err.Error()
		if exitErr != nil {
			msg = fmt.Sprintf("%s (%v)", msg, exitErr)
		}
		return record(metrics.OutcomeParseFailed, types.NewErrorTree(name, CaseReportParse, withExcerpt(msg, tail)))
	}
	logger.Info("Configuration finished", "status", tree.Status(), "duration", time.Since(start))
	return record(metrics.OutcomeCompleted, tree)
}

func (o *Orchestrator) parseReport(name, path string) (*types.ResultTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	return o.parser.Parse(name, data)
}

// templateData is what argument and report path templates see.
type templateData struct {
	Index      int
	Key        string
	Name       string
	Slug       string
	ReportPath string
	Choices    []types.Choice
}

// prepare resolves the report path, removes a stale report left there by an
// earlier run and builds the process invocation.
func (o *Orchestrator) prepare(cfg types.TestConfiguration) (ProcessSpec, string, error) {
	data := templateData{
		Index:   cfg.Index(),
		Key:     cfg.Key(),
		Name:    cfg.Name(),
		Slug:    cfg.Slug(),
		Choices: cfg.Choices(),
	}
	rel, err := render(o.reportPath, data)
	if err != nil {
		return ProcessSpec{}, "", err
	}
	reportPath := rel
	if !filepath.IsAbs(reportPath) {
		reportPath = filepath.Join(o.reportDir, rel)
	}
	if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
		return ProcessSpec{}, "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.Remove(reportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ProcessSpec{}, "", fmt.Errorf("failed to remove stale report: %w", err)
	}
	data.ReportPath = reportPath

	spec := ProcessSpec{
		Binary: o.binary,
		Dir:    o.dir,
		Env: []string{
			EnvReportPath + "=" + reportPath,
			EnvConfigurationKey + "=" + cfg.Key(),
			EnvConfigurationID + "=" + cfg.Slug(),
		},
	}
	for _, t := range o.args {
		arg, err := render(t, data)
		if err != nil {
			return ProcessSpec{}, "", err
		}
		spec.Args = append(spec.Args, arg)
	}
	for _, ch := range cfg.Choices() {
		switch o.flagStyle {
		case FlagStyleEnv:
			spec.Env = append(spec.Env, EnvOptionPrefix+envName(ch.Group)+"="+ch.Value)
		default:
			spec.Args = append(spec.Args, ch.Group+"="+ch.Value)
		}
	}
	return spec, reportPath, nil
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// envName turns a group path into an environment variable suffix.
func envName(group string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(group) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func withExcerpt(msg string, tail *tailBuffer) string {
	excerpt := tail.Excerpt()
	if excerpt == "" {
		return msg
	}
	header := "--- output ---"
	if tail.Truncated() {
		header = fmt.Sprintf("--- output (last %d of %d bytes) ---", tail.maxBytes, tail.TotalBytes())
	}
	return msg + "\n\n" + header + "\n" + excerpt
}
