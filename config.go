package matrix

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-matrix/flags"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
)

// Config holds the application configuration
type Config struct {
	ConfigTree         string        // Path to the configuration tree file
	TestBinary         string        // Test executable run once per configuration
	TestArgs           []string      // Argument templates for the test executable
	WorkDir            string        // Working directory of the test executable
	ReportDir          string        // Directory the per-configuration reports are written to
	ReportTemplate     string        // Report path template, relative to ReportDir
	Schema             runner.Schema // Report format
	FlagStyle          runner.FlagStyle
	Timeout            time.Duration // Per-configuration timeout, 0 disables it
	GracePeriod        time.Duration // SIGTERM to SIGKILL delay for cancelled processes
	LogDir             string        // Directory to store test logs
	OutputRealtimeLogs bool          // If enabled, test output is echoed while it runs
	ShowTrees          bool          // Print configuration and result trees
	Output             string        // Consolidated report file, empty to skip it
	ControlAddr        string        // Control server address, empty disables it
	MetricsAddr        string        // Metrics server address, empty disables it
	Log                log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	configTree, err := filepath.Abs(ctx.String(flags.ConfigTree.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for config tree '%s': %w", ctx.String(flags.ConfigTree.Name), err)
	}

	reportDir := ctx.String(flags.ReportDir.Name)
	if reportDir == "" {
		reportDir = "reports"
	}
	reportDir, err = filepath.Abs(reportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for report directory '%s': %w", reportDir, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	schema, err := runner.ResolveSchema(ctx.String(flags.ReportSchema.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid report schema: %w", err)
	}
	flagStyle, err := runner.ParseFlagStyle(ctx.String(flags.FlagStyle.Name))
	if err != nil {
		return nil, err
	}

	timeout := ctx.Duration(flags.Timeout.Name)
	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", timeout)
	}

	var metricsAddr string
	if metricsCfg := opmetrics.ReadCLIConfig(ctx); metricsCfg.Enabled {
		if err := metricsCfg.Check(); err != nil {
			return nil, fmt.Errorf("invalid metrics config: %w", err)
		}
		metricsAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}

	return &Config{
		ConfigTree:         configTree,
		TestBinary:         ctx.String(flags.TestBinary.Name),
		TestArgs:           ctx.StringSlice(flags.TestArgs.Name),
		WorkDir:            ctx.String(flags.WorkDir.Name),
		ReportDir:          reportDir,
		ReportTemplate:     ctx.String(flags.ReportTemplate.Name),
		Schema:             schema,
		FlagStyle:          flagStyle,
		Timeout:            timeout,
		GracePeriod:        ctx.Duration(flags.GracePeriod.Name),
		LogDir:             logDir,
		OutputRealtimeLogs: ctx.Bool(flags.OutputRealtimeLogs.Name),
		ShowTrees:          ctx.Bool(flags.ShowTrees.Name),
		Output:             ctx.String(flags.Output.Name),
		ControlAddr:        ctx.String(flags.ControlAddr.Name),
		MetricsAddr:        metricsAddr,
		Log:                log,
	}, nil
}
