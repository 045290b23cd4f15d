package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-matrix/runner"
)

const EnvVarPrefix = "OP_MATRIX"

var (
	ConfigTree = &cli.StringFlag{
		Name:     "config-tree",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG_TREE"),
		Usage:    "Path to the configuration tree file (.xml, .yaml or .yml)",
	}
	TestBinary = &cli.StringFlag{
		Name:     "test-binary",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "TEST_BINARY"),
		Usage:    "Path to the test executable run once per configuration",
	}
	TestArgs = &cli.StringSliceFlag{
		Name:    "test-arg",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_ARG"),
		Usage: "Argument passed to the test executable, may be repeated. Go templates over the configuration " +
			"are expanded (eg. '--report_sink={{.ReportPath}}')",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Working directory of the test executable (defaults to the current directory)",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_DIR"),
		Usage:   "Directory the per-configuration XML reports are written to",
	}
	ReportTemplate = &cli.StringFlag{
		Name:    "report-template",
		Value:   runner.DefaultReportTemplate,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_TEMPLATE"),
		Usage:   "Go template for the report path of a configuration, relative to --report-dir",
	}
	ReportSchema = &cli.StringFlag{
		Name:    "report-schema",
		Value:   runner.BoostSchema.Name,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_SCHEMA"),
		Usage:   fmt.Sprintf("Report schema: one of %v or the path to a YAML schema file", runner.PresetNames()),
	}
	FlagStyle = &cli.StringFlag{
		Name:    "flag-style",
		Value:   string(runner.FlagStyleArgs),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FLAG_STYLE"),
		Usage: fmt.Sprintf("How choices reach the test executable: '%s' appends group=value arguments, "+
			"'%s' sets %s<GROUP> variables", runner.FlagStyleArgs, runner.FlagStyleEnv, runner.EnvOptionPrefix),
		Action: func(_ *cli.Context, v string) error {
			_, err := runner.ParseFlagStyle(v)
			return err
		},
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   runner.DefaultConfigurationTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Timeout for a single configuration. Set to 0 to disable.",
	}
	GracePeriod = &cli.DurationFlag{
		Name:    "grace-period",
		Value:   runner.DefaultGracePeriod,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GRACE_PERIOD"),
		Usage:   "Time a cancelled test process gets between SIGTERM and SIGKILL",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store test logs. Defaults to 'logs' if not specified.",
	}
	OutputRealtimeLogs = &cli.BoolFlag{
		Name:    "output-realtime-logs",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_REALTIME_LOGS"),
		Usage:   "If enabled, test output is echoed to stdout while it runs",
	}
	ShowTrees = &cli.BoolFlag{
		Name:    "show-trees",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_TREES"),
		Usage:   "Print the configuration tree at start and the result tree of every configuration",
	}
	Output = &cli.StringFlag{
		Name:    "output",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT"),
		Usage:   "Write the consolidated report to this file; '.xml' writes JUnit, anything else JSON",
	}
	ControlAddr = &cli.StringFlag{
		Name:    "control-addr",
		Value:   "127.0.0.1:7310",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONTROL_ADDR"),
		Usage:   "Address of the control server used by the stop and restart commands. Empty disables it.",
	}
)

var requiredFlags = []cli.Flag{
	ConfigTree,
	TestBinary,
}

var optionalFlags = []cli.Flag{
	TestArgs,
	WorkDir,
	ReportDir,
	ReportTemplate,
	ReportSchema,
	FlagStyle,
	Timeout,
	GracePeriod,
	LogDir,
	OutputRealtimeLogs,
	ShowTrees,
	Output,
	ControlAddr,
}

// Flags are the flags of the run command.
var Flags []cli.Flag

// ControlFlags are the flags of the stop and restart commands.
var ControlFlags = []cli.Flag{ControlAddr}

// PlanFlags are the flags of the plan command.
var PlanFlags = []cli.Flag{ConfigTree}

// ParseFlags are the flags of the parse command.
var ParseFlags = []cli.Flag{ReportSchema}

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
