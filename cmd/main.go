package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	matrix "github.com/ethereum-optimism/infra/op-matrix"
	"github.com/ethereum-optimism/infra/op-matrix/exitcodes"
	"github.com/ethereum-optimism/infra/op-matrix/flags"
	"github.com/ethereum-optimism/infra/op-matrix/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// controlTimeout bounds stop and restart requests, which wait for the test
// process to exit.
const controlTimeout = 2 * time.Minute

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-matrix"
	app.Usage = "Configuration matrix test runner"
	app.Description = "op-matrix expands a tree of build options into configurations and runs a test binary for each"
	app.ExitErrHandler = exitErrHandler
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Run the test binary for every configuration of a config tree",
			Flags:  cliapp.ProtectFlags(flags.Flags),
			Action: cliapp.LifecycleCmd(run),
		},
		{
			Name:   "stop",
			Usage:  "Stop the session of a running op-matrix",
			Flags:  flags.ControlFlags,
			Action: control((*service.Client).Stop),
		},
		{
			Name:   "restart",
			Usage:  "Discard the results of a running op-matrix and start over",
			Flags:  flags.ControlFlags,
			Action: control((*service.Client).Restart),
		},
		{
			Name:   "status",
			Usage:  "Show the session state of a running op-matrix",
			Flags:  flags.ControlFlags,
			Action: control((*service.Client).Status),
		},
		{
			Name:   "plan",
			Usage:  "Print the configurations a config tree expands to",
			Flags:  flags.PlanFlags,
			Action: plan,
		},
		{
			Name:      "parse",
			Usage:     "Parse a single report file and print its result tree",
			ArgsUsage: "<report.xml>",
			Flags:     flags.ParseFlags,
			Action:    parse,
		},
	}
	return app
}

func exitErrHandler(c *cli.Context, err error) {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		cli.HandleExitCoder(exitErr)
	} else if err != nil {
		if matrix.IsRuntimeError(err) {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
		} else if matrix.IsTestFailureError(err) {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
		} else {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
		}
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := matrix.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, matrix.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	m, err := matrix.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, matrix.NewRuntimeError(fmt.Errorf("failed to create matrix: %w", err))
	}
	return m, nil
}

func control(call func(*service.Client, context.Context) (service.StatusResponse, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx.Context, controlTimeout)
		defer cancel()

		client := service.NewClient(ctx.String(flags.ControlAddr.Name), nil)
		status, err := call(client, reqCtx)
		if err != nil {
			return matrix.NewRuntimeError(err)
		}
		fmt.Fprintf(ctx.App.Writer, "run %s: %s (%d/%d configurations, %d cases, %d failed, %d errored)\n",
			status.RunID, status.State, status.Completed, status.Configurations,
			status.Counts.Total, status.Counts.Failed, status.Counts.Errored)
		return nil
	}
}

func plan(ctx *cli.Context) error {
	_, err := matrix.Plan(ctx.App.Writer, ctx.String(flags.ConfigTree.Name))
	return err
}

func parse(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return matrix.NewRuntimeError(errors.New("expected exactly one report file"))
	}
	_, err := matrix.Parse(ctx.App.Writer, ctx.String(flags.ReportSchema.Name), ctx.Args().First())
	return err
}
