package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// ProcessSpec describes one external test process.
type ProcessSpec struct {
	Binary string
	Args   []string
	// Env is appended to the environment of the current process.
	Env []string
	Dir string
}

// ProcessRunner runs one external process to completion. Every line the
// process writes to stdout or stderr is passed to lines, in order, before Run
// returns. Run returns nil for a zero exit status, an *ExitError for any other
// exit status, an error wrapping ErrProcessLaunchFailed when the process could
// not be started, and ctx.Err() when ctx ended first.
type ProcessRunner interface {
	Run(ctx context.Context, spec ProcessSpec, lines func(string)) error
}

// ExitError reports a non-zero exit status of a process that ran.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with status %d", e.Code)
}

var _ ProcessRunner = (*ExecRunner)(nil)

// ExecRunner runs processes on the local host in their own process group, so
// cancellation reaches every child the test binary spawned.
type ExecRunner struct {
	log         log.Logger
	gracePeriod time.Duration
}

// NewExecRunner creates a runner that waits gracePeriod after SIGTERM before
// killing a cancelled process group.
func NewExecRunner(logger log.Logger, gracePeriod time.Duration) *ExecRunner {
	if logger == nil {
		logger = log.New()
	}
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &ExecRunner{log: logger, gracePeriod: gracePeriod}
}

func (r *ExecRunner) Run(ctx context.Context, spec ProcessSpec, lines func(string)) error {
	if spec.Binary == "" {
		return fmt.Errorf("%w: no binary given", ErrProcessLaunchFailed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	configureProcAttr(cmd)

	// stdout and stderr share one pipe so lines keep the order the process
	// wrote them in.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessLaunchFailed, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return fmt.Errorf("%w: %s: %v", ErrProcessLaunchFailed, spec.Binary, err)
	}
	_ = pw.Close()
	r.log.Debug("Started process", "binary", spec.Binary, "args", spec.Args, "pid", cmd.Process.Pid)

	readerDone := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(readerDone)
		return streamLines(pr, lines)
	})
	g.Go(func() error {
		waitErr := r.wait(ctx, cmd)
		select {
		case <-readerDone:
		case <-time.After(outputDrainTimeout):
			r.log.Warn("Output still open after process exit, closing it", "pid", cmd.Process.Pid)
			_ = pr.Close()
		}
		return waitErr
	})
	err = g.Wait()
	_ = pr.Close()
	return err
}

// wait blocks until the process exits. When ctx ends first the process group
// gets SIGTERM, then SIGKILL once the grace period is over.
func (r *ExecRunner) wait(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case err := <-exited:
		return exitError(err)
	case <-ctx.Done():
	}

	pid := cmd.Process.Pid
	r.log.Info("Terminating process group", "pid", pid, "reason", ctx.Err())
	if err := interruptProcess(cmd); err != nil {
		r.log.Debug("Failed to interrupt process", "pid", pid, "err", err)
	}
	select {
	case <-exited:
	case <-time.After(r.gracePeriod):
		r.log.Warn("Process ignored termination, killing it", "pid", pid, "grace", r.gracePeriod)
		if err := killProcess(cmd); err != nil {
			r.log.Error("Failed to kill process", "pid", pid, "err", err)
		}
		<-exited
	}
	return ctx.Err()
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}

// streamLines splits r into lines without their terminators. A pipe closed
// from our side ends the stream quietly.
func streamLines(r io.Reader, lines func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if lines != nil {
				lines(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
