package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

var (
	_ runner.LineLogger       = (*FileLogger)(nil)
	_ runner.ProgressReporter = (*FileLogger)(nil)
)

func resultTree(t *testing.T, name string, status types.TestStatus) *types.ResultTree {
	t.Helper()
	root := types.NewSuite("Master")
	require.NoError(t, root.Append(types.NewCase("adds", status, "")))
	return types.NewResultTree(name, root)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
	_, err = NewFileLogger("", "run")
	require.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewFileLogger(tmpDir, "test-run-123")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "testrun-test-run-123"), logger.Dir())
	assert.DirExists(t, filepath.Join(logger.Dir(), PassedDirname))
	assert.DirExists(t, filepath.Join(logger.Dir(), FailedDirname))

	var mirror bytes.Buffer
	logger.SetMirror(&mirror)

	good := types.NewTestConfiguration(0, []types.Choice{{Group: "opt", Option: "O2", Value: "-O2"}})
	bad := types.NewTestConfiguration(1, []types.Choice{{Group: "opt", Option: "O3", Value: "-O3"}})

	logger.OnConfigurationStarted(good)
	logger.WriteLine("\x1b[32mRunning 1 test case...\x1b[0m")
	logger.OnConfigurationCompleted(good, resultTree(t, good.Name(), types.TestStatusPass))

	logger.OnConfigurationStarted(bad)
	logger.WriteLine("error: check failed")
	badTree := resultTree(t, bad.Name(), types.TestStatusFail)
	logger.OnConfigurationCompleted(bad, badTree)

	report := reporting.Aggregate(map[string]*types.ResultTree{
		good.Name(): resultTree(t, good.Name(), types.TestStatusPass),
		bad.Name():  badTree,
	})
	logger.OnSessionCompleted(report)
	require.NoError(t, logger.Close())

	passed := readFile(t, logger.ConfigurationLogFile(good, false))
	assert.Contains(t, passed, "Configuration: opt=-O2")
	assert.Contains(t, passed, "opt = -O2 (O2)")
	assert.Contains(t, passed, "Running 1 test case...")
	assert.NotContains(t, passed, "\x1b[32m", "escape sequences are stripped")
	assert.NotContains(t, passed, "check failed")

	failed := readFile(t, logger.ConfigurationLogFile(bad, true))
	assert.Contains(t, failed, "Status:        fail")
	assert.Contains(t, failed, "error: check failed")
	assert.NoFileExists(t, logger.ConfigurationLogFile(bad, false))

	all := readFile(t, logger.AllLogsFile())
	assert.Contains(t, all, "CONFIGURATION: opt=-O2")
	assert.Contains(t, all, "Running 1 test case...")
	assert.Contains(t, all, "=== opt=-O3: fail ===")

	summary := readFile(t, logger.SummaryFile())
	assert.Contains(t, summary, "Run test-run-123")
	assert.Contains(t, summary, "opt=-O3: adds")

	assert.Contains(t, mirror.String(), "\x1b[32mRunning 1 test case...", "the mirror keeps colors")
}

func TestFileLoggerRestartMovesLog(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run")
	require.NoError(t, err)
	defer logger.Close()

	cfg := types.NewTestConfiguration(0, nil)
	logger.OnConfigurationStarted(cfg)
	logger.OnConfigurationCompleted(cfg, resultTree(t, cfg.Name(), types.TestStatusFail))
	assert.FileExists(t, logger.ConfigurationLogFile(cfg, true))

	logger.OnConfigurationStarted(cfg)
	logger.OnConfigurationCompleted(cfg, resultTree(t, cfg.Name(), types.TestStatusPass))
	assert.FileExists(t, logger.ConfigurationLogFile(cfg, false))
	assert.NoFileExists(t, logger.ConfigurationLogFile(cfg, true))
}

func TestFileLoggerIgnoresEventsAfterClose(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run")
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	logger.WriteLine("late")
	cfg := types.NewTestConfiguration(0, nil)
	logger.OnConfigurationStarted(cfg)
	logger.OnConfigurationCompleted(cfg, resultTree(t, cfg.Name(), types.TestStatusPass))
	assert.NoFileExists(t, logger.ConfigurationLogFile(cfg, false))
	assert.NotContains(t, readFile(t, logger.AllLogsFile()), "late")
}

func TestAsyncFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	af, err := NewAsyncFile(path)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.NoError(t, af.Write([]byte("x")))
	}
	require.NoError(t, af.Close())
	require.Error(t, af.Write([]byte("y")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 1000)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d", safeFilename("a/b:c d"))
	assert.Equal(t, "plain", safeFilename("plain"))
}
