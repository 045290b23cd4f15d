//go:build unix

package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/runner"
)

const sampleTree = `<?xml version="1.0" encoding="UTF-8"?>
<node name="build" type="root">
  <node name="opt" type="category">
    <node name="O0" type="keyvalue" value="-O0" selected="true"/>
    <node name="O2" type="keyvalue" value="-O2" selected="true"/>
  </node>
</node>
`

// testScript writes a Boost style report; the divides case fails when the
// FAIL_WITH variable matches the optimisation level.
const testScript = `#!/bin/sh
echo "testing $OP_MATRIX_OPT_OPT"
if [ "$OP_MATRIX_OPT_OPT" = "$FAIL_WITH" ]; then
  result=failed
else
  result=passed
fi
cat > "$OP_MATRIX_REPORT_PATH" <<REPORT
<TestResult>
  <TestSuite name="Master">
    <TestCase name="adds" result="passed"/>
    <TestCase name="divides" result="$result"/>
  </TestSuite>
</TestResult>
REPORT
`

func newTestMatrix(t *testing.T, tree string) (*matrix, *Config, *bytes.Buffer, chan error) {
	t.Helper()
	dir := t.TempDir()
	treePath := filepath.Join(dir, "tree.xml")
	require.NoError(t, os.WriteFile(treePath, []byte(tree), 0o644))
	binary := filepath.Join(dir, "unit_tests")
	require.NoError(t, os.WriteFile(binary, []byte(testScript), 0o755))

	cfg := &Config{
		ConfigTree:     treePath,
		TestBinary:     binary,
		ReportDir:      filepath.Join(dir, "reports"),
		ReportTemplate: runner.DefaultReportTemplate,
		Schema:         runner.BoostSchema,
		FlagStyle:      runner.FlagStyleEnv,
		Timeout:        runner.DefaultConfigurationTimeout,
		GracePeriod:    runner.DefaultGracePeriod,
		LogDir:         filepath.Join(dir, "logs"),
		Output:         filepath.Join(dir, "out", "report.json"),
		Log:            log.NewLogger(log.DiscardHandler()),
	}
	shutdown := make(chan error, 1)
	m, err := New(context.Background(), cfg, "test", func(err error) { shutdown <- err })
	require.NoError(t, err)

	var out bytes.Buffer
	m.stdout = &out
	m.console.out = &out
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m, cfg, &out, shutdown
}

func TestMatrixPasses(t *testing.T) {
	t.Setenv("FAIL_WITH", "none")
	m, cfg, out, shutdown := newTestMatrix(t, sampleTree)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, <-shutdown)

	assert.Contains(t, out.String(), "[1/2] opt=-O0")
	assert.Contains(t, out.String(), "Configuration Results")
	assert.Contains(t, out.String(), "Case Matrix")

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	var summary struct {
		State       string `json:"state"`
		HasFailures bool   `json:"hasFailures"`
	}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "completed", summary.State)
	assert.False(t, summary.HasFailures)

	require.NoError(t, m.Stop(context.Background()))
	assert.True(t, m.Stopped())
	assert.Equal(t, "testrun-"+m.files.RunID(), filepath.Base(m.files.Dir()))
	assert.FileExists(t, filepath.Join(m.files.Dir(), "all.log"))
	assert.FileExists(t, filepath.Join(m.files.Dir(), "summary.log"))
}

func TestMatrixReportsFailures(t *testing.T) {
	t.Setenv("FAIL_WITH", "-O2")
	m, _, out, _ := newTestMatrix(t, sampleTree)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "opt=-O2: divides")
	assert.Contains(t, out.String(), "Failed cases:")
}

func TestMatrixCancelledStops(t *testing.T) {
	t.Setenv("FAIL_WITH", "none")
	m, _, _, _ := newTestMatrix(t, sampleTree)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Start(ctx)
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "session stopped after 0 of 2 configurations")
}

func TestNewRejectsBadTree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<node name="build" type="category"/>`), 0o644))

	_, err := New(context.Background(), &Config{
		ConfigTree: path,
		TestBinary: "/bin/true",
		Schema:     runner.BoostSchema,
		LogDir:     filepath.Join(dir, "logs"),
		Log:        log.NewLogger(log.DiscardHandler()),
	}, "test", func(error) {})
	require.Error(t, err)

	_, err = New(context.Background(), nil, "test", func(error) {})
	require.Error(t, err)
}
