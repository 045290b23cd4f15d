package runner

import "time"

// Execution constants
const (
	// DefaultConfigurationTimeout bounds one external test process
	DefaultConfigurationTimeout = 30 * time.Minute

	// DefaultGracePeriod is how long a cancelled process may take to exit
	// after SIGTERM before it is killed
	DefaultGracePeriod = 10 * time.Second

	// DefaultReportTemplate names the report file of a configuration,
	// relative to the report directory
	DefaultReportTemplate = "{{.Slug}}/report.xml"

	// Environment passed to every external process
	EnvReportPath       = "OP_MATRIX_REPORT_PATH"
	EnvConfigurationKey = "OP_MATRIX_CONFIGURATION"
	EnvConfigurationID  = "OP_MATRIX_CONFIGURATION_SLUG"
	EnvOptionPrefix     = "OP_MATRIX_OPT_"

	// Names of the synthetic cases recorded when a configuration produced no
	// usable report
	CaseProcessLaunch = "process launch"
	CaseTimeout       = "timeout"
	CaseReportParse   = "report parse"
	CaseProcess       = "process"

	// outputDrainTimeout bounds reading output after the process exited, in
	// case a leftover child still holds the pipe open
	outputDrainTimeout = 2 * time.Second
)
