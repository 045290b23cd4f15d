package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

const (
	MetricsNamespace = "op_matrix"
)

// Configuration outcomes recorded by RecordConfiguration
const (
	OutcomeCompleted     = "completed"
	OutcomeTimeout       = "timeout"
	OutcomeLaunchFailed  = "launch_failed"
	OutcomeParseFailed   = "parse_failed"
	OutcomeProcessFailed = "process_failed"
	OutcomeInterrupted   = "interrupted"
)

var (
	Debug                bool = true
	validOutcomes             = []string{OutcomeCompleted, OutcomeTimeout, OutcomeLaunchFailed, OutcomeParseFailed, OutcomeProcessFailed, OutcomeInterrupted}
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip, types.TestStatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	configurationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "configurations_total",
		Help:      "Count of executed configurations by outcome",
	}, []string{
		"run_id",
		"outcome",
	})

	configurationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "configuration_duration_seconds",
		Help:      "Wall time of one configuration including report parsing",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{
		"outcome",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of test case outcomes per configuration",
	}, []string{
		"run_id",
		"configuration",
		"result",
	})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_state",
		Help:      "1 for the current state of the execution session, 0 otherwise",
	}, []string{
		"state",
	})

	sessionDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_duration_seconds",
		Help:      "Duration of the last finished session",
	}, []string{
		"run_id",
		"state",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordConfiguration(runID string, outcome string, duration time.Duration) {
	if !slices.Contains(validOutcomes, outcome) {
		log.Error("RecordConfiguration - invalid outcome", "outcome", outcome)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "configurations_total",
			"run_id", runID,
			"outcome", outcome,
			"duration", duration)
	}
	configurationsTotal.WithLabelValues(runID, outcome).Inc()
	configurationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCases adds the case tally of one configuration's result tree
func RecordCases(runID string, configuration string, counts types.Counts) {
	for result, n := range map[types.TestStatus]int{
		types.TestStatusPass:  counts.Passed,
		types.TestStatusFail:  counts.Failed,
		types.TestStatusSkip:  counts.Skipped,
		types.TestStatusError: counts.Errored,
	} {
		if !isValidResult(result) || n == 0 {
			continue
		}
		casesTotal.WithLabelValues(runID, configuration, string(result)).Add(float64(n))
	}
}

// RecordSessionState marks state as the current one. states lists every
// known state so the others can be reset.
func RecordSessionState(state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

func RecordSession(runID string, state string, duration time.Duration) {
	sessionDuration.WithLabelValues(runID, state).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
