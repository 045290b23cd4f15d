package reporting

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Summary is the document written by the JSON report writer.
type Summary struct {
	RunID          string                `json:"runId"`
	Timestamp      time.Time             `json:"timestamp"`
	Duration       time.Duration         `json:"duration"`
	State          string                `json:"state"`
	HasFailures    bool                  `json:"hasFailures"`
	Totals         types.Counts          `json:"totals"`
	Configurations []ConfigurationResult `json:"configurations"`
	Cases          []CaseOutcome         `json:"cases"`
}

// ConfigurationResult is the tally of one configuration
type ConfigurationResult struct {
	Name   string           `json:"name"`
	Status types.TestStatus `json:"status"`
	Counts types.Counts     `json:"counts"`
}

// Meta describes the session a report belongs to
type Meta struct {
	RunID     string
	State     string
	Timestamp time.Time
	Duration  time.Duration
}

// NewSummary builds the JSON view of a report
func NewSummary(report *Report, meta Meta) Summary {
	s := Summary{
		RunID:       meta.RunID,
		Timestamp:   meta.Timestamp,
		Duration:    meta.Duration,
		State:       meta.State,
		HasFailures: report.HasFailures(),
		Totals:      report.Totals(),
		Cases:       report.Cases,
	}
	for _, config := range report.Configurations {
		c := report.Counts(config)
		s.Configurations = append(s.Configurations, ConfigurationResult{
			Name:   config,
			Status: countsStatus(c),
			Counts: c,
		})
	}
	return s
}

// WriteJSON encodes the report summary as indented JSON.
func WriteJSON(w io.Writer, report *Report, meta Meta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewSummary(report, meta)); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	return nil
}

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr,omitempty"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr,omitempty"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr,omitempty"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes one testsuite per configuration. Cases a configuration
// did not run are left out of its suite.
func WriteJUnit(w io.Writer, report *Report, meta Meta) error {
	doc := junitTestSuites{Name: meta.RunID}
	if meta.Duration > 0 {
		doc.Time = fmt.Sprintf("%.3f", meta.Duration.Seconds())
	}
	for _, config := range report.Configurations {
		suite := junitTestSuite{Name: config}
		if !meta.Timestamp.IsZero() {
			suite.Timestamp = meta.Timestamp.UTC().Format(time.RFC3339)
		}
		for _, outcome := range report.Cases {
			status := outcome.Statuses[config]
			if status == types.TestStatusAbsent {
				continue
			}
			tc := junitTestCase{Name: outcome.ID, ClassName: config}
			if i := strings.LastIndex(outcome.ID, "/"); i >= 0 {
				tc.ClassName = config + "." + strings.ReplaceAll(outcome.ID[:i], "/", ".")
				tc.Name = outcome.ID[i+1:]
			}
			msg := outcome.Messages[config]
			switch status {
			case types.TestStatusFail:
				tc.Failure = &junitMessage{Message: firstLine(msg), Text: msg}
				suite.Failures++
			case types.TestStatusError:
				tc.Error = &junitMessage{Message: firstLine(msg), Text: msg}
				suite.Errors++
			case types.TestStatusSkip:
				tc.Skipped = &junitMessage{Message: firstLine(msg)}
				suite.Skipped++
			}
			suite.Tests++
			suite.Cases = append(suite.Cases, tc)
		}
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Skipped += suite.Skipped
		doc.Suites = append(doc.Suites, suite)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode junit report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes the report to path, as JUnit XML for .xml files and as
// JSON otherwise.
func WriteFile(path string, report *Report, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xml") {
		err = WriteJUnit(f, report, meta)
	} else {
		err = WriteJSON(f, report, meta)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
