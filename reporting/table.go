package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// TableOptions tunes the console tables
type TableOptions struct {
	Title    string
	Duration time.Duration
	// Colored picks a green, yellow or red style from the overall outcome.
	Colored bool
}

// RenderSummary writes one row per configuration with its case tally.
func RenderSummary(w io.Writer, report *Report, opts TableOptions) string {
	t := table.NewWriter()
	if w != nil {
		t.SetOutputMirror(w)
	}
	title := opts.Title
	if title == "" {
		title = "Configuration Results"
	}
	if opts.Duration > 0 {
		title = fmt.Sprintf("%s (%s)", title, formatDuration(opts.Duration))
	}
	t.SetTitle(title)

	t.AppendHeader(table.Row{
		"Configuration", "Cases", "Passed", "Failed", "Skipped", "Errored", "Absent", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Configuration", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Cases", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Absent", Align: text.AlignRight},
	})

	for _, config := range report.Configurations {
		c := report.Counts(config)
		t.AppendRow(table.Row{
			config, c.Total, c.Passed, c.Failed, c.Skipped, c.Errored, c.Absent, countsStatus(c).Symbol(),
		})
	}

	total := report.Totals()
	t.AppendFooter(table.Row{
		"TOTAL", total.Total, total.Passed, total.Failed, total.Skipped, total.Errored, total.Absent,
		overallStatus(report).Symbol(),
	})
	if opts.Colored {
		setOutcomeStyle(t, overallStatus(report))
	}
	return t.Render()
}

// RenderMatrix writes one row per case and one column per configuration.
func RenderMatrix(w io.Writer, report *Report, opts TableOptions) string {
	t := table.NewWriter()
	if w != nil {
		t.SetOutputMirror(w)
	}
	title := opts.Title
	if title == "" {
		title = "Case Matrix"
	}
	t.SetTitle(title)

	header := table.Row{"Case"}
	configs := []table.ColumnConfig{
		{Name: "Case", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
	}
	for _, config := range report.Configurations {
		header = append(header, config)
		configs = append(configs, table.ColumnConfig{
			Name: config, WidthMax: 24, WidthMaxEnforcer: text.WrapSoft, Align: text.AlignCenter,
		})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, outcome := range report.Cases {
		row := table.Row{outcome.ID}
		for _, config := range report.Configurations {
			row = append(row, outcome.Statuses[config].Symbol())
		}
		t.AppendRow(row)
	}

	footer := table.Row{"FAILED"}
	for _, config := range report.Configurations {
		c := report.Counts(config)
		footer = append(footer, c.Failed+c.Errored)
	}
	t.AppendFooter(footer)
	if opts.Colored {
		setOutcomeStyle(t, overallStatus(report))
	}
	return t.Render()
}

// RenderPlan lists the configurations a run will execute.
func RenderPlan(w io.Writer, configs []types.TestConfiguration) string {
	t := table.NewWriter()
	if w != nil {
		t.SetOutputMirror(w)
	}
	t.SetTitle(fmt.Sprintf("Execution Plan (%d configurations)", len(configs)))
	t.AppendHeader(table.Row{"#", "Configuration", "Choices", "Slug"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Choices", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, cfg := range configs {
		var choices []string
		for _, ch := range cfg.Choices() {
			choices = append(choices, fmt.Sprintf("%s: %s (%s)", ch.Group, ch.Option, ch.Value))
		}
		t.AppendRow(table.Row{cfg.Index(), cfg.Name(), strings.Join(choices, "\n"), cfg.Slug()})
	}
	return t.Render()
}

func setOutcomeStyle(t table.Writer, status types.TestStatus) {
	switch status {
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
}

func countsStatus(c types.Counts) types.TestStatus {
	switch {
	case c.Failed > 0:
		return types.TestStatusFail
	case c.Errored > 0:
		return types.TestStatusError
	case c.Passed > 0:
		return types.TestStatusPass
	default:
		return types.TestStatusSkip
	}
}

func overallStatus(r *Report) types.TestStatus {
	return countsStatus(r.Totals())
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
