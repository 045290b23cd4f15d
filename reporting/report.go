package reporting

import (
	"sort"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// CaseOutcome is the status of one test case across all configurations.
type CaseOutcome struct {
	// ID is the suite path below the root plus the case name
	ID       string                      `json:"id"`
	Statuses map[string]types.TestStatus `json:"statuses"`
	Messages map[string]string           `json:"messages,omitempty"`
}

// Report is the cross-configuration view of a set of result trees.
type Report struct {
	Configurations []string      `json:"configurations"`
	Cases          []CaseOutcome `json:"cases"`

	index  map[string]int
	counts map[string]types.Counts
}

// Aggregate folds result trees keyed by configuration name into a Report.
// The input is never modified and iteration order does not matter: the
// configurations and cases of the report are sorted by name. A case that a
// configuration did not run is reported as absent for it. When a tree holds
// the same case ID twice the most severe status wins.
func Aggregate(trees map[string]*types.ResultTree) *Report {
	r := &Report{
		index:  make(map[string]int),
		counts: make(map[string]types.Counts),
	}
	for name := range trees {
		r.Configurations = append(r.Configurations, name)
	}
	sort.Strings(r.Configurations)

	byID := make(map[string]*CaseOutcome)
	for _, config := range r.Configurations {
		tree := trees[config]
		if tree == nil {
			continue
		}
		tree.WalkCases(func(path []string, c *types.Case) {
			id := types.CaseID(path, c.Name())
			outcome, ok := byID[id]
			if !ok {
				outcome = &CaseOutcome{ID: id, Statuses: make(map[string]types.TestStatus)}
				byID[id] = outcome
			}
			if prev, seen := outcome.Statuses[config]; seen && prev.Severity() >= c.Status().Severity() {
				return
			}
			outcome.Statuses[config] = c.Status()
			if c.Message() != "" {
				if outcome.Messages == nil {
					outcome.Messages = make(map[string]string)
				}
				outcome.Messages[config] = c.Message()
			} else if outcome.Messages != nil {
				delete(outcome.Messages, config)
			}
		})
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r.Cases = make([]CaseOutcome, 0, len(ids))
	for _, id := range ids {
		outcome := byID[id]
		for _, config := range r.Configurations {
			if _, ok := outcome.Statuses[config]; !ok {
				outcome.Statuses[config] = types.TestStatusAbsent
			}
		}
		r.index[id] = len(r.Cases)
		r.Cases = append(r.Cases, *outcome)
	}

	for _, config := range r.Configurations {
		var c types.Counts
		for _, outcome := range r.Cases {
			c.Add(outcome.Statuses[config])
		}
		r.counts[config] = c
	}
	return r
}

// Status returns the status of a case under a configuration, or absent when
// either is unknown.
func (r *Report) Status(caseID, configuration string) types.TestStatus {
	i, ok := r.index[caseID]
	if !ok {
		return types.TestStatusAbsent
	}
	status, ok := r.Cases[i].Statuses[configuration]
	if !ok {
		return types.TestStatusAbsent
	}
	return status
}

// Case looks up the outcome of one case
func (r *Report) Case(caseID string) (CaseOutcome, bool) {
	i, ok := r.index[caseID]
	if !ok {
		return CaseOutcome{}, false
	}
	return r.Cases[i], true
}

// Counts tallies the cases of one configuration, including absent ones.
func (r *Report) Counts(configuration string) types.Counts {
	return r.counts[configuration]
}

// Totals sums the counts of every configuration.
func (r *Report) Totals() types.Counts {
	var total types.Counts
	for _, config := range r.Configurations {
		c := r.counts[config]
		total.Total += c.Total
		total.Passed += c.Passed
		total.Failed += c.Failed
		total.Skipped += c.Skipped
		total.Errored += c.Errored
		total.Absent += c.Absent
	}
	return total
}

// HasFailures reports whether any case failed or errored in any configuration.
func (r *Report) HasFailures() bool {
	for _, config := range r.Configurations {
		c := r.counts[config]
		if c.Failed > 0 || c.Errored > 0 {
			return true
		}
	}
	return false
}

// FailedCases lists "configuration: case" for every failed or errored case.
func (r *Report) FailedCases() []string {
	var out []string
	for _, config := range r.Configurations {
		for _, outcome := range r.Cases {
			if outcome.Statuses[config].IsFailure() {
				out = append(out, config+": "+outcome.ID)
			}
		}
	}
	return out
}
