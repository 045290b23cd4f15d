package runner

import (
	"time"

	"github.com/ethereum-optimism/infra/op-matrix/configtree"
	"github.com/ethereum-optimism/infra/op-matrix/reporting"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// State of the orchestrator
type State int

const (
	StateIdle State = iota
	StateRunning
	StateRestarting
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a session is in flight
func (s State) Active() bool {
	return s == StateRunning || s == StateRestarting
}

// StateNames lists every state, for metrics
func StateNames() []string {
	return []string{
		StateIdle.String(), StateRunning.String(), StateRestarting.String(),
		StateCompleted.String(), StateStopped.String(), StateFailed.String(),
	}
}

// NamedResult is the outcome of one configuration.
type NamedResult struct {
	Configuration types.TestConfiguration
	Tree          *types.ResultTree
	Duration      time.Duration
}

// Session is a point-in-time copy of the execution session. Result trees are
// shared, which is safe since they are immutable.
type Session struct {
	RunID string
	State State
	// ConfigTree is the snapshot the configurations were generated from. It
	// is nil when the session was started from a plain configuration list.
	ConfigTree     *configtree.Tree
	Configurations []types.TestConfiguration
	// Current is the index of the running configuration, or -1.
	Current    int
	Results    []NamedResult
	StartedAt  time.Time
	FinishedAt time.Time
	// Err is set when the session failed.
	Err error
}

// ResultTrees maps configuration names to their result trees.
func (s Session) ResultTrees() map[string]*types.ResultTree {
	out := make(map[string]*types.ResultTree, len(s.Results))
	for _, r := range s.Results {
		out[r.Configuration.Name()] = r.Tree
	}
	return out
}

// Report aggregates the results collected so far.
func (s Session) Report() *reporting.Report {
	return reporting.Aggregate(s.ResultTrees())
}

// Duration is the wall time of the session, up to now when still running.
func (s Session) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// session is the mutable state behind a Session, guarded by the
// orchestrator's mutex.
type session struct {
	runID      string
	tree       *configtree.Tree
	configs    []types.TestConfiguration
	current    int
	results    []NamedResult
	startedAt  time.Time
	finishedAt time.Time
	err        error
	// discard drops the session without reporting, set by Restart.
	discard bool
}

func (s *session) snapshot(state State) Session {
	configs := make([]types.TestConfiguration, len(s.configs))
	copy(configs, s.configs)
	results := make([]NamedResult, len(s.results))
	copy(results, s.results)
	return Session{
		RunID:          s.runID,
		State:          state,
		ConfigTree:     s.tree,
		Configurations: configs,
		Current:        s.current,
		Results:        results,
		StartedAt:      s.startedAt,
		FinishedAt:     s.finishedAt,
		Err:            s.err,
	}
}
