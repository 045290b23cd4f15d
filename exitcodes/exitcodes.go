// Package exitcodes defines the standard exit codes used by op-matrix.
package exitcodes

// Exit code constants used by op-matrix:
//
// * Success (0): every configuration ran and no case failed
// * TestFailure (1): a case failed or errored, or the session was stopped
// * RuntimeErr (2): the tool itself could not do its job, eg. a bad config tree
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
