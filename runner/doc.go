// Package runner drives an external test binary once per test configuration
// and turns the XML report each run leaves behind into a result tree.
//
// The Orchestrator owns the session state machine:
//
//	Idle -> Running -> Completed | Stopped | Failed
//	Running | Completed | Stopped | Failed -> Restarting -> Running
//
// Configurations run strictly one after another. A configuration whose
// process cannot be launched, times out or leaves an unreadable report is
// recorded as a result tree holding a single errored case and the session
// moves on.
package runner
