package types

// TestStatus represents the possible states of a test case
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"

	// TestStatusAbsent marks a case that a configuration did not run at all.
	// It never appears inside a ResultTree, only in aggregated reports.
	TestStatusAbsent TestStatus = "absent"
)

// IsFailure reports whether the status counts against a run
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFail || s == TestStatusError
}

// Severity orders statuses so that merging two outcomes of the same case keeps
// the worst one: error > fail > pass > skip > absent.
func (s TestStatus) Severity() int {
	switch s {
	case TestStatusError:
		return 4
	case TestStatusFail:
		return 3
	case TestStatusPass:
		return 2
	case TestStatusSkip:
		return 1
	default:
		return 0
	}
}

// Symbol returns a short marker for table output
func (s TestStatus) Symbol() string {
	switch s {
	case TestStatusPass:
		return "✓ pass"
	case TestStatusFail:
		return "✗ fail"
	case TestStatusSkip:
		return "- skip"
	case TestStatusError:
		return "! error"
	default:
		return "·"
	}
}

// Valid reports whether s is one of the statuses a test case can carry.
func (s TestStatus) Valid() bool {
	switch s {
	case TestStatusPass, TestStatusFail, TestStatusSkip, TestStatusError:
		return true
	default:
		return false
	}
}
