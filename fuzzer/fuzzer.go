package fuzzer

import (
	"alma.local/vmdiff/feedback"
	"alma.local/vmdiff/oracle"
)

// Outcome is the complete decision for one run.
type Outcome struct {
	Signals feedback.Signals
	Verdict oracle.Verdict
}

// Evaluator turns the raw outputs of one run into feedback and an oracle verdict.
type Evaluator interface {
	// PreRun prepares per-run state before the VMs are started.
	PreRun() error

	// Evaluate computes all three signals for a finished run.
	Evaluate(run Run) (Outcome, error)

	// TotalCoverage returns the number of covered source locations.
	TotalCoverage() int

	// NewCoverage returns the locations first covered by the last run.
	NewCoverage() int
}
