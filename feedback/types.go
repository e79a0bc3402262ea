package feedback

import "errors"

// ErrNoOutput signals that the executor captured nothing for a VM. Every harness is expected to
// print a result, so this points at a broken environment rather than an interesting input.
var ErrNoOutput = errors.New("feedback: no output captured")

// Signals is the compact per-run verdict handed back to the scheduler.
type Signals struct {
	TypeState  bool // a previously unseen (opcode, top types) state was reached
	Coverage   bool // the instrumented VM hit a previously unseen source location
	Divergence bool // the oracle found a bug-indicating disagreement between the VMs
}

// Interesting reports whether the input should be kept in the corpus.
// Feedback signals are combined with a logical OR; divergence is routed to the findings corpus instead.
func (s Signals) Interesting() bool {
	return s.TypeState || s.Coverage
}
