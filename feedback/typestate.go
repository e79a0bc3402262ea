package feedback

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"alma.local/vmdiff/output"
)

// TypeStateKey is the instruction and operand-type signature of a finished execution:
// the last opcode plus the types of the two topmost stack items.
type TypeStateKey struct {
	Opcode uint8
	First  string
	Second string // empty when the stack held a single item
}

func (k TypeStateKey) String() string {
	return fmt.Sprintf("0x%02x(%s,%s)", k.Opcode, k.First, k.Second)
}

// KeyOf derives the type-state of a result. Only the two topmost items are used, so deeper
// stacks collapse onto the same key. Absent results and empty stacks have no key.
func KeyOf(r *output.ExecutionResult) (TypeStateKey, bool) {
	if r == nil || len(r.EvaluationStack) == 0 {
		return TypeStateKey{}, false
	}
	key := TypeStateKey{
		Opcode: r.LastOpcode,
		First:  r.EvaluationStack[0].Type,
	}
	if len(r.EvaluationStack) > 1 {
		key.Second = r.EvaluationStack[1].Type
	}
	return key, true
}

// TypeStateTracker accumulates the type-states reached by both VMs over a worker's session.
// It is a cheap coverage proxy that works for binaries without instrumentation.
// The set only grows; it is not safe for concurrent use.
type TypeStateTracker struct {
	seen map[TypeStateKey]struct{}
	log  logrus.FieldLogger
}

// NewTypeStateTracker creates an empty tracker.
func NewTypeStateTracker(log logrus.FieldLogger) *TypeStateTracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TypeStateTracker{
		seen: make(map[TypeStateKey]struct{}),
		log:  log,
	}
}

// Observe records the type-states of the given results and reports whether any was new.
// Nil results contribute nothing and do not affect the others.
func (t *TypeStateTracker) Observe(results ...*output.ExecutionResult) bool {
	found := false
	for _, r := range results {
		key, ok := KeyOf(r)
		if !ok {
			continue
		}
		if _, seen := t.seen[key]; seen {
			continue
		}
		t.seen[key] = struct{}{}
		t.log.WithField("state", key.String()).Debug("new type-state")
		found = true
	}
	return found
}

// IsInteresting parses each VM's raw output and observes the results.
// Malformed output is skipped; a nil buffer means nothing was captured and fails the run.
func (t *TypeStateTracker) IsInteresting(outputs ...[]byte) (bool, error) {
	results := make([]*output.ExecutionResult, 0, len(outputs))
	for i, raw := range outputs {
		if raw == nil {
			return false, fmt.Errorf("%w (vm %d)", ErrNoOutput, i)
		}
		res, err := output.ParseErr(raw)
		if err != nil {
			t.log.WithField("vm", i).WithError(err).Debug("skipping unparsable output")
			continue
		}
		results = append(results, res)
	}
	return t.Observe(results...), nil
}

// Len returns the number of distinct type-states seen so far.
func (t *TypeStateTracker) Len() int {
	return len(t.seen)
}

// Contains reports whether key has been seen.
func (t *TypeStateTracker) Contains(key TypeStateKey) bool {
	_, ok := t.seen[key]
	return ok
}
