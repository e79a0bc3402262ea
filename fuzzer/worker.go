package fuzzer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"alma.local/vmdiff/feedback"
	"alma.local/vmdiff/internal/stats"
	"alma.local/vmdiff/oracle"
	"alma.local/vmdiff/output"
)

// WorkerOpts configures a Worker.
type WorkerOpts struct {
	Oracle   oracle.Config
	Coverage *feedback.CoverageTracker // nil disables coverage feedback
	Stats    *stats.Stats              // nil keeps metrics private to the worker
	Log      logrus.FieldLogger
}

// Worker owns all state that accumulates over a fuzzing session: the type-state set and the
// coverage set. Each worker needs its own instance and its own coverage directories.
// A Worker evaluates one run at a time and is not safe for concurrent use.
type Worker struct {
	typeStates *feedback.TypeStateTracker
	coverage   *feedback.CoverageTracker
	oracle     *oracle.Oracle
	stats      *stats.Stats
	log        logrus.FieldLogger
}

var _ Evaluator = (*Worker)(nil)

// NewWorker creates a Worker with empty novelty sets.
func NewWorker(opts WorkerOpts) (*Worker, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	st := opts.Stats
	if st == nil {
		var err error
		if st, err = stats.New(nil, ""); err != nil {
			return nil, fmt.Errorf("fuzzer: create stats: %w", err)
		}
	}
	for _, rule := range oracle.RuleNames() {
		st.Divergences.WithLabelValues(rule)
	}
	return &Worker{
		typeStates: feedback.NewTypeStateTracker(log),
		coverage:   opts.Coverage,
		oracle:     oracle.New(opts.Oracle),
		stats:      st,
		log:        log,
	}, nil
}

// PreRun isolates the coverage of the next run.
func (w *Worker) PreRun() error {
	if w.coverage == nil {
		return nil
	}
	return w.coverage.PreRun()
}

// Evaluate computes type-state novelty, coverage novelty and the oracle verdict for run.
// The oracle sees the parsed results; type-state novelty is left to the tracker.
// All three are computed even when one feedback path fails; the returned Verdict is valid
// whenever the error is non-nil.
func (w *Worker) Evaluate(run Run) (Outcome, error) {
	w.stats.Runs.Inc()

	first := w.parse("A", run.First)
	second := w.parse("B", run.Second)

	var out Outcome
	exit := oracle.ClassifyExit(run.First.Crashed, run.Second.Crashed)
	out.Verdict = w.oracle.Judge(oracle.Observation{
		Exit:   exit,
		First:  first,
		Second: second,
		Input:  run.Input,
	})
	out.Signals.Divergence = out.Verdict.Divergent

	var errs []error
	novel, err := w.typeStates.IsInteresting(run.First.stdout(), run.Second.stdout())
	if err != nil {
		errs = append(errs, fmt.Errorf("fuzzer: type-state: %w", err))
	}
	out.Signals.TypeState = novel

	if w.coverage != nil {
		out.Signals.Coverage, err = w.coverage.PostRun()
		if err != nil {
			errs = append(errs, fmt.Errorf("fuzzer: coverage: %w", err))
		}
	}

	w.record(out, exit)
	if err := errors.Join(errs...); err != nil {
		w.stats.RunErrors.Inc()
		w.log.WithError(err).Error("run aborted")
		return out, err
	}
	return out, nil
}

// RunOnce executes input with exec and evaluates the result.
func (w *Worker) RunOnce(exec Executor, input []byte) (Outcome, error) {
	if err := w.PreRun(); err != nil {
		return Outcome{}, err
	}
	run, err := exec.Execute(input)
	if err != nil {
		return Outcome{}, fmt.Errorf("fuzzer: execute: %w", err)
	}
	return w.Evaluate(run)
}

func (w *Worker) parse(vm string, c VMCapture) *output.ExecutionResult {
	raw := c.stdout()
	if raw == nil {
		return nil
	}
	res, err := output.ParseErr(raw)
	if err != nil {
		w.stats.ParseFailures.WithLabelValues(vm).Inc()
		w.log.WithFields(logrus.Fields{"vm": vm, "crashed": c.Crashed}).WithError(err).Debug("unparsable output")
		return nil
	}
	return res
}

func (w *Worker) record(out Outcome, exit oracle.ExitClass) {
	if out.Signals.TypeState {
		w.stats.NewTypeStates.Inc()
	}
	if out.Signals.Coverage {
		w.stats.NewCoverage.Inc()
	}
	w.stats.TypeStates.Set(float64(w.typeStates.Len()))
	w.stats.Coverage.Set(float64(w.TotalCoverage()))

	if out.Verdict.Divergent {
		w.stats.Divergences.WithLabelValues(out.Verdict.Rule).Inc()
		w.log.WithFields(logrus.Fields{
			"rule":        out.Verdict.Rule,
			"exit":        exit.String(),
			"cause":       out.Verdict.Cause,
			"fingerprint": out.Verdict.Record.Fingerprint,
		}).Info("divergence found")
	}
}

// TotalCoverage returns the number of covered source locations.
func (w *Worker) TotalCoverage() int {
	if w.coverage == nil {
		return 0
	}
	return w.coverage.Len()
}

// NewCoverage returns the locations first covered by the last run.
func (w *Worker) NewCoverage() int {
	if w.coverage == nil {
		return 0
	}
	return w.coverage.NewLocations()
}

// TypeStates returns the number of distinct type-states seen.
func (w *Worker) TypeStates() int {
	return w.typeStates.Len()
}

// Oracle returns the worker's oracle configuration.
func (w *Worker) Oracle() oracle.Config {
	return w.oracle.Config()
}
