// Package stats exposes a worker's session counters to Prometheus.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the collectors of one worker.
type Stats struct {
	Runs          prometheus.Counter
	RunErrors     prometheus.Counter
	ParseFailures *prometheus.CounterVec // by vm
	Divergences   *prometheus.CounterVec // by rule
	NewTypeStates prometheus.Counter
	NewCoverage   prometheus.Counter
	TypeStates    prometheus.Gauge
	Coverage      prometheus.Gauge
}

// New creates the collectors for worker and registers them on reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer, worker string) (*Stats, error) {
	labels := prometheus.Labels{"worker": worker}
	s := &Stats{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vmdiff_runs_total",
			Help:        "Runs evaluated by the worker",
			ConstLabels: labels,
		}),
		RunErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vmdiff_run_errors_total",
			Help:        "Runs aborted by a fatal feedback error",
			ConstLabels: labels,
		}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vmdiff_parse_failures_total",
			Help:        "VM outputs that could not be parsed",
			ConstLabels: labels,
		}, []string{"vm"}),
		Divergences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vmdiff_divergences_total",
			Help:        "Divergent runs by deciding oracle rule",
			ConstLabels: labels,
		}, []string{"rule"}),
		NewTypeStates: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vmdiff_typestate_novel_runs_total",
			Help:        "Runs that reached a new type-state",
			ConstLabels: labels,
		}),
		NewCoverage: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vmdiff_coverage_novel_runs_total",
			Help:        "Runs that covered a new source location",
			ConstLabels: labels,
		}),
		TypeStates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "vmdiff_typestates",
			Help:        "Distinct type-states seen in this session",
			ConstLabels: labels,
		}),
		Coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "vmdiff_covered_locations",
			Help:        "Distinct source locations covered in this session",
			ConstLabels: labels,
		}),
	}
	if reg == nil {
		return s, nil
	}
	for _, c := range []prometheus.Collector{
		s.Runs, s.RunErrors, s.ParseFailures, s.Divergences,
		s.NewTypeStates, s.NewCoverage, s.TypeStates, s.Coverage,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}
