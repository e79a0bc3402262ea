package oracle

import (
	"fmt"

	"alma.local/vmdiff/output"
)

const (
	CauseStack  = "different stack"
	CauseStatus = "different status"
)

// Config holds the session-fixed strictness switches.
type Config struct {
	// DetectStatusDivergence reports differing statuses. Off by default.
	DetectStatusDivergence bool
	// DetectCrashDivergence reports runs where exactly one VM process crashed.
	DetectCrashDivergence bool
}

// DefaultConfig detects crash divergences only.
func DefaultConfig() Config {
	return Config{DetectCrashDivergence: true}
}

// Observation is everything the oracle sees of one run.
type Observation struct {
	Exit   ExitClass
	First  *output.ExecutionResult // nil when VM-A's output did not parse
	Second *output.ExecutionResult // nil when VM-B's output did not parse
	Input  []byte                  // canonical encoding of the input
}

// Verdict is the oracle's decision for one run.
type Verdict struct {
	Divergent bool
	Rule      string // name of the rule that decided, empty when none matched
	Cause     string
	Record    *TriageRecord // set only for divergent runs
}

// rule inspects an observation. matched stops evaluation; divergent is the resulting decision.
type rule struct {
	name  string
	check func(cfg Config, obs Observation) (cause string, matched, divergent bool)
}

// rules are evaluated in order and the first match wins. A one-sided crash outranks anything
// the outputs say; stacks are only compared when both VMs halted.
var rules = []rule{
	{name: "crash-divergence", check: crashDivergence},
	{name: "stack-divergence", check: stackDivergence},
	{name: "status-divergence", check: statusDivergence},
}

func crashDivergence(cfg Config, obs Observation) (string, bool, bool) {
	if !cfg.DetectCrashDivergence || !obs.Exit.OneCrashed() {
		return "", false, false
	}
	return fmt.Sprintf("different exit code: %s / %s",
		exitWord(obs.Exit.FirstCrashed()), exitWord(obs.Exit.SecondCrashed())), true, true
}

func stackDivergence(_ Config, obs Observation) (string, bool, bool) {
	if obs.First == nil || obs.Second == nil {
		return "", false, false
	}
	if obs.First.Status != obs.Second.Status || !obs.First.Halted() {
		return "", false, false
	}
	if output.StacksEqual(obs.First.EvaluationStack, obs.Second.EvaluationStack) {
		return "", false, false
	}
	return CauseStack, true, true
}

func statusDivergence(cfg Config, obs Observation) (string, bool, bool) {
	if obs.First == nil || obs.Second == nil || obs.First.Status == obs.Second.Status {
		return "", false, false
	}
	return CauseStatus, true, cfg.DetectStatusDivergence
}

func exitWord(crashed bool) string {
	if crashed {
		return "crashed"
	}
	return "normal"
}

// Oracle decides whether two VMs diverged on one input. It keeps no state between runs.
type Oracle struct {
	cfg Config
}

// New returns an Oracle with the given configuration.
func New(cfg Config) *Oracle {
	return &Oracle{cfg: cfg}
}

// Config returns the oracle's configuration.
func (o *Oracle) Config() Config {
	return o.cfg
}

// Judge applies the rules to obs.
func (o *Oracle) Judge(obs Observation) Verdict {
	for _, r := range rules {
		cause, matched, divergent := r.check(o.cfg, obs)
		if !matched {
			continue
		}
		v := Verdict{Divergent: divergent, Rule: r.name, Cause: cause}
		if divergent {
			v.Record = NewTriageRecord(obs.Input, obs.First, obs.Second, cause)
		}
		return v
	}
	return Verdict{}
}

// RuleNames lists the rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}
