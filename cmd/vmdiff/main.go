// Command vmdiff replays base64 programs against both VM harnesses and reports the
// feedback signals and oracle verdict of every run.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"alma.local/vmdiff/feedback"
	"alma.local/vmdiff/feedback/covdata"
	"alma.local/vmdiff/fuzzer"
	"alma.local/vmdiff/input"
	"alma.local/vmdiff/internal/config"
	"alma.local/vmdiff/internal/harness"
	"alma.local/vmdiff/internal/stats"
)

var (
	configPath  = flag.String("config", "", "Path to the YAML session config (defaults apply when empty)")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address, e.g. :9100")
	jsonLogs    = flag.Bool("json_logs", false, "Emit logs as JSON")
)

// report is one line of the CLI's stdout.
type report struct {
	Input       string `json:"input"`
	TypeState   bool   `json:"typestate"`
	Coverage    bool   `json:"coverage"`
	Divergence  bool   `json:"divergence"`
	Cause       string `json:"cause,omitempty"`
	Finding     string `json:"finding,omitempty"`
	Error       string `json:"error,omitempty"`
	TypeStates  int    `json:"typestates"`
	CoveredLocs int    `json:"covered"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vmdiff [flags] <base64 program>... (or - to read programs from stdin)\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	if *jsonLogs {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.WithError(err).Fatal("load config")
		}
	}
	log.SetLevel(cfg.Level())
	entry := log.WithField("worker", cfg.Worker)

	programs, err := collectPrograms(flag.Args(), os.Stdin)
	if err != nil {
		entry.WithError(err).Fatal("read programs")
	}
	if len(programs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	reg := prometheus.NewRegistry()
	st, err := stats.New(reg, strconv.Itoa(cfg.Worker))
	if err != nil {
		entry.WithError(err).Fatal("register metrics")
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				entry.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	first := harness.FromConfig(cfg.First)
	opts := fuzzer.WorkerOpts{Oracle: cfg.Oracle(), Stats: st, Log: entry}
	if cfg.Coverage.Enabled {
		dirs := cfg.CoverDirs()
		cov, err := feedback.NewCoverageTracker(dirs,
			covdata.NewToolchain(cfg.Coverage.GoBin, cfg.Coverage.Package), entry)
		if err != nil {
			entry.WithError(err).Fatal("set up coverage")
		}
		opts.Coverage = cov
		first.Env = append(append([]string{}, first.Env...), dirs.Env())
	}
	worker, err := fuzzer.NewWorker(opts)
	if err != nil {
		entry.WithError(err).Fatal("create worker")
	}
	exec := &harness.Executor{
		First:   first,
		Second:  harness.FromConfig(cfg.Second),
		Timeout: cfg.TimeoutDuration(),
		Log:     entry,
	}

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for _, prog := range programs {
		out, err := worker.RunOnce(exec, prog)
		r := report{
			Input:       prog.Encode(),
			TypeState:   out.Signals.TypeState,
			Coverage:    out.Signals.Coverage,
			Divergence:  out.Signals.Divergence,
			Cause:       out.Verdict.Cause,
			TypeStates:  worker.TypeStates(),
			CoveredLocs: worker.TotalCoverage(),
		}
		if err != nil {
			failed = true
			r.Error = err.Error()
		}
		if out.Verdict.Record != nil {
			path, werr := out.Verdict.Record.WriteFile(cfg.FindingsDir)
			if werr != nil {
				failed = true
				entry.WithError(werr).Error("persist finding")
			} else {
				r.Finding = path
			}
		}
		if err := enc.Encode(r); err != nil {
			entry.WithError(err).Fatal("write report")
		}
	}
	if failed {
		os.Exit(1)
	}
}

// collectPrograms decodes the positional arguments; "-" reads one program per line from stdin.
func collectPrograms(args []string, stdin io.Reader) ([]input.ByteCode, error) {
	var progs []input.ByteCode
	for _, arg := range args {
		if arg != "-" {
			p, err := input.Decode(arg)
			if err != nil {
				return nil, err
			}
			progs = append(progs, p)
			continue
		}
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			p, err := input.Decode(line)
			if err != nil {
				return nil, err
			}
			progs = append(progs, p)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	return progs, nil
}
