// Package config loads the session configuration of a vmdiff worker.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"alma.local/vmdiff/feedback"
	"alma.local/vmdiff/feedback/covdata"
	"alma.local/vmdiff/oracle"
)

// InputPlaceholder is replaced by the base64 program in harness arguments.
const InputPlaceholder = "{input}"

// Harness describes how to start one VM's harness binary.
type Harness struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
	Env  []string `yaml:"env"`
}

// Coverage configures Go statement coverage of the first harness.
type Coverage struct {
	Enabled bool   `yaml:"enabled"`
	Root    string `yaml:"root"`
	Package string `yaml:"package"`
	GoBin   string `yaml:"go_bin"`
}

// Config is the session configuration. It is read once at startup.
type Config struct {
	Worker                 int      `yaml:"worker"`
	DetectStatusDivergence bool     `yaml:"detect_status_divergence"`
	DetectCrashDivergence  bool     `yaml:"detect_crash_divergence"`
	LogLevel               string   `yaml:"log_level"`
	FindingsDir            string   `yaml:"findings_dir"`
	Timeout                string   `yaml:"timeout"`
	Coverage               Coverage `yaml:"coverage"`
	First                  Harness  `yaml:"first"`
	Second                 Harness  `yaml:"second"`
}

// Default returns the configuration used for fields absent from the file.
func Default() Config {
	return Config{
		DetectCrashDivergence: true,
		LogLevel:              "info",
		FindingsDir:           "crashes",
		Timeout:               "5s",
		Coverage: Coverage{
			Root:    "go-cover",
			Package: covdata.DefaultPackage,
			GoBin:   "go",
		},
		First: Harness{
			Name: "neo-go",
			Path: "./harness/neo-go",
			Args: []string{InputPlaceholder, "DUMMY"},
		},
		Second: Harness{
			Name: "neo-sharp",
			Path: "./harness/neo-sharp",
			Args: []string{InputPlaceholder, "DUMMY"},
		},
	}
}

// Load parses the YAML file at path on top of Default and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse is Load for in-memory YAML.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks fields that would otherwise fail late in a session.
func (c Config) Validate() error {
	if c.Worker < 0 {
		return fmt.Errorf("worker must not be negative, got %d", c.Worker)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("timeout must be a positive duration, got %q", c.Timeout)
	}
	for label, h := range map[string]Harness{"first": c.First, "second": c.Second} {
		if h.Path == "" {
			return fmt.Errorf("%s harness is missing a path", label)
		}
		for _, kv := range h.Env {
			if !strings.Contains(kv, "=") {
				return fmt.Errorf("%s harness env entry %q is not KEY=VALUE", label, kv)
			}
		}
	}
	if c.Coverage.Enabled {
		if c.Coverage.Root == "" || c.Coverage.Package == "" {
			return fmt.Errorf("coverage is enabled but root or package is empty: %+v", c.Coverage)
		}
	}
	return nil
}

// Oracle returns the oracle switches.
func (c Config) Oracle() oracle.Config {
	return oracle.Config{
		DetectStatusDivergence: c.DetectStatusDivergence,
		DetectCrashDivergence:  c.DetectCrashDivergence,
	}
}

// CoverDirs returns this worker's private coverage directories.
func (c Config) CoverDirs() feedback.CoverDirs {
	return feedback.WorkerCoverDirs(c.Coverage.Root, c.Worker)
}

// TimeoutDuration returns the per-process timeout. Validate has already checked it.
func (c Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Level returns the parsed log level. Validate has already checked it.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
