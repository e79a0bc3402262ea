package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alma.local/vmdiff/feedback/covdata"
	"alma.local/vmdiff/oracle"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, oracle.Config{DetectCrashDivergence: true}, cfg.Oracle())
	assert.Equal(t, covdata.DefaultPackage, cfg.Coverage.Package)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, 5*time.Second, cfg.TimeoutDuration())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdiff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
worker: 2
detect_status_divergence: true
detect_crash_divergence: false
log_level: debug
findings_dir: out/crashes
timeout: 750ms
coverage:
  enabled: true
  root: /tmp/cov
first:
  name: go
  path: /opt/harness/neo-go
  args: ["-i", "{input}"]
  env: ["NEOGO_TRACE=0"]
second:
  path: /opt/harness/neo-sharp
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, oracle.Config{DetectStatusDivergence: true}, cfg.Oracle())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, 750*time.Millisecond, cfg.TimeoutDuration())
	assert.Equal(t, []string{"-i", InputPlaceholder}, cfg.First.Args)
	assert.Equal(t, "neo-sharp", cfg.Second.Name, "unset fields keep defaults")
	assert.Equal(t, []string{InputPlaceholder, "DUMMY"}, cfg.Second.Args)
	assert.Equal(t, filepath.Join("/tmp/cov", "worker-2", "hot"), cfg.CoverDirs().Hot)
}

func TestParse_Invalid(t *testing.T) {
	testCases := map[string]string{
		"unknown_field":    "detect_everything: true\n",
		"bad_yaml":         "worker: [\n",
		"negative_worker":  "worker: -1\n",
		"bad_level":        "log_level: loud\n",
		"bad_timeout":      "timeout: soon\n",
		"zero_timeout":     "timeout: 0s\n",
		"missing_path":     "first:\n  path: \"\"\n",
		"bad_env":          "second:\n  path: x\n  env: [\"NOEQUALS\"]\n",
		"coverage_no_root": "coverage:\n  enabled: true\n  root: \"\"\n",
	}
	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
