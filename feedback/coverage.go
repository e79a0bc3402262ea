package feedback

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"alma.local/vmdiff/feedback/covdata"
)

// CoverageBackend renders and merges the counter files written by a `-cover` binary.
type CoverageBackend interface {
	// Report renders the text profile of the counters in hotDir.
	Report(hotDir string) ([]byte, error)
	// Merge combines inDirs into outDir.
	Merge(outDir string, inDirs ...string) error
}

// CoverDirs is the directory triple owned by exactly one worker.
type CoverDirs struct {
	Hot         string // GOCOVERDIR of the instrumented target; holds only the current run
	Accumulator string // merged counters of every previous run
	Staging     string // merge output, promoted into Accumulator after each run
}

// WorkerCoverDirs derives a private directory triple for a worker under root.
func WorkerCoverDirs(root string, worker int) CoverDirs {
	base := filepath.Join(root, "worker-"+strconv.Itoa(worker))
	return CoverDirs{
		Hot:         filepath.Join(base, "hot"),
		Accumulator: filepath.Join(base, "merged"),
		Staging:     filepath.Join(base, "staging"),
	}
}

// Validate rejects empty or coinciding directories.
func (d CoverDirs) Validate() error {
	dirs := map[string]string{"hot": d.Hot, "accumulator": d.Accumulator, "staging": d.Staging}
	seen := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("feedback: %s coverage directory is not set", name)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("feedback: resolve %s directory: %w", name, err)
		}
		if other, ok := seen[abs]; ok {
			return fmt.Errorf("feedback: %s and %s coverage directories coincide (%s)", other, name, abs)
		}
		seen[abs] = name
	}
	return nil
}

// Ensure creates the three directories.
func (d CoverDirs) Ensure() error {
	for _, dir := range []string{d.Hot, d.Accumulator, d.Staging} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("feedback: create coverage directory: %w", err)
		}
	}
	return nil
}

// Env returns the environment entry that points the instrumented target at the hot directory.
func (d CoverDirs) Env() string {
	return "GOCOVERDIR=" + d.Hot
}

// CoverageSet is the set of source locations hit at least once.
type CoverageSet map[string]struct{}

// CoverageTracker folds the per-run counter files of the instrumented VM into a cumulative set
// of covered locations. It must be the only writer of its directories.
type CoverageTracker struct {
	dirs    CoverDirs
	backend CoverageBackend
	covered CoverageSet
	lastNew int
	log     logrus.FieldLogger
}

// NewCoverageTracker validates and creates dirs and returns an empty tracker.
func NewCoverageTracker(dirs CoverDirs, backend CoverageBackend, log logrus.FieldLogger) (*CoverageTracker, error) {
	if backend == nil {
		return nil, errors.New("feedback: coverage backend is nil")
	}
	if err := dirs.Validate(); err != nil {
		return nil, err
	}
	if err := dirs.Ensure(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CoverageTracker{
		dirs:    dirs,
		backend: backend,
		covered: make(CoverageSet),
		log:     log,
	}, nil
}

// Dirs returns the tracker's directory triple.
func (c *CoverageTracker) Dirs() CoverDirs {
	return c.dirs
}

// PreRun empties the hot directory so it only receives the next run's counters.
func (c *CoverageTracker) PreRun() error {
	if err := clearDir(c.dirs.Hot); err != nil {
		return fmt.Errorf("feedback: clear hot coverage directory: %w", err)
	}
	return nil
}

// PostRun merges the run's counters into the accumulator and reports whether any location
// was covered for the first time.
func (c *CoverageTracker) PostRun() (bool, error) {
	c.lastNew = 0

	hotEmpty, err := isEmptyDir(c.dirs.Hot)
	if err != nil {
		return false, fmt.Errorf("feedback: read hot coverage directory: %w", err)
	}
	if hotEmpty {
		// The target exited without flushing counters, e.g. on a crash.
		c.log.Debug("no coverage counters written")
		return false, nil
	}

	if err := clearDir(c.dirs.Staging); err != nil {
		return false, fmt.Errorf("feedback: clear staging coverage directory: %w", err)
	}
	inputs := []string{c.dirs.Hot}
	accEmpty, err := isEmptyDir(c.dirs.Accumulator)
	if err != nil {
		return false, fmt.Errorf("feedback: read accumulator coverage directory: %w", err)
	}
	if !accEmpty {
		inputs = append(inputs, c.dirs.Accumulator)
	}

	var (
		report []byte
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		report, err = c.backend.Report(c.dirs.Hot)
		return err
	})
	g.Go(func() error {
		return c.backend.Merge(c.dirs.Staging, inputs...)
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	lines, err := covdata.ParseProfile(report)
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		if !l.Covered() {
			continue
		}
		if _, seen := c.covered[l.Location]; seen {
			continue
		}
		c.covered[l.Location] = struct{}{}
		c.lastNew++
	}

	if err := promote(c.dirs.Staging, c.dirs.Accumulator); err != nil {
		return false, fmt.Errorf("feedback: promote merged coverage: %w", err)
	}

	if c.lastNew > 0 {
		c.log.WithFields(logrus.Fields{
			"new":   c.lastNew,
			"total": len(c.covered),
		}).Debug("new coverage")
	}
	return c.lastNew > 0, nil
}

// Len returns the number of covered locations.
func (c *CoverageTracker) Len() int {
	return len(c.covered)
}

// NewLocations returns how many locations the last PostRun added.
func (c *CoverageTracker) NewLocations() int {
	return c.lastNew
}

// Covered reports whether location has been hit in this session.
func (c *CoverageTracker) Covered(location string) bool {
	_, ok := c.covered[location]
	return ok
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// rename moves a file. It is a variable so tests can force the copy fallback.
var rename = os.Rename

// promote replaces dst's contents with src's, leaving src empty.
func promote(src, dst string) error {
	if err := clearDir(dst); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if err := rename(from, to); err == nil {
			continue
		}
		// Rename fails across filesystems.
		if err := copyFile(from, to); err != nil {
			return err
		}
		if err := os.Remove(from); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
