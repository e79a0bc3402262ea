// Package covdata drives `go tool covdata` for binaries built with `-cover` and parses the
// text profiles it renders.
package covdata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultPackage is the package whose statements are reported for the neo-go harness.
const DefaultPackage = "github.com/nspcc-dev/neo-go/pkg/vm"

// ErrToolchain signals that the coverage toolchain could not be run or exited with an error.
var ErrToolchain = errors.New("covdata: toolchain failed")

// Toolchain is the coverage backend backed by the Go toolchain.
type Toolchain struct {
	GoBin   string // defaults to "go"
	Package string // restricts reports; defaults to DefaultPackage
}

// NewToolchain returns a Toolchain for pkg using the go binary found on PATH.
func NewToolchain(goBin, pkg string) *Toolchain {
	if goBin == "" {
		goBin = "go"
	}
	if pkg == "" {
		pkg = DefaultPackage
	}
	return &Toolchain{GoBin: goBin, Package: pkg}
}

// runTool executes the toolchain. It is a variable so tests can inject failures.
var runTool = func(bin string, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v: %s", ErrToolchain, bin, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Report renders the text profile of the counter files in hotDir.
func (t *Toolchain) Report(hotDir string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "vmdiff-profile-*.txt")
	if err != nil {
		return nil, fmt.Errorf("covdata: create profile file: %w", err)
	}
	profilePath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(profilePath)

	if _, err := runTool(t.GoBin, "tool", "covdata", "textfmt",
		"-i", hotDir,
		"-o", profilePath,
		"-pkg", t.Package,
	); err != nil {
		return nil, err
	}
	report, err := os.ReadFile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("covdata: read profile: %w", err)
	}
	return report, nil
}

// Merge combines the counter directories in inDirs into outDir.
func (t *Toolchain) Merge(outDir string, inDirs ...string) error {
	if len(inDirs) == 0 {
		return fmt.Errorf("%w: merge without inputs", ErrToolchain)
	}
	cleaned := make([]string, len(inDirs))
	for i, d := range inDirs {
		cleaned[i] = filepath.Clean(d)
	}
	_, err := runTool(t.GoBin, "tool", "covdata", "merge",
		"-i="+strings.Join(cleaned, ","),
		"-o", outDir,
	)
	return err
}
