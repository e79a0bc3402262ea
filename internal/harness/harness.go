// Package harness runs the two VM harness binaries for replaying single inputs.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"alma.local/vmdiff/fuzzer"
	"alma.local/vmdiff/input"
	"alma.local/vmdiff/internal/config"
)

// Process starts one harness binary.
type Process struct {
	Name string
	Path string
	Args []string // config.InputPlaceholder is replaced by the base64 program
	Env  []string // appended to the current environment
}

// FromConfig builds a Process from its configuration entry.
func FromConfig(h config.Harness) Process {
	return Process{Name: h.Name, Path: h.Path, Args: h.Args, Env: h.Env}
}

// Executor runs an input on both harnesses, one after the other.
type Executor struct {
	First   Process
	Second  Process
	Timeout time.Duration
	Log     logrus.FieldLogger
}

var _ fuzzer.Executor = (*Executor)(nil)

// Execute runs program on both VMs. Failing to start a harness is an error; everything the
// harness does once started is reported in the VMCapture.
func (e *Executor) Execute(program []byte) (fuzzer.Run, error) {
	encoded := input.ByteCode(program).Encode()
	first, err := e.run(e.First, encoded)
	if err != nil {
		return fuzzer.Run{}, err
	}
	second, err := e.run(e.Second, encoded)
	if err != nil {
		return fuzzer.Run{}, err
	}
	return fuzzer.Run{Input: program, First: first, Second: second}, nil
}

func (e *Executor) run(p Process, encoded string) (fuzzer.VMCapture, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		args[i] = strings.ReplaceAll(a, config.InputPlaceholder, encoded)
	}
	cmd := exec.CommandContext(ctx, p.Path, args...)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	capture := fuzzer.VMCapture{Stdout: stdout.Bytes(), Captured: true}
	if err == nil {
		return capture, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fuzzer.VMCapture{}, fmt.Errorf("harness: start %s: %w", p.Name, err)
	}
	capture.Crashed = true
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"vm":       p.Name,
		"exit":     exitErr.ExitCode(),
		"timedout": errors.Is(ctx.Err(), context.DeadlineExceeded),
		"stderr":   tail(stderr.String(), 512),
	}).Debug("harness exited abnormally")
	return capture, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
