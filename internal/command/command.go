// Package command runs external processes on behalf of pipeline steps.
//
// Clone and scan never shell out directly; they describe the process as a
// Spec and hand it to a Runner. Tests substitute a fake Runner, production
// uses ExecRunner.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Spec describes one external process invocation.
type Spec struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the caller's.
	Dir string

	// Env entries are appended to the parent environment.
	Env []string

	// Redact lists argument substrings that must never reach logs.
	Redact []string
}

// Redacted renders the command line for logging with every Redact value masked.
func (s Spec) Redacted() string {
	line := s.Name
	if len(s.Args) > 0 {
		line += " " + strings.Join(s.Args, " ")
	}
	for _, secret := range s.Redact {
		if secret == "" {
			continue
		}
		line = strings.ReplaceAll(line, secret, "****")
	}
	return line
}

// Result captures what an invocation did.
type Result struct {
	// ExitCode is the process exit code, or -1 if the process never ran or
	// was killed before exiting on its own.
	ExitCode int

	// Output is the combined stdout and stderr.
	Output []byte

	Duration time.Duration
}

// OutputTail returns up to n trailing bytes of output, trimmed, for error
// messages that should carry the interesting end of a long build log.
func (r Result) OutputTail(n int) string {
	out := strings.TrimSpace(string(r.Output))
	if len(out) <= n {
		return out
	}
	return "..." + out[len(out)-n:]
}

// Runner executes external processes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner runs processes with os/exec, killing the child when ctx ends.
type ExecRunner struct{}

// Run executes spec and blocks until it exits or ctx ends. A non-zero exit
// and a failure to start both return a non-nil error alongside the Result;
// ctx expiry surfaces as the context's error so callers can classify
// timeouts with errors.Is.
func (ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	start := time.Now()
	out, err := cmd.CombinedOutput()
	res := Result{ExitCode: 0, Output: out, Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	// The kill triggered by ctx surfaces as "signal: killed"; report the
	// context's own error instead so callers see the deadline.
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", spec.Name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, fmt.Errorf("%s exited with code %d", spec.Name, res.ExitCode)
	}
	return res, fmt.Errorf("start %s: %w", spec.Name, err)
}
