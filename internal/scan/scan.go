// Package scan invokes the analysis scanner matching a repository's
// toolchain and uploads results to the server as a side effect of the
// scanner process itself.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sonarherd/internal/command"
	"sonarherd/internal/logging"
	"sonarherd/internal/toolchain"
)

var (
	// ErrScanFailed marks a scanner step that exited non-zero or never started.
	ErrScanFailed = errors.New("scan failed")

	// ErrScanTimedOut marks a scan that exceeded its time budget.
	ErrScanTimedOut = errors.New("scan timed out")
)

// Options carries the server coordinates and limits baked into every scan.
type Options struct {
	Host           string
	Token          string
	Timeout        time.Duration
	MavenSkipTests bool
}

// Invoker runs scanner commands through a command Runner.
type Invoker struct {
	runner command.Runner
	opts   Options
	log    logging.Logger
}

func NewInvoker(runner command.Runner, opts Options, log logging.Logger) *Invoker {
	return &Invoker{runner: runner, opts: opts, log: log}
}

// Result captures a finished scan.
type Result struct {
	Variant  toolchain.Variant
	Steps    int
	Duration time.Duration
}

// Scan runs the scanner for variant against the checkout in dir. Multi-step
// scans (.NET's begin/build/end) share one timeout budget; the first failing
// step fails the scan with that step's output.
func (v *Invoker) Scan(ctx context.Context, variant toolchain.Variant, dir, projectKey, displayName string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	specs := v.commands(variant, dir, projectKey, displayName)
	start := time.Now()
	for _, spec := range specs {
		v.log.Debug().
			Str("project", projectKey).
			Str("command", spec.Redacted()).
			Msg("scanner step")
		res, err := v.runner.Run(ctx, spec)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Result{}, fmt.Errorf("%w: %s after %s", ErrScanTimedOut, spec.Redacted(), v.opts.Timeout)
			}
			return Result{}, fmt.Errorf("%w: %s: %v: %s", ErrScanFailed, spec.Redacted(), err, res.OutputTail(400))
		}
	}
	return Result{Variant: variant, Steps: len(specs), Duration: time.Since(start)}, nil
}

// commands builds the scanner command sequence for one toolchain. The token
// is marked for redaction on every spec that carries it.
func (v *Invoker) commands(variant toolchain.Variant, dir, key, name string) []command.Spec {
	redact := []string{v.opts.Token}
	switch variant {
	case toolchain.JVMBuild:
		args := []string{
			"clean", "verify", "sonar:sonar",
			"-Dsonar.projectKey=" + key,
			"-Dsonar.projectName=" + name,
			"-Dsonar.host.url=" + v.opts.Host,
			"-Dsonar.login=" + v.opts.Token,
		}
		if v.opts.MavenSkipTests {
			args = append(args, "-DskipTests")
		}
		return []command.Spec{{Name: "mvn", Args: args, Dir: dir, Redact: redact}}

	case toolchain.DotNet:
		return []command.Spec{
			{
				Name: "dotnet",
				Args: []string{
					"sonarscanner", "begin",
					"/k:" + key,
					"/d:sonar.host.url=" + v.opts.Host,
					"/d:sonar.login=" + v.opts.Token,
				},
				Dir:    dir,
				Redact: redact,
			},
			{Name: "dotnet", Args: []string{"build"}, Dir: dir},
			{
				Name:   "dotnet",
				Args:   []string{"sonarscanner", "end", "/d:sonar.login=" + v.opts.Token},
				Dir:    dir,
				Redact: redact,
			},
		}

	default:
		// Go modules and the generic fallback both use the CLI scanner.
		return []command.Spec{{
			Name: "sonar-scanner",
			Args: []string{
				"-Dsonar.projectKey=" + key,
				"-Dsonar.sources=.",
				"-Dsonar.host.url=" + v.opts.Host,
				"-Dsonar.login=" + v.opts.Token,
			},
			Dir:    dir,
			Redact: redact,
		}}
	}
}
