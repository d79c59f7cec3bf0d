package engine

import (
	"context"
	"errors"
	"time"

	"sonarherd/internal/clone"
	"sonarherd/internal/logging"
	"sonarherd/internal/output"
	"sonarherd/internal/repolist"
	"sonarherd/internal/scan"
	"sonarherd/internal/sonar"
	"sonarherd/internal/toolchain"
)

// ProjectEnsurer is the slice of the analysis-server client the pipeline uses.
type ProjectEnsurer interface {
	EnsureProject(ctx context.Context, projectKey, displayName string) (sonar.CreateResult, error)
}

// SourceFetcher clones a repository into a destination directory.
type SourceFetcher interface {
	Fetch(ctx context.Context, cloneURL, dest string) error
}

// Scanner runs the analysis toolchain against a checked-out tree.
type Scanner interface {
	Scan(ctx context.Context, variant toolchain.Variant, dir, projectKey, displayName string) (scan.Result, error)
}

// Scratch hands out and reclaims per-repository clone directories.
type Scratch interface {
	Dir(projectKey string) string
	Remove(projectKey string) error
}

// Pipeline onboards one repository: ensure the project exists on the server,
// clone the source, detect its toolchain and run the scanner. Every step
// failure is folded into the returned Outcome; Run never returns an error
// because a repository failing is a result, not a malfunction.
type Pipeline struct {
	Projects ProjectEnsurer
	Fetcher  SourceFetcher
	Scanner  Scanner
	Scratch  Scratch
	Detect   func(dir string) toolchain.Variant
	Latch    *AuthLatch
	Log      logging.Logger
}

func (p *Pipeline) Run(ctx context.Context, d repolist.Descriptor) output.Outcome {
	start := time.Now()
	o := output.Outcome{
		ProjectKey:  d.Key(),
		DisplayName: d.DisplayName(),
		Location:    d.CloneURL,
		Line:        d.Line,
	}
	log := p.Log.With().Str("project", d.Key()).Logger()

	finish := func() output.Outcome {
		o.Duration = time.Since(start)
		o.DurationMS = o.Duration.Milliseconds()
		return o
	}
	fail := func(step output.Step, err error) output.Outcome {
		kind := kindForStep(step, err)
		if kind == output.KindAuth {
			p.Latch.Trip()
		}
		o.FailedStep = step
		o.ErrKind = kind
		o.Err = err.Error()
		log.Error().Str("step", string(step)).Str("kind", string(kind)).Err(err).Msg("onboarding failed")
		return finish()
	}
	abort := func(step output.Step) output.Outcome {
		o.FailedStep = step
		o.ErrKind = output.KindAborted
		o.Err = "credentials were rejected earlier in the run; repository skipped"
		log.Warn().Str("step", string(step)).Msg("skipped after credential rejection")
		return finish()
	}

	if p.Latch.Tripped() {
		return abort(output.StepEnsureProject)
	}

	res, err := p.Projects.EnsureProject(ctx, d.Key(), d.DisplayName())
	if err != nil {
		return fail(output.StepEnsureProject, err)
	}
	switch res {
	case sonar.ProjectCreated:
		o.Created = true
		log.Info().Msg("created project")
	case sonar.ProjectAlreadyExists:
		o.Existed = true
		log.Debug().Msg("project already on server")
	}

	dest := p.Scratch.Dir(d.Key())
	defer func() {
		if err := p.Scratch.Remove(d.Key()); err != nil {
			log.Warn().Err(err).Str("dir", dest).Msg("failed to remove clone directory")
		}
	}()

	if err := p.Fetcher.Fetch(ctx, d.CloneURL, dest); err != nil {
		return fail(output.StepClone, err)
	}
	o.Cloned = true

	variant := p.Detect(dest)
	o.Toolchain = string(variant)
	log.Debug().Str("toolchain", string(variant)).Msg("detected toolchain")

	// A scan pushes the same token at the server; if another worker already
	// proved it bad, the scan can only fail noisily.
	if p.Latch.Tripped() {
		return abort(output.StepScan)
	}

	if _, err := p.Scanner.Scan(ctx, variant, dest, d.Key(), d.DisplayName()); err != nil {
		return fail(output.StepScan, err)
	}
	o.Scanned = true

	log.Info().Str("toolchain", string(variant)).Dur("elapsed", time.Since(start)).Msg("repository onboarded")
	return finish()
}

// kindForStep classifies a step error into the outcome vocabulary. Wrapped
// sentinels win; anything else falls back to the step's characteristic kind.
func kindForStep(step output.Step, err error) output.ErrKind {
	switch {
	case errors.Is(err, sonar.ErrAuth):
		return output.KindAuth
	case errors.Is(err, sonar.ErrServerUnreachable):
		return output.KindServerUnreachable
	case errors.Is(err, scan.ErrScanTimedOut):
		return output.KindScanTimeout
	case errors.Is(err, scan.ErrScanFailed):
		return output.KindScanFailed
	case errors.Is(err, clone.ErrCloneFailed):
		return output.KindCloneFailed
	}
	switch step {
	case output.StepEnsureProject:
		return output.KindServerUnreachable
	case output.StepClone:
		return output.KindCloneFailed
	default:
		return output.KindScanFailed
	}
}
