package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"sonarherd/internal/clone"
	"sonarherd/internal/command"
	"sonarherd/internal/config"
	"sonarherd/internal/logging"
	"sonarherd/internal/output"
	"sonarherd/internal/repolist"
	"sonarherd/internal/scan"
	"sonarherd/internal/sonar"
	"sonarherd/internal/toolchain"

	"github.com/google/uuid"
)

func exitCodeForRun(fatal, anyFailed bool) int {
	// Exit code contract:
	// 0 = clean run, every repository onboarded
	// 1 = at least one repository failed to onboard
	// 3 = fatal error (bad configuration, rejected credentials, run aborted)
	if fatal {
		return 3
	}
	if anyFailed {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(os.Stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

type Engine struct {
	Client *sonar.Client
	Log    logging.Logger

	// schedulerExecute is a test seam for streaming execution.
	// If nil, Engine builds the real workspace, pipeline and scheduler.
	schedulerExecute func(ctx context.Context, cfg *config.Config, repos []repolist.Descriptor) (<-chan output.Outcome, <-chan error)
}

func NewEngine(client *sonar.Client, log logging.Logger) *Engine {
	return &Engine{
		Client: client,
		Log:    log,
	}
}

func (e *Engine) executeStream(ctx context.Context, cfg *config.Config, runID string, log logging.Logger, repos []repolist.Descriptor) (<-chan output.Outcome, <-chan error) {
	if e.schedulerExecute != nil {
		return e.schedulerExecute(ctx, cfg, repos)
	}

	failNow := func(err error) (<-chan output.Outcome, <-chan error) {
		resCh := make(chan output.Outcome)
		errCh := make(chan error, 1)
		close(resCh)
		errCh <- err
		close(errCh)
		return resCh, errCh
	}

	ws, err := clone.NewWorkspace(cfg.Clone.ScratchDir, runID)
	if err != nil {
		return failNow(fmt.Errorf("create scratch workspace: %w", err))
	}

	runner := command.ExecRunner{}
	pipeline := &Pipeline{
		Projects: e.Client,
		Fetcher:  clone.NewFetcher(runner, cfg.Clone.Depth, cfg.Clone.Timeout, logging.Named(log, "clone")),
		Scanner: scan.NewInvoker(runner, scan.Options{
			Host:           cfg.Server.Host,
			Token:          cfg.Server.Token,
			Timeout:        cfg.Scan.Timeout,
			MavenSkipTests: cfg.Scan.MavenSkipTests,
		}, logging.Named(log, "scan")),
		Scratch: ws,
		Detect:  toolchain.Detect,
		Latch:   &AuthLatch{},
		Log:     logging.Named(log, "pipeline"),
	}

	scheduler, err := NewScheduler(pipeline, cfg.Runtime.Concurrency)
	if err != nil {
		_ = ws.Close()
		return failNow(err)
	}

	resCh, errCh := scheduler.Execute(ctx, repos)

	// The scratch root outlives every pipeline; tear it down once the
	// scheduler is fully drained.
	wrapped := make(chan error, 1)
	go func() {
		defer close(wrapped)
		var last error
		for err := range errCh {
			if err != nil {
				last = err
			}
		}
		if err := ws.Close(); err != nil {
			log.Warn().Err(err).Str("dir", ws.Root()).Msg("failed to remove scratch workspace")
		}
		if last != nil {
			wrapped <- last
		}
	}()

	return resCh, wrapped
}

func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	runID := uuid.NewString()
	log := e.Log.With().Str("run_id", runID).Logger()

	if cfg.Runtime.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()
	}

	disc, err := Discover(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving repositories: %v\n", err)
		return exitCodeForRun(true, false)
	}
	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Found %d repositories.\n", len(disc.Repos))
	}

	if cfg.Mapping.DryRun {
		RenderPlan(os.Stdout, disc.Repos, disc.SkippedLines)
		return 0
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false)
	}
	defer outMgr.Close()

	// Reject bad credentials before spinning up workers. A network error is
	// not fatal here: the per-repository retries may still get through.
	if e.Client != nil {
		if err := e.Client.ValidateAuth(ctx); err != nil {
			if errors.Is(err, sonar.ErrAuth) {
				fmt.Fprintf(os.Stderr, "Error: analysis server rejected the configured token\n")
				return exitCodeForRun(true, false)
			}
			log.Warn().Err(err).Msg("could not validate credentials up front; continuing")
		}
	}

	_ = outMgr.Write(output.Event{Type: "run.started", RunID: runID, Repos: len(disc.Repos), SkippedLines: disc.SkippedLines})

	resCh, errCh := e.executeStream(ctx, cfg, runID, log, disc.Repos)

	var summary output.Summary
	anyFailed := false
	for o := range resCh {
		_ = outMgr.Write(o)
		summary.Add(o)
		if o.Failed() {
			anyFailed = true
		}
	}
	summary.SkippedLines = disc.SkippedLines

	var schedErr error
	// Drain the error channel, keeping one non-nil error.
	for err := range errCh {
		if err != nil {
			schedErr = err
		}
	}
	if schedErr != nil {
		log.Error().Err(schedErr).Msg("run aborted")
	}

	// Rejected credentials poison everything after them; the run is fatal
	// even though some repositories may have finished first.
	authFailed := summary.ByKind[output.KindAuth] > 0

	fatal := schedErr != nil || authFailed
	code := exitCodeForRun(fatal, anyFailed)
	_ = outMgr.Write(output.Event{Type: "run.finished", RunID: runID, ExitCode: code, Summary: &summary})

	log.Info().
		Int("repos", summary.Repos).
		Int("created", summary.Created).
		Int("existing", summary.Existing).
		Int("scanned", summary.Scanned).
		Int("failed", summary.Failed).
		Int("exit_code", code).
		Msg("run finished")
	return code
}
