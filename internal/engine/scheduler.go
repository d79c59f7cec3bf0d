package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sonarherd/internal/output"
	"sonarherd/internal/repolist"
)

// PipelineRunner abstracts the per-repository pipeline for the scheduler.
type PipelineRunner interface {
	Run(ctx context.Context, d repolist.Descriptor) output.Outcome
}

type Scheduler struct {
	pipeline    PipelineRunner
	concurrency int
}

func NewScheduler(p PipelineRunner, concurrency int) (*Scheduler, error) {
	if p == nil {
		return nil, errors.New("pipeline is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{pipeline: p, concurrency: concurrency}, nil
}

// Execute streams per-repository outcomes.
//
// Channel semantics:
//   - In the normal (non-canceled) case, exactly one Outcome is sent per
//     descriptor, in completion order.
//   - On context cancellation, the scheduler stops promptly; it may emit
//     fewer than N outcomes.
//   - The results channel and error channel are both closed reliably.
//   - The error channel carries fatal errors / cancellation signals only;
//     per-repository failures are ordinary Outcomes.
func (s *Scheduler) Execute(ctx context.Context, repos []repolist.Descriptor) (<-chan output.Outcome, <-chan error) {
	resultsCh := make(chan output.Outcome)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultsCh)
		defer close(errCh)

		trySendErr := func(err error) {
			if err == nil {
				return
			}
			select {
			case errCh <- err:
			default:
			}
		}

		if ctx == nil {
			trySendErr(errors.New("context is nil"))
			return
		}
		if s == nil {
			trySendErr(errors.New("scheduler is nil"))
			return
		}
		if s.pipeline == nil {
			trySendErr(errors.New("scheduler pipeline is nil"))
			return
		}
		if s.concurrency <= 0 {
			trySendErr(fmt.Errorf("scheduler concurrency must be >= 1, got %d", s.concurrency))
			return
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Limit active repositories (favor repo completion).
		sem := make(chan struct{}, s.concurrency)
		var wg sync.WaitGroup

	scheduleLoop:
		for _, d := range repos {
			if runCtx.Err() != nil {
				break
			}

			select {
			case sem <- struct{}{}:
				// acquired
			case <-runCtx.Done():
				break scheduleLoop
			}

			wg.Add(1)
			go func(d repolist.Descriptor) {
				defer wg.Done()
				defer func() { <-sem }()

				out := s.pipeline.Run(runCtx, d)

				if runCtx.Err() != nil {
					return
				}
				select {
				case resultsCh <- out:
				case <-runCtx.Done():
				}
			}(d)
		}

		wg.Wait()
		trySendErr(ctx.Err())
	}()

	return resultsCh, errCh
}
