package clone

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sonarherd/internal/command"
	"sonarherd/internal/logging"
)

// ErrCloneFailed marks a clone that failed or timed out. The wrapping message
// carries the tail of git's output.
var ErrCloneFailed = errors.New("clone failed")

// Fetcher shallow-clones repositories through a command Runner.
type Fetcher struct {
	runner  command.Runner
	depth   int
	timeout time.Duration
	log     logging.Logger
}

func NewFetcher(runner command.Runner, depth int, timeout time.Duration, log logging.Logger) *Fetcher {
	return &Fetcher{runner: runner, depth: depth, timeout: timeout, log: log}
}

// Fetch clones cloneURL into dest, which must not exist yet; git creates it.
// The call is bounded by the fetcher's timeout.
func (f *Fetcher) Fetch(ctx context.Context, cloneURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	spec := command.Spec{
		Name: "git",
		Args: []string{"clone", "--depth", strconv.Itoa(f.depth), cloneURL, dest},
		// GIT_TERMINAL_PROMPT=0 keeps git from blocking a worker on a
		// credential prompt.
		Env: []string{"GIT_TERMINAL_PROMPT=0"},
	}
	f.log.Debug().Str("url", cloneURL).Str("dest", dest).Msg("cloning")

	res, err := f.runner.Run(ctx, spec)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: timed out after %s", ErrCloneFailed, cloneURL, f.timeout)
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrCloneFailed, cloneURL, err, res.OutputTail(400))
	}
	f.log.Debug().Str("url", cloneURL).Dur("elapsed", res.Duration).Msg("clone finished")
	return nil
}
