package engine

import (
	"fmt"
	"strings"

	"sonarherd/internal/config"
	"sonarherd/internal/logging"
	"sonarherd/internal/repolist"
)

// Discovery is what a run starts from: the descriptors that survived
// filtering plus the count of malformed lines that were skipped.
type Discovery struct {
	Repos        []repolist.Descriptor
	SkippedLines int
}

// Discover loads the mapping file, derives project coordinates, enforces key
// uniqueness and applies the include/exclude filters. Duplicate keys are
// fatal: two mapping lines racing to create the same project would make the
// run's result depend on scheduling order, so the file itself is rejected
// before any filtering can mask the problem.
func Discover(cfg *config.Config, log logging.Logger) (Discovery, error) {
	descriptors, skipped, err := repolist.Load(cfg.Mapping.Path)
	if err != nil {
		return Discovery{}, fmt.Errorf("load mapping file: %w", err)
	}

	for _, m := range skipped {
		log.Warn().
			Int("line", m.Line).
			Str("text", m.Text).
			Str("reason", m.Reason).
			Msg("skipping malformed mapping line")
	}

	if dupes := repolist.DuplicateKeys(descriptors); len(dupes) > 0 {
		return Discovery{}, fmt.Errorf("duplicate project keys in mapping file: %s", strings.Join(dupes, ", "))
	}

	descriptors = FilterDescriptors(descriptors, cfg)

	return Discovery{Repos: descriptors, SkippedLines: len(skipped)}, nil
}
