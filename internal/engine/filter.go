package engine

import (
	"path"
	"strings"

	"sonarherd/internal/config"
	"sonarherd/internal/repolist"
)

// FilterDescriptors applies the include/exclude name patterns and the
// max-repos cap, preserving mapping-file order.
func FilterDescriptors(repos []repolist.Descriptor, cfg *config.Config) []repolist.Descriptor {
	if cfg == nil {
		panic("engine.FilterDescriptors: cfg must not be nil")
	}

	includePatterns := cfg.Mapping.Include
	excludePatterns := cfg.Mapping.Exclude

	var filtered []repolist.Descriptor
	for _, d := range repos {
		// If Include is set, must match at least one
		if len(includePatterns) > 0 && !matchesAnyPattern(includePatterns, d.Key(), d.ShortName) {
			continue
		}

		// If Exclude is set, must not match any
		if len(excludePatterns) > 0 && matchesAnyPattern(excludePatterns, d.Key(), d.ShortName) {
			continue
		}

		filtered = append(filtered, d)
	}

	// Max repos
	if cfg.Mapping.MaxRepos > 0 && len(filtered) > cfg.Mapping.MaxRepos {
		filtered = filtered[:cfg.Mapping.MaxRepos]
	}

	return filtered
}

func matchesAnyPattern(patterns []string, projectKey, shortName string) bool {
	for _, p := range patterns {
		if matchPattern(p, projectKey, shortName) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, projectKey, shortName string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	// If the pattern includes a prefix component (contains '_'), match against
	// the full project key. Otherwise match against the short repository name
	// so patterns like "*-service" work across prefixes.
	if strings.Contains(pattern, "_") {
		matched, _ := path.Match(pattern, projectKey)
		return matched
	}
	matched, _ := path.Match(pattern, shortName)
	return matched
}
