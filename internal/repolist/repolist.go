// Package repolist reads the repository mapping file and derives the
// identifiers each repository is onboarded under.
package repolist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Descriptor is one mapping-file entry. It is immutable once parsed;
// everything downstream works from the derived fields.
type Descriptor struct {
	// Prefix namespaces the project key, typically a team or org handle.
	Prefix string

	// RawLocation is the repository location exactly as written in the
	// mapping file.
	RawLocation string

	// CloneURL is the normalized location handed to git: https GitHub and
	// Bitbucket URLs rewritten to their SSH form, trailing slashes and
	// Bitbucket Server "/browse" suffixes stripped.
	CloneURL string

	// ShortName is the final path segment of the location with any ".git"
	// suffix removed.
	ShortName string

	// Line is the 1-based mapping-file line the entry came from.
	Line int
}

// Key returns the project key the analysis server tracks this repository under.
func (d Descriptor) Key() string { return d.Prefix + "_" + d.ShortName }

// DisplayName returns the human-readable project name shown in the server UI.
func (d Descriptor) DisplayName() string { return d.Prefix + "-" + d.ShortName }

// Malformed describes a mapping-file line that was skipped.
type Malformed struct {
	Line   int
	Text   string
	Reason string
}

// Load reads the mapping file at path. Malformed lines are skipped and
// reported, not fatal; an unreadable file is.
func Load(path string) ([]Descriptor, []Malformed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads descriptors from r, one "prefix,location" pair per line.
// Blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) ([]Descriptor, []Malformed, error) {
	var (
		descriptors []Descriptor
		skipped     []Malformed
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		prefix, location, ok := strings.Cut(text, ",")
		if !ok {
			skipped = append(skipped, Malformed{Line: line, Text: text, Reason: "missing comma separator"})
			continue
		}
		prefix = strings.TrimSpace(prefix)
		location = strings.TrimSpace(location)
		if prefix == "" || location == "" {
			skipped = append(skipped, Malformed{Line: line, Text: text, Reason: "empty prefix or location"})
			continue
		}
		d := Derive(prefix, location)
		d.Line = line
		if d.ShortName == "" {
			skipped = append(skipped, Malformed{Line: line, Text: text, Reason: "cannot derive repository name"})
			continue
		}
		descriptors = append(descriptors, d)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read mapping file: %w", err)
	}
	return descriptors, skipped, nil
}

// Derive builds a Descriptor from a prefix and a raw repository location.
// Derivation is pure: the same inputs always yield the same identifiers,
// so re-running a mapping file is idempotent.
func Derive(prefix, location string) Descriptor {
	normalized := normalizeLocation(location)
	return Descriptor{
		Prefix:      prefix,
		RawLocation: location,
		CloneURL:    ToSSHURL(normalized),
		ShortName:   shortName(normalized),
	}
}

func normalizeLocation(location string) string {
	loc := strings.TrimSpace(location)
	loc = strings.TrimRight(loc, "/")
	// Bitbucket Server web URLs end in /browse; the clone URL does not.
	loc = strings.TrimSuffix(loc, "/browse")
	return strings.TrimRight(loc, "/")
}

// ToSSHURL rewrites well-known https clone URLs to their SSH form so that
// cloning uses the operator's SSH credentials. Anything else (SSH already,
// other hosts, local paths) passes through unchanged.
func ToSSHURL(location string) string {
	if rest, ok := strings.CutPrefix(location, "https://github.com/"); ok {
		return "git@github.com:" + rest
	}
	if rest, ok := strings.CutPrefix(location, "https://bitbucket.org/"); ok {
		return "git@bitbucket.org:" + rest
	}
	return location
}

// shortName extracts the final path segment, tolerating both URL and
// scp-like SSH syntax, and strips a ".git" suffix.
func shortName(location string) string {
	seg := location
	if i := strings.LastIndexAny(seg, "/:"); i >= 0 {
		seg = seg[i+1:]
	}
	return strings.TrimSuffix(seg, ".git")
}

// DuplicateKeys returns the project keys that more than one descriptor
// derives to, sorted. Duplicates are a configuration error: two entries
// would silently share one server project.
func DuplicateKeys(list []Descriptor) []string {
	seen := make(map[string]int, len(list))
	for _, d := range list {
		seen[d.Key()]++
	}
	var dups []string
	for key, n := range seen {
		if n > 1 {
			dups = append(dups, key)
		}
	}
	sort.Strings(dups)
	return dups
}
