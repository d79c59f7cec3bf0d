package output

import "sort"

// Summary aggregates a run's outcomes into the counters the console block,
// the JSON document and the report all present.
type Summary struct {
	Repos    int `json:"repos"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Scanned  int `json:"scanned"`
	Failed   int `json:"failed"`
	// ByKind breaks Failed down by error kind.
	ByKind map[ErrKind]int `json:"failures_by_kind,omitempty"`
	// SkippedLines counts malformed mapping lines that never became outcomes.
	SkippedLines int `json:"skipped_lines,omitempty"`
}

func (s *Summary) Add(o Outcome) {
	s.Repos++
	if o.Created {
		s.Created++
	}
	if o.Existed {
		s.Existing++
	}
	if o.Scanned {
		s.Scanned++
	}
	if o.Failed() {
		s.Failed++
		if s.ByKind == nil {
			s.ByKind = make(map[ErrKind]int)
		}
		s.ByKind[o.ErrKind]++
	}
}

// Summarize folds outcomes into a Summary. Sinks use it as a fallback when
// the run.finished event never arrived (e.g. the run was interrupted).
func Summarize(outcomes []Outcome, skippedLines int) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Add(o)
	}
	s.SkippedLines = skippedLines
	return s
}

// sortedKinds returns the failure kinds in deterministic order for rendering.
func (s Summary) sortedKinds() []ErrKind {
	kinds := make([]ErrKind, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
