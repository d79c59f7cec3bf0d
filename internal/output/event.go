package output

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started (run_id, repos, skipped_lines)
// - repo.finished (the embedded outcome)
// - run.finished (exit_code, summary)
//
// JSON mode remains an aggregate document of outcomes plus the summary.
type Event struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id,omitempty"`
	Project string `json:"project,omitempty"`
	*Outcome
	Repos        int      `json:"repos,omitempty"`
	SkippedLines int      `json:"skipped_lines,omitempty"`
	ExitCode     int      `json:"exit_code,omitempty"`
	Summary      *Summary `json:"summary,omitempty"`
}

func eventFromOutcome(o Outcome) Event {
	return Event{Type: "repo.finished", Project: o.ProjectKey, Outcome: &o}
}
