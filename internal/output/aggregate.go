package output

// document is the JSON aggregate that json-format sinks write on Close.
type document struct {
	Outcomes []Outcome `json:"outcomes"`
	Summary  Summary   `json:"summary"`
}

// aggregate accumulates outcomes and lifecycle fields for sinks that render
// everything at Close.
type aggregate struct {
	outcomes []Outcome
	summary  *Summary
	skipped  int
	runID    string
	exitCode int
	finished bool
}

func (a *aggregate) add(v any) {
	switch t := v.(type) {
	case Outcome:
		a.outcomes = append(a.outcomes, t)
	case Event:
		if t.RunID != "" {
			a.runID = t.RunID
		}
		switch t.Type {
		case "run.started":
			a.skipped = t.SkippedLines
		case "run.finished":
			a.exitCode = t.ExitCode
			a.finished = true
			if t.Summary != nil {
				a.summary = t.Summary
			}
		}
	}
}

// summarized prefers the summary delivered on run.finished and folds one from
// the collected outcomes when the run never finished cleanly.
func (a *aggregate) summarized() Summary {
	if a.summary != nil {
		return *a.summary
	}
	return Summarize(a.outcomes, a.skipped)
}

func (a *aggregate) document() document {
	outcomes := a.outcomes
	if outcomes == nil {
		outcomes = []Outcome{}
	}
	return document{Outcomes: outcomes, Summary: a.summarized()}
}
