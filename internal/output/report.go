package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ReportSink renders a Markdown summary of the run on Close. It is meant for
// humans reviewing a batch onboarding afterwards, not for machines; use the
// json/ndjson sinks for that.
type ReportSink struct {
	path string
	file *os.File
	mu   sync.Mutex
	agg  aggregate
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path: path,
		file: f,
	}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.add(v)
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeErr := func(err error) error {
		_ = s.file.Close()
		return err
	}

	// Deterministic ordering regardless of worker completion order.
	outcomes := append([]Outcome(nil), s.agg.outcomes...)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ProjectKey < outcomes[j].ProjectKey })

	sum := s.agg.summarized()

	var b strings.Builder
	b.WriteString("# Onboarding Report\n\n")

	if s.agg.runID != "" {
		b.WriteString(fmt.Sprintf("Run `%s` processed %d repositories", s.agg.runID, sum.Repos))
	} else {
		b.WriteString(fmt.Sprintf("Processed %d repositories", sum.Repos))
	}
	if s.agg.finished {
		b.WriteString(fmt.Sprintf(" and finished with exit code %d.\n\n", s.agg.exitCode))
	} else {
		b.WriteString(". The run did not finish cleanly; counts cover completed repositories only.\n\n")
	}

	b.WriteString("| Repos | Created | Already existed | Scanned | Failed |\n")
	b.WriteString("| ---: | ---: | ---: | ---: | ---: |\n")
	b.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d |\n\n",
		sum.Repos, sum.Created, sum.Existing, sum.Scanned, sum.Failed))

	if len(sum.ByKind) > 0 {
		b.WriteString("Failures by kind: ")
		var parts []string
		for _, kind := range sum.sortedKinds() {
			parts = append(parts, fmt.Sprintf("%s %d", kind, sum.ByKind[kind]))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(".\n\n")
	}

	b.WriteString("## Repositories\n\n")
	if len(outcomes) == 0 {
		b.WriteString("No repositories entered the run.\n\n")
	} else {
		b.WriteString("| Project | Source | Result | Toolchain | Duration |\n")
		b.WriteString("| --- | --- | --- | --- | ---: |\n")
		for _, o := range outcomes {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				o.ProjectKey, o.Location, resultCell(o), toolchainCell(o), o.Duration.Round(time.Millisecond)))
		}
		b.WriteString("\n")
	}

	var failures []Outcome
	for _, o := range outcomes {
		if o.Failed() {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, o := range failures {
			if o.Line > 0 {
				b.WriteString(fmt.Sprintf("### %s (line %d)\n\n", o.ProjectKey, o.Line))
			} else {
				b.WriteString(fmt.Sprintf("### %s\n\n", o.ProjectKey))
			}
			b.WriteString(fmt.Sprintf("Step `%s` failed (%s):\n\n", o.FailedStep, o.ErrKind))
			b.WriteString("```\n")
			b.WriteString(strings.TrimRight(o.Err, "\n"))
			b.WriteString("\n```\n\n")
		}
	}

	if sum.SkippedLines > 0 {
		b.WriteString("## Skipped mapping lines\n\n")
		b.WriteString(fmt.Sprintf("%d mapping line(s) were malformed and skipped. The log records each line and the reason.\n", sum.SkippedLines))
	}

	if _, err := s.file.WriteString(b.String()); err != nil {
		return writeErr(fmt.Errorf("failed to write report: %w", err))
	}
	return s.file.Close()
}

func resultCell(o Outcome) string {
	if o.Failed() {
		return string(o.ErrKind)
	}
	verb := "existed"
	if o.Created {
		verb = "created"
	}
	if o.Scanned {
		return verb + ", scanned"
	}
	return verb
}

func toolchainCell(o Outcome) string {
	if o.Toolchain == "" {
		return "-"
	}
	return o.Toolchain
}
