package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	agg    aggregate
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{
		writer: w,
		format: format,
	}
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	switch s.format {
	case "json":
		s.agg.add(v)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case Outcome:
			e := eventFromOutcome(t)
			if err := encoder.Encode(e); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	case "text":
		switch t := v.(type) {
		case Outcome:
			if _, err := fmt.Fprintln(s.writer, outcomeLine(t)); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case Event:
			// Lifecycle events are not printed, but the run.finished
			// event carries the summary the Close block renders.
			s.agg.add(t)
			return nil
		default:
			return nil
		}
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.agg.document()); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		if !s.agg.finished {
			// Interrupted run: no summary block, the per-repo lines
			// already said everything we know.
			return nil
		}
		if err := writeSummaryBlock(s.writer, s.agg.summarized()); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func outcomeLine(o Outcome) string {
	if o.Failed() {
		tag := color.New(color.FgRed).Sprint("[FAIL]")
		return fmt.Sprintf("%s %s: %s", tag, o.ProjectKey, o.Err)
	}

	tag := color.New(color.FgGreen).Sprint("[OK]")
	verb := "already on server"
	if o.Created {
		verb = "created"
	}
	parts := []string{verb}
	if o.Scanned {
		parts = append(parts, fmt.Sprintf("scanned (%s)", o.Toolchain))
	}
	return fmt.Sprintf("%s %s: %s in %s", tag, o.ProjectKey, strings.Join(parts, ", "), o.Duration.Round(time.Millisecond))
}

func writeSummaryBlock(w io.Writer, sum Summary) error {
	printf := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}

	if err := printf("\n=== Summary ===\n"); err != nil {
		return err
	}
	if err := printf("Created:        %d\n", sum.Created); err != nil {
		return err
	}
	if err := printf("Already exists: %d\n", sum.Existing); err != nil {
		return err
	}
	if err := printf("Scanned:        %d\n", sum.Scanned); err != nil {
		return err
	}
	if err := printf("Failed:         %d\n", sum.Failed); err != nil {
		return err
	}
	for _, kind := range sum.sortedKinds() {
		if err := printf("  %s: %d\n", kind, sum.ByKind[kind]); err != nil {
			return err
		}
	}
	if sum.SkippedLines > 0 {
		if err := printf("Skipped lines:  %d\n", sum.SkippedLines); err != nil {
			return err
		}
	}
	return nil
}
