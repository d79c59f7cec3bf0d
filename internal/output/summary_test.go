package output

import (
	"reflect"
	"testing"
)

func TestSummaryAdd(t *testing.T) {
	var s Summary

	s.Add(Outcome{ProjectKey: "web_portal", Created: true, Cloned: true, Toolchain: "generic", Scanned: true})
	s.Add(Outcome{ProjectKey: "web_api", Existed: true, Cloned: true, Toolchain: "jvm-build", Scanned: true})
	s.Add(Outcome{ProjectKey: "web_etl", Created: true, FailedStep: StepClone, ErrKind: KindCloneFailed, Err: "git clone: exit status 128"})
	s.Add(Outcome{ProjectKey: "web_jobs", Existed: true, Cloned: true, FailedStep: StepScan, ErrKind: KindScanTimeout, Err: "timed out"})
	s.Add(Outcome{ProjectKey: "web_auth", FailedStep: StepEnsureProject, ErrKind: KindAuth, Err: "credentials rejected"})

	if s.Repos != 5 {
		t.Fatalf("Repos = %d, want 5", s.Repos)
	}
	if s.Created != 2 {
		t.Fatalf("Created = %d, want 2", s.Created)
	}
	if s.Existing != 2 {
		t.Fatalf("Existing = %d, want 2", s.Existing)
	}
	if s.Scanned != 2 {
		t.Fatalf("Scanned = %d, want 2", s.Scanned)
	}
	if s.Failed != 3 {
		t.Fatalf("Failed = %d, want 3", s.Failed)
	}
	wantKinds := map[ErrKind]int{KindCloneFailed: 1, KindScanTimeout: 1, KindAuth: 1}
	if !reflect.DeepEqual(s.ByKind, wantKinds) {
		t.Fatalf("ByKind = %v, want %v", s.ByKind, wantKinds)
	}
}

func TestSummarySortedKinds(t *testing.T) {
	s := Summary{ByKind: map[ErrKind]int{
		KindScanTimeout:       2,
		KindAuth:              1,
		KindCloneFailed:       3,
		KindServerUnreachable: 1,
	}}

	got := s.sortedKinds()
	want := []ErrKind{KindAuth, KindCloneFailed, KindScanTimeout, KindServerUnreachable}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortedKinds() = %v, want %v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{ProjectKey: "a", Created: true, Scanned: true},
		{ProjectKey: "b", ErrKind: KindScanFailed, FailedStep: StepScan},
	}

	s := Summarize(outcomes, 2)
	if s.Repos != 2 || s.Created != 1 || s.Scanned != 1 || s.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.SkippedLines != 2 {
		t.Fatalf("SkippedLines = %d, want 2", s.SkippedLines)
	}
}

func TestAggregatePrefersDeliveredSummary(t *testing.T) {
	var a aggregate
	a.add(Event{Type: "run.started", RunID: "run-1", Repos: 3, SkippedLines: 1})
	a.add(Outcome{ProjectKey: "a", Created: true, Scanned: true})

	delivered := Summary{Repos: 3, Created: 1, Existing: 2, Scanned: 3, SkippedLines: 1}
	a.add(Event{Type: "run.finished", RunID: "run-1", ExitCode: 0, Summary: &delivered})

	got := a.summarized()
	if !reflect.DeepEqual(got, delivered) {
		t.Fatalf("summarized() = %+v, want delivered %+v", got, delivered)
	}
	if !a.finished {
		t.Fatalf("aggregate should record run.finished")
	}
	if a.runID != "run-1" {
		t.Fatalf("runID = %q, want run-1", a.runID)
	}
	if a.exitCode != 0 {
		t.Fatalf("exitCode = %d, want 0", a.exitCode)
	}
}

func TestAggregateFoldsWhenRunNeverFinished(t *testing.T) {
	var a aggregate
	a.add(Event{Type: "run.started", Repos: 2, SkippedLines: 3})
	a.add(Outcome{ProjectKey: "a", Existed: true, Scanned: true})
	a.add(Outcome{ProjectKey: "b", ErrKind: KindCloneFailed, FailedStep: StepClone})

	got := a.summarized()
	if got.Repos != 2 || got.Existing != 1 || got.Failed != 1 {
		t.Fatalf("unexpected folded summary: %+v", got)
	}
	if got.SkippedLines != 3 {
		t.Fatalf("SkippedLines = %d, want 3", got.SkippedLines)
	}
	if a.finished {
		t.Fatalf("aggregate must not report finished without run.finished")
	}
}
