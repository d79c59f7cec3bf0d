package engine

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"sonarherd/internal/config"
	"sonarherd/internal/output"
)

// captureRun swaps stdout and stderr for the duration of one engine run and
// returns everything written to either.
func captureRun(t *testing.T, eng *Engine, cfg *config.Config) (int, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	os.Stdout = w
	os.Stderr = w

	exitCode := eng.Run(context.Background(), cfg)

	_ = w.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()
	return exitCode, buf.String()
}

func TestEngine_Run_NoConsole(t *testing.T) {
	cfg := config.New()
	cfg.Mapping.Path = writeMappingFile(t, twoRepoMapping)
	cfg.Output.NoConsole = true

	eng := newSeamEngine([]output.Outcome{
		okOutcome("team_web-portal"),
		okOutcome("infra_billing-service"),
	})

	_, out := captureRun(t, eng, cfg)

	if strings.TrimSpace(out) != "" {
		t.Errorf("expected no console output when NoConsole is true; got:\n%s", out)
	}
}

func TestEngine_Run_Console_Default(t *testing.T) {
	cfg := config.New()
	cfg.Mapping.Path = writeMappingFile(t, twoRepoMapping)

	eng := newSeamEngine([]output.Outcome{
		okOutcome("team_web-portal"),
		failedOutcome("infra_billing-service", output.StepClone, output.KindCloneFailed),
	})

	exitCode, out := captureRun(t, eng, cfg)

	if exitCode != 1 {
		t.Fatalf("Expected exit code 1, got %d", exitCode)
	}
	for _, want := range []string{
		"Found 2 repositories.",
		"[OK] team_web-portal",
		"[FAIL] infra_billing-service",
		"=== Summary ===",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}
