package engine

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"sonarherd/internal/config"
	"sonarherd/internal/logging"
)

func writeMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mapping file: %v", err)
	}
	return path
}

func discoveredKeys(d Discovery) []string {
	var keys []string
	for _, r := range d.Repos {
		keys = append(keys, r.Key())
	}
	return keys
}

func TestDiscover(t *testing.T) {
	t.Run("valid mapping file", func(t *testing.T) {
		cfg := config.New()
		cfg.Mapping.Path = writeMappingFile(t, strings.Join([]string{
			"# onboarding batch for Q3",
			"team,https://github.com/acme/web-portal.git",
			"",
			"team,https://github.com/acme/web-api",
			"infra,https://bitbucket.org/acme/billing-service/",
		}, "\n"))

		disc, err := Discover(cfg, logging.Logger{})
		if err != nil {
			t.Fatalf("Discover failed: %v", err)
		}
		want := []string{"team_web-portal", "team_web-api", "infra_billing-service"}
		if got := discoveredKeys(disc); !slices.Equal(got, want) {
			t.Fatalf("Expected repos %v, got %v", want, got)
		}
		if disc.SkippedLines != 0 {
			t.Errorf("SkippedLines = %d, want 0", disc.SkippedLines)
		}
	})

	t.Run("malformed lines are skipped and counted", func(t *testing.T) {
		cfg := config.New()
		cfg.Mapping.Path = writeMappingFile(t, strings.Join([]string{
			"team,https://github.com/acme/web-portal.git",
			"no-comma-here",
			",https://github.com/acme/orphan.git",
			"infra,https://github.com/acme/billing-service.git",
		}, "\n"))

		disc, err := Discover(cfg, logging.Logger{})
		if err != nil {
			t.Fatalf("Discover failed: %v", err)
		}
		want := []string{"team_web-portal", "infra_billing-service"}
		if got := discoveredKeys(disc); !slices.Equal(got, want) {
			t.Fatalf("Expected repos %v, got %v", want, got)
		}
		if disc.SkippedLines != 2 {
			t.Errorf("SkippedLines = %d, want 2", disc.SkippedLines)
		}
	})

	t.Run("duplicate project keys are fatal", func(t *testing.T) {
		cfg := config.New()
		// Different locations, same derived key.
		cfg.Mapping.Path = writeMappingFile(t, strings.Join([]string{
			"team,https://github.com/acme/app.git",
			"team,git@github.com:legacy/app.git",
		}, "\n"))

		_, err := Discover(cfg, logging.Logger{})
		if err == nil {
			t.Fatal("expected duplicate-key error")
		}
		if !strings.Contains(err.Error(), "duplicate project keys") || !strings.Contains(err.Error(), "team_app") {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("filters cannot mask duplicate keys", func(t *testing.T) {
		cfg := config.New()
		cfg.Mapping.Include = []string{"matches-nothing"}
		cfg.Mapping.Path = writeMappingFile(t, strings.Join([]string{
			"team,https://github.com/acme/app.git",
			"team,git@github.com:legacy/app.git",
		}, "\n"))

		if _, err := Discover(cfg, logging.Logger{}); err == nil {
			t.Fatal("expected duplicate-key error even with a non-matching include filter")
		}
	})

	t.Run("filters apply to the discovered set", func(t *testing.T) {
		cfg := config.New()
		cfg.Mapping.Include = []string{"web-*"}
		cfg.Mapping.Path = writeMappingFile(t, strings.Join([]string{
			"team,https://github.com/acme/web-portal.git",
			"team,https://github.com/acme/web-api.git",
			"infra,https://github.com/acme/billing-service.git",
		}, "\n"))

		disc, err := Discover(cfg, logging.Logger{})
		if err != nil {
			t.Fatalf("Discover failed: %v", err)
		}
		want := []string{"team_web-portal", "team_web-api"}
		if got := discoveredKeys(disc); !slices.Equal(got, want) {
			t.Fatalf("Expected repos %v, got %v", want, got)
		}
	})

	t.Run("missing mapping file", func(t *testing.T) {
		cfg := config.New()
		cfg.Mapping.Path = filepath.Join(t.TempDir(), "does-not-exist.txt")

		_, err := Discover(cfg, logging.Logger{})
		if err == nil {
			t.Fatal("expected error for missing mapping file")
		}
		if !strings.Contains(err.Error(), "load mapping file") {
			t.Fatalf("error = %v", err)
		}
	})
}
