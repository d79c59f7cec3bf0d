package repolist

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDerive_Identifiers(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		location string
		wantURL  string
		wantKey  string
		wantName string
	}{
		{
			name:     "github_https_rewritten_to_ssh",
			prefix:   "platform",
			location: "https://github.com/acme/billing.git",
			wantURL:  "git@github.com:acme/billing.git",
			wantKey:  "platform_billing",
			wantName: "platform-billing",
		},
		{
			name:     "bitbucket_https_rewritten_to_ssh",
			prefix:   "data",
			location: "https://bitbucket.org/acme/etl",
			wantURL:  "git@bitbucket.org:acme/etl",
			wantKey:  "data_etl",
			wantName: "data-etl",
		},
		{
			name:     "ssh_url_passes_through",
			prefix:   "infra",
			location: "git@github.com:acme/terraform-stacks.git",
			wantURL:  "git@github.com:acme/terraform-stacks.git",
			wantKey:  "infra_terraform-stacks",
			wantName: "infra-terraform-stacks",
		},
		{
			name:     "trailing_slash_stripped",
			prefix:   "web",
			location: "https://github.com/acme/storefront/",
			wantURL:  "git@github.com:acme/storefront",
			wantKey:  "web_storefront",
			wantName: "web-storefront",
		},
		{
			name:     "bitbucket_server_browse_suffix",
			prefix:   "core",
			location: "https://stash.acme.dev/projects/CORE/repos/ledger/browse",
			wantURL:  "https://stash.acme.dev/projects/CORE/repos/ledger",
			wantKey:  "core_ledger",
			wantName: "core-ledger",
		},
		{
			name:     "other_host_untouched",
			prefix:   "lab",
			location: "https://gitlab.example.com/group/tool.git",
			wantURL:  "https://gitlab.example.com/group/tool.git",
			wantKey:  "lab_tool",
			wantName: "lab-tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Derive(tt.prefix, tt.location)
			if d.CloneURL != tt.wantURL {
				t.Errorf("CloneURL = %q, want %q", d.CloneURL, tt.wantURL)
			}
			if d.Key() != tt.wantKey {
				t.Errorf("Key() = %q, want %q", d.Key(), tt.wantKey)
			}
			if d.DisplayName() != tt.wantName {
				t.Errorf("DisplayName() = %q, want %q", d.DisplayName(), tt.wantName)
			}
			if d.RawLocation != tt.location {
				t.Errorf("RawLocation = %q, want original %q", d.RawLocation, tt.location)
			}
		})
	}
}

func TestDerive_Idempotent(t *testing.T) {
	first := Derive("platform", "https://github.com/acme/billing/")
	second := Derive("platform", "https://github.com/acme/billing/")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated derivation differs: %+v vs %+v", first, second)
	}
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	input := strings.Join([]string{
		"# onboarding batch for Q3",
		"",
		"platform,https://github.com/acme/billing.git",
		"   ",
		"data,git@bitbucket.org:acme/etl.git",
	}, "\n")

	got, skipped, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("expected no skipped lines, got %v", skipped)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(got))
	}
	if got[0].Key() != "platform_billing" || got[1].Key() != "data_etl" {
		t.Fatalf("unexpected keys: %s, %s", got[0].Key(), got[1].Key())
	}
	if got[0].Line != 3 || got[1].Line != 5 {
		t.Fatalf("unexpected line numbers: %d, %d", got[0].Line, got[1].Line)
	}
}

func TestParse_ReportsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"no-comma-here",
		",https://github.com/acme/orphan.git",
		"platform,",
		"platform,https://github.com/acme/ok.git",
	}, "\n")

	got, skipped, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(got) != 1 || got[0].Key() != "platform_ok" {
		t.Fatalf("expected only the valid descriptor, got %v", got)
	}
	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped lines, got %d: %v", len(skipped), skipped)
	}
	if skipped[0].Line != 1 || skipped[1].Line != 2 || skipped[2].Line != 3 {
		t.Fatalf("unexpected skipped line numbers: %v", skipped)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	got, skipped, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(got) != 0 || len(skipped) != 0 {
		t.Fatalf("expected empty results, got %v / %v", got, skipped)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.txt")
	content := "platform,https://github.com/acme/billing.git\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 1 || len(skipped) != 0 {
		t.Fatalf("unexpected results: %v / %v", got, skipped)
	}
}

func TestDuplicateKeys(t *testing.T) {
	list := []Descriptor{
		Derive("platform", "https://github.com/acme/billing.git"),
		Derive("platform", "https://github.com/mirror/billing.git"),
		Derive("data", "https://github.com/acme/etl.git"),
		Derive("data", "git@bitbucket.org:acme/etl.git"),
		Derive("web", "https://github.com/acme/storefront.git"),
	}
	want := []string{"data_etl", "platform_billing"}
	if got := DuplicateKeys(list); !reflect.DeepEqual(got, want) {
		t.Fatalf("DuplicateKeys = %v, want %v", got, want)
	}
}

func TestDuplicateKeys_NoneIsNil(t *testing.T) {
	list := []Descriptor{Derive("a", "https://github.com/acme/one.git")}
	if got := DuplicateKeys(list); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
