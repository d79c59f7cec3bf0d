package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// onboarding behavior, keep the CLI flag wiring in
	// internal/cli/onboard.go in sync.
	Server  Server
	Mapping Mapping
	Clone   Clone
	Scan    Scan
	Output  Output
	Runtime Runtime
}

type Server struct {
	// Host is the analysis server base URL (env SONAR_HOST; see --server).
	Host string

	// Token authenticates API calls and scanner uploads (env SONAR_TOKEN).
	// There is deliberately no flag for it: command lines leak into shell
	// history and process listings.
	Token string
}

type Mapping struct {
	// Path is the mapping file of prefix,location lines (see --mapping).
	Path string

	// Include filters descriptors using Go path.Match patterns (see
	// --include). A pattern containing '_' matches the full project key;
	// anything else matches the repository short name.
	Include []string

	// Exclude drops descriptors (see --exclude). Same matching rules as
	// Include.
	Exclude []string

	// MaxRepos limits how many repositories to onboard (see --max-repos).
	// 0 means unlimited.
	MaxRepos int

	// DryRun resolves the descriptor set and prints the onboarding plan
	// without contacting the server or cloning anything (see --dry-run).
	DryRun bool
}

type Clone struct {
	// ScratchDir is the directory under which per-run workspaces are
	// created (see --scratch-dir). Empty means the system temp directory.
	ScratchDir string

	// Depth is the git history depth to fetch (see --clone-depth).
	Depth int

	// Timeout bounds a single git clone (see --clone-timeout).
	Timeout time.Duration
}

type Scan struct {
	// Timeout bounds a single scanner invocation (see --scan-timeout).
	// The .NET scanner's begin/build/end sequence shares one budget.
	Timeout time.Duration

	// MavenSkipTests passes -DskipTests to Maven scans (see --maven-skip-tests).
	MavenSkipTests bool
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Report writes a Markdown report to this path (see --report).
	Report string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the console sink (see --no-console).
	// Use with --emit/--out/--report for machine-readable output.
	NoConsole bool
}

type Runtime struct {
	// Concurrency controls how many repositories are processed in parallel
	// (see --concurrency). Must be >= 1.
	Concurrency int

	// Timeout is the global budget for the whole run (see --timeout).
	// Must be > 0.
	Timeout time.Duration

	// LogLevel overrides the log level (env LOG_LEVEL; --verbose wins).
	LogLevel string

	// Verbose enables debug-level diagnostics, including HTTP traces.
	Verbose bool
}

func New() *Config {
	return &Config{
		Mapping: Mapping{
			Path: "repos.txt",
		},
		Clone: Clone{
			Depth:   1,
			Timeout: 10 * time.Minute,
		},
		Scan: Scan{
			Timeout:        30 * time.Minute,
			MavenSkipTests: true,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 2,
			Timeout:     2 * time.Hour,
		},
	}
}

// LoadEnvironment fills environment-sourced fields, optionally seeding the
// environment view from a dotenv file first. Real environment variables win
// over file entries, the usual dotenv contract. Values already set on the
// Config (by flags) are not touched.
func (c *Config) LoadEnvironment(envFile string) error {
	k := koanf.New(".")
	if envFile != "" {
		if err := k.Load(file.Provider(envFile), dotenv.Parser()); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if c.Server.Host == "" {
		c.Server.Host = strings.TrimSpace(k.String("SONAR_HOST"))
	}
	if c.Server.Token == "" {
		c.Server.Token = strings.TrimSpace(k.String("SONAR_TOKEN"))
	}
	if c.Runtime.LogLevel == "" {
		c.Runtime.LogLevel = strings.TrimSpace(k.String("LOG_LEVEL"))
	}
	return nil
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Mapping.Include = splitCommaList(c.Mapping.Include)
	c.Mapping.Exclude = splitCommaList(c.Mapping.Exclude)

	// Server validation. A dry run never contacts the server, so missing
	// coordinates only matter for real runs.
	c.Server.Host = strings.TrimRight(strings.TrimSpace(c.Server.Host), "/")
	if !c.Mapping.DryRun {
		if c.Server.Host == "" {
			return errors.New("missing SONAR_HOST in environment or .env file (or --server)")
		}
		if c.Server.Token == "" {
			return errors.New("missing SONAR_TOKEN in environment or .env file")
		}
	}
	if c.Server.Host != "" {
		u, err := url.Parse(c.Server.Host)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid server host %q: must be an http(s) URL", c.Server.Host)
		}
	}

	if strings.TrimSpace(c.Mapping.Path) == "" {
		return errors.New("--mapping must not be empty")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for _, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v == "" {
			return errors.New("--emit must be one of: json, ndjson")
		}
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else {
			if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
				return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
			}
		}
	}

	// Runtime validation
	if c.Mapping.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Clone.Depth <= 0 {
		return errors.New("--clone-depth must be >= 1")
	}
	if c.Clone.Timeout <= 0 {
		return errors.New("--clone-timeout must be > 0")
	}
	if c.Scan.Timeout <= 0 {
		return errors.New("--scan-timeout must be > 0")
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
