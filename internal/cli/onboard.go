package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sonarherd/internal/config"
	"sonarherd/internal/engine"
	"sonarherd/internal/flags"
	"sonarherd/internal/logging"
	"sonarherd/internal/sonar"
)

var cfg = config.New()

var envFile string

const onboardHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	Sonarherd authenticates to the analysis server with a token.

	Sources (in order):
	1) SONAR_HOST / SONAR_TOKEN environment variables
	2) A dotenv file (default: .env in the working directory; see --env-file)

  Token guidance (brief):
  - Generate a user token in the server UI under My Account > Security.
  - The token needs permission to create projects and run analyses.
  - There is deliberately no --token flag: command lines leak into shell
    history and process listings.

  Examples:
    # macOS/Linux
    export SONAR_HOST="https://sonar.example.com"
    export SONAR_TOKEN="squ_xxx"
    sonarherd onboard --mapping repos.txt

		# Dotenv file
		printf 'SONAR_HOST=...\nSONAR_TOKEN=...\n' > .env
		sonarherd onboard --mapping repos.txt

    # Windows PowerShell
    $env:SONAR_TOKEN = "squ_xxx"
    sonarherd onboard --server https://sonar.example.com

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasHelpSubCommands}}Additional help topics:
{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard every repository in a mapping file",
	Long: `Onboard a batch of repositories onto a SonarQube-compatible analysis server.

For every mapping line, sonarherd ensures the project exists on the server,
clones the repository, detects its build toolchain and runs the matching
scanner. Repositories are processed concurrently; one failing repository
never stops the others.

Mapping file:
  One "prefix,location" pair per line. The prefix namespaces the project key
  (prefix_name); the location is anything git can clone. Blank lines and
  lines starting with '#' are ignored; malformed lines are skipped and
  counted, not fatal.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON document or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, repo.finished, run.finished). A repo.finished event
	carries the full outcome for one repository.

Exit codes:
	0 = clean run, every repository onboarded
	1 = at least one repository failed to onboard
	3 = fatal error (bad configuration, rejected credentials, run aborted)

Examples:
  # Coordinates via environment
  export SONAR_HOST="https://sonar.example.com"
  export SONAR_TOKEN="squ_xxx"
  sonarherd onboard --mapping repos.txt

  # Preview the run without contacting the server
	sonarherd onboard --mapping repos.txt --dry-run

	# AI Agent: stream machine-readable events to stdout
	sonarherd onboard --mapping repos.txt --no-console --emit ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.LoadEnvironment(resolveEnvFile(cmd, envFile)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		level := cfg.Runtime.LogLevel
		if cfg.Runtime.Verbose {
			level = "debug"
		}
		log := logging.New(logging.Options{Level: level})

		ctx := context.Background()

		// A dry run never talks to the server, so it must work without
		// coordinates.
		var client *sonar.Client
		if !cfg.Mapping.DryRun {
			var err error
			client, err = sonar.New(cfg.Server.Host, cfg.Server.Token,
				sonar.WithLogger(logging.Named(log, "sonar"), cfg.Runtime.Verbose))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to create server client: %v\n", err)
				os.Exit(3)
			}
		}

		eng := engine.NewEngine(client, log)
		os.Exit(eng.Run(ctx, cfg))
	},
}

// resolveEnvFile decides which dotenv file to load. An explicit --env-file
// must exist, so loading can fail loudly; the default is used only when the
// file is actually present.
func resolveEnvFile(cmd *cobra.Command, requested string) string {
	if cmd != nil && cmd.Flags().Changed(flags.FlagEnvFile) {
		return requested
	}
	if _, err := os.Stat(requested); err == nil {
		return requested
	}
	return ""
}

func init() {
	rootCmd.AddCommand(onboardCmd)
	onboardCmd.SetHelpTemplate(onboardHelpTemplate)

	// Mapping
	onboardCmd.Flags().StringVar(&cfg.Mapping.Path, flags.FlagMapping, cfg.Mapping.Path, "Mapping file of prefix,location lines")
	onboardCmd.Flags().StringSliceVar(&cfg.Mapping.Include, flags.FlagInclude, nil, "Include pattern(s) (repeatable; comma-separated accepted). Go path.Match style; if pattern contains '_', matches the project key, else matches the repository name")
	onboardCmd.Flags().StringSliceVar(&cfg.Mapping.Exclude, flags.FlagExclude, nil, "Exclude pattern(s) (repeatable; comma-separated accepted). Same matching rules as --include")
	onboardCmd.Flags().IntVar(&cfg.Mapping.MaxRepos, flags.FlagMaxRepos, 0, "Maximum number of repositories to onboard (0 = unlimited)")
	onboardCmd.Flags().BoolVar(&cfg.Mapping.DryRun, flags.FlagDryRun, false, "Resolve the repository set and print the plan without contacting the server")

	// Server
	onboardCmd.Flags().StringVar(&cfg.Server.Host, flags.FlagServer, "", "Analysis server base URL (overrides SONAR_HOST)")
	onboardCmd.Flags().StringVar(&envFile, flags.FlagEnvFile, ".env", "Dotenv file with SONAR_HOST/SONAR_TOKEN (the default is used only when present)")

	// Clone
	onboardCmd.Flags().StringVar(&cfg.Clone.ScratchDir, flags.FlagScratchDir, "", "Directory for per-run clone workspaces (default: system temp)")
	onboardCmd.Flags().IntVar(&cfg.Clone.Depth, flags.FlagCloneDepth, cfg.Clone.Depth, "Git history depth to fetch")
	onboardCmd.Flags().DurationVar(&cfg.Clone.Timeout, flags.FlagCloneTimeout, cfg.Clone.Timeout, "Timeout for a single git clone")

	// Scan
	onboardCmd.Flags().DurationVar(&cfg.Scan.Timeout, flags.FlagScanTimeout, cfg.Scan.Timeout, "Timeout for a single scanner invocation (multi-step scans share the budget)")
	onboardCmd.Flags().BoolVar(&cfg.Scan.MavenSkipTests, flags.FlagMavenSkipTests, cfg.Scan.MavenSkipTests, "Pass -DskipTests to Maven scans")

	// Output
	onboardCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson")
	onboardCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	onboardCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	onboardCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	onboardCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	onboardCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	onboardCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent repositories")
	onboardCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the whole run")
}
