package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that need to reference flags (e.g. report metadata generation).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Mapping.Path, flags.FlagMapping, "repos.txt", "...")
//	arg := "--" + flags.FlagMapping
const (
	// Mapping
	FlagMapping  = "mapping"
	FlagInclude  = "include"
	FlagExclude  = "exclude"
	FlagMaxRepos = "max-repos"
	FlagDryRun   = "dry-run"

	// Server
	FlagServer  = "server"
	FlagEnvFile = "env-file"

	// Clone
	FlagScratchDir   = "scratch-dir"
	FlagCloneDepth   = "clone-depth"
	FlagCloneTimeout = "clone-timeout"

	// Scan
	FlagScanTimeout    = "scan-timeout"
	FlagMavenSkipTests = "maven-skip-tests"

	// Output
	FlagConsoleFormat = "console-format"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagEmit          = "emit"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
)
