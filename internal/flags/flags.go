// Package flags defines canonical CLI flag names shared across the CLI and engine.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Servers.Old, flags.FlagOldServer, "", "...")
//	arg := "--" + flags.FlagOldServer
package flags

const (
	// Servers
	FlagOldServer = "old-server"
	FlagNewServer = "new-server"

	// Discovery
	FlagUsePuppetDB = "use-puppetdb"
	FlagPuppetDBURL = "puppetdb-url"
	FlagFilterLocal = "filter-local"
	FlagYAMLDir     = "yamldir"
	FlagEnvironment = "environment"

	// TLS
	FlagSSLCert = "ssl-cert"
	FlagSSLKey  = "ssl-key"
	FlagSSLCA   = "ssl-ca"

	// Runtime
	FlagThreads        = "threads"
	FlagChangedDepth   = "changed-depth"
	FlagTimeout        = "timeout"
	FlagRequestTimeout = "request-timeout"
	FlagDryRun         = "dry-run"
	FlagVerbose        = "verbose"

	// Output
	FlagConsoleFormat   = "console-format"
	FlagReport          = "report"
	FlagOut             = "out"
	FlagOutFormat       = "out-format"
	FlagNoConsole       = "no-console"
	FlagMetricsTextfile = "metrics-textfile"

	// Publishing
	FlagPublishIssue  = "publish-issue"
	FlagIssueLabels   = "issue-label"
	FlagGitHubBaseURL = "github-api-url"
)
