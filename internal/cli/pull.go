package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"catalogpull/internal/config"
	"catalogpull/internal/engine"
	"catalogpull/internal/flags"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg = config.New()

var pullCmd = &cobra.Command{
	Use:   "pull <old_dir> <new_dir> [fact=value ...]",
	Short: "Retrieve catalogs from the old and new server and rank compile failures",
	Long: `Retrieve compiled catalogs for every node matching a fact query from the old
and the new Puppet server, and report the nodes that fail to compile on the new
server grouped by the manifest file named in the error.

Catalogs are written to <old_dir>/<node>.json and <new_dir>/<node>.json. A
node is selected when all fact=value arguments match; with no arguments every
node the old server (or PuppetDB) knows is selected.

Authentication:
  Requests are made with the agent certificate given by --ssl-cert, --ssl-key
  and --ssl-ca. The certificate must be allowed to request catalogs for other
  nodes in the servers' auth.conf.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write the report as JSON, or every event as NDJSON
	- --report: write a Markdown report
	- --metrics-textfile: write Prometheus metrics for node_exporter
	- --no-console: suppress the console sink (use with --out/--report)

	NDJSON mode emits one JSON object per line with a "type" field
	(run.started, nodes.discovered, node.seeded, report, run.finished).

Exit codes:
	0 = every node compiled on the new server
	1 = compile failures recorded
	2 = partial run (some catalog requests errored and were not counted)
	3 = fatal error (no report was produced)

Examples:
  catalogpull pull /tmp/old /tmp/new kernel=Linux --old-server puppet-old.example.com

  # Select nodes through PuppetDB and keep only nodes this server has seen
  catalogpull pull /tmp/old /tmp/new osfamily=RedHat --old-server puppet-old \
    --use-puppetdb --filter-local

  # Machine-readable event stream
  catalogpull pull /tmp/old /tmp/new --old-server puppet-old --no-console --out run.ndjson
`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		applyPositionalArgs(cfg, args)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		os.Exit(runEngine(cfg, func(ctx context.Context, eng *engine.Engine) int {
			return eng.Run(ctx, cfg)
		}))
	},
}

// applyPositionalArgs fills the catalog directories from the leading
// arguments without an '=' and treats the rest as the fact query.
func applyPositionalArgs(cfg *config.Config, args []string) {
	var dirs []string
	for i, a := range args {
		if len(dirs) < 2 && !strings.Contains(a, "=") {
			dirs = append(dirs, a)
			continue
		}
		cfg.Discovery.Query = append(cfg.Discovery.Query, args[i:]...)
		break
	}
	if len(dirs) > 0 {
		cfg.Catalogs.OldDir = dirs[0]
	}
	if len(dirs) > 1 {
		cfg.Catalogs.NewDir = dirs[1]
	}
}

func runEngine(cfg *config.Config, run func(ctx context.Context, eng *engine.Engine) int) int {
	ctx := context.Background()
	logger := newLogger(os.Stderr, cfg.Runtime.Verbose)

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	return run(ctx, eng)
}

func addServerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.Servers.Old, flags.FlagOldServer, "", "Old Puppet server as host[:port][/environment] (required)")
}

func addDiscoveryFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&cfg.Discovery.UsePuppetDB, flags.FlagUsePuppetDB, false, "Select nodes with PuppetDB instead of the old server's facts search")
	fs.StringVar(&cfg.Discovery.PuppetDBURL, flags.FlagPuppetDBURL, cfg.Discovery.PuppetDBURL, "PuppetDB API root")
	fs.BoolVar(&cfg.Discovery.FilterLocal, flags.FlagFilterLocal, false, "Keep only nodes with a matching node file in --yamldir")
	fs.StringVar(&cfg.Discovery.YAMLDir, flags.FlagYAMLDir, cfg.Discovery.YAMLDir, "Puppet Server yamldir (node environments and --filter-local)")
	fs.StringVar(&cfg.Discovery.Environment, flags.FlagEnvironment, cfg.Discovery.Environment, "Environment for facts searches and nodes with unknown environment")
}

func addTLSFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.TLS.Cert, flags.FlagSSLCert, "", "Client certificate (PEM)")
	fs.StringVar(&cfg.TLS.Key, flags.FlagSSLKey, "", "Client private key (PEM)")
	fs.StringVar(&cfg.TLS.CA, flags.FlagSSLCA, "", "CA bundle used to verify the servers (PEM)")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	fs.StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	fs.StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	fs.BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out/--report)")
}

func addRuntimeFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout")
	fs.DurationVar(&cfg.Runtime.RequestTimeout, flags.FlagRequestTimeout, 0, "Timeout for each HTTP request (0 = none)")
}

func init() {
	rootCmd.AddCommand(pullCmd)

	// MAINTAINER NOTE: If you add/change/remove any flags here, keep
	// internal/flags and the config field docs in sync.
	fs := pullCmd.Flags()

	// Servers
	addServerFlags(fs)
	fs.StringVar(&cfg.Servers.New, flags.FlagNewServer, "", "New Puppet server as host[:port][/environment] (default: this host)")

	// Discovery
	addDiscoveryFlags(fs)

	// TLS
	addTLSFlags(fs)

	// Runtime
	fs.IntVar(&cfg.Runtime.Threads, flags.FlagThreads, cfg.Runtime.Threads, "Concurrent workers")
	fs.IntVar(&cfg.Runtime.ChangedDepth, flags.FlagChangedDepth, cfg.Runtime.ChangedDepth, "Number of failing files to rank in the report")
	fs.BoolVar(&cfg.Runtime.DryRun, flags.FlagDryRun, false, "Resolve and print the node list without requesting catalogs")
	addRuntimeFlags(fs)

	// Output
	addOutputFlags(fs)
	fs.StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	fs.StringVar(&cfg.Output.MetricsTextfile, flags.FlagMetricsTextfile, "", "Write Prometheus metrics in textfile format to this path")

	// Publishing
	fs.StringVar(&cfg.Publish.Issue, flags.FlagPublishIssue, "", "Open an issue with the Markdown report in OWNER/REPO when nodes fail to compile")
	fs.StringSliceVar(&cfg.Publish.Labels, flags.FlagIssueLabels, nil, "Labels for the published issue (repeatable; comma-separated accepted)")
	fs.StringVar(&cfg.Publish.GitHubBaseURL, flags.FlagGitHubBaseURL, "", "GitHub Enterprise Server API root for --publish-issue")
}
