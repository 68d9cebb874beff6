package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"catalogpull/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "catalogpull",
	Short: "Compile catalogs on two Puppet servers and rank what fails on the new one",
	Long: `catalogpull requests compiled catalogs for a set of nodes from an old and a
new Puppet server, stores both sides on disk for diffing, and reports which
manifest files make the new server fail.

catalogpull only reads: it asks the servers to compile catalogs and never
changes node state.

Examples:
	# Show available commands and global flags
	catalogpull --help

	# Pull catalogs for every Linux node
	catalogpull pull /tmp/old /tmp/new kernel=Linux --old-server puppet-old.example.com

	# List the nodes a query selects
	catalogpull nodes kernel=Linux --old-server puppet-old.example.com

	# Print build info
	catalogpull version

Output:
	By default, commands write human-readable output to stdout and log to stderr.
	Structured output is available via --console-format and --out (see each command's --help).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every Puppet and GitHub API call and full error details)")
}

// newLogger writes text logs to w; debug records only appear when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}
