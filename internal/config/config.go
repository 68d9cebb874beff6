package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"catalogpull/internal/discovery"
	"catalogpull/internal/github"
	"catalogpull/internal/pull"
	"catalogpull/internal/puppet"
)

// DefaultYAMLDir is Puppet Server's default yamldir.
const DefaultYAMLDir = "/opt/puppetlabs/server/data/puppetserver/yaml"

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep the CLI
	// flags in internal/cli/pull.go and internal/flags in sync.
	Servers   Servers
	Catalogs  Catalogs
	Discovery Discovery
	TLS       TLS
	Runtime   Runtime
	Output    Output
	Publish   Publish
}

type Servers struct {
	// Old is the server whose catalogs are the baseline, as
	// host[:port][/environment] (see --old-server). Required.
	Old string

	// New is the server under test (see --new-server). Defaults to this
	// host's FQDN.
	New string
}

type Catalogs struct {
	// OldDir and NewDir receive <node>.json for each catalog retrieved from
	// the old and new server (first two positional arguments of pull).
	OldDir string
	NewDir string
}

type Discovery struct {
	// Query holds fact=value arguments; comma-joined entries are accepted.
	Query []string

	// UsePuppetDB queries PuppetDB instead of the facts search REST API
	// (see --use-puppetdb).
	UsePuppetDB bool

	// PuppetDBURL is the PuppetDB API root (see --puppetdb-url).
	PuppetDBURL string

	// FilterLocal drops nodes that have no matching YAML node file under
	// YAMLDir (see --filter-local).
	FilterLocal bool

	// YAMLDir is the server's yamldir. Node files there are also used to
	// find each node's environment (see --yamldir).
	YAMLDir string

	// Environment is used for facts searches and for nodes whose environment
	// is unknown (see --environment).
	Environment string
}

type TLS struct {
	// Cert, Key and CA are PEM files for mutual TLS with Puppet Server and
	// PuppetDB (see --ssl-cert, --ssl-key, --ssl-ca).
	Cert string
	Key  string
	CA   string
}

type Runtime struct {
	// Threads is the number of concurrent workers (see --threads). Must be >= 1.
	Threads int

	// ChangedDepth is the number of problem files ranked in the report
	// (see --changed-depth). Must be >= 0.
	ChangedDepth int

	// Timeout bounds the whole run (see --timeout). Must be > 0.
	Timeout time.Duration

	// RequestTimeout bounds each HTTP request; 0 disables it (see --request-timeout).
	RequestTimeout time.Duration

	// DryRun resolves and prints the node list without requesting catalogs
	// (see --dry-run).
	DryRun bool

	// Verbose enables debug logging, including one line per HTTP request.
	Verbose bool
}

type Output struct {
	// ConsoleFormat controls the console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Report writes a Markdown report to this path (see --report).
	Report string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool

	// MetricsTextfile writes run metrics for node_exporter's textfile
	// collector (see --metrics-textfile).
	MetricsTextfile string
}

type Publish struct {
	// Issue is the OWNER/REPO that receives the Markdown report as an issue
	// when compile failures were recorded (see --publish-issue).
	Issue string

	// Labels are applied to the published issue (see --issue-label).
	Labels []string

	// GitHubBaseURL points publishing at a GitHub Enterprise Server API root.
	GitHubBaseURL string
}

func New() *Config {
	return &Config{
		Discovery: Discovery{
			PuppetDBURL: discovery.DefaultPuppetDBURL,
			YAMLDir:     DefaultYAMLDir,
			Environment: "production",
		},
		Runtime: Runtime{
			Threads:      pull.DefaultThreads,
			ChangedDepth: pull.DefaultChangedDepth,
			Timeout:      2 * time.Hour,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
	}
}

// ValidateDiscovery checks what a discovery-only run needs.
func (c *Config) ValidateDiscovery() error {
	c.Discovery.Query = splitCommaList(c.Discovery.Query)
	if _, err := discovery.ParseQuery(c.Discovery.Query); err != nil {
		return err
	}

	c.Servers.Old = strings.TrimSpace(c.Servers.Old)
	if c.Servers.Old == "" && !c.Discovery.UsePuppetDB {
		return errors.New("--old-server is required")
	}
	if c.Servers.Old != "" {
		if _, err := puppet.ParseServer(c.Servers.Old); err != nil {
			return fmt.Errorf("invalid --old-server: %w", err)
		}
	}

	if c.Discovery.UsePuppetDB {
		u, err := url.Parse(strings.TrimSpace(c.Discovery.PuppetDBURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid --puppetdb-url: %q", c.Discovery.PuppetDBURL)
		}
	}
	if c.Discovery.FilterLocal && strings.TrimSpace(c.Discovery.YAMLDir) == "" {
		return errors.New("--filter-local requires --yamldir")
	}
	c.Discovery.Environment = strings.TrimSpace(c.Discovery.Environment)
	if c.Discovery.Environment == "" {
		c.Discovery.Environment = "production"
	}

	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return errors.New("--ssl-cert and --ssl-key must be provided together")
	}

	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.RequestTimeout < 0 {
		return errors.New("--request-timeout must be >= 0")
	}

	return c.validateOutput()
}

// Validate checks and normalizes the configuration of a pull run.
func (c *Config) Validate() error {
	if err := c.ValidateDiscovery(); err != nil {
		return err
	}
	if c.Servers.Old == "" {
		return errors.New("--old-server is required")
	}

	c.Servers.New = strings.TrimSpace(c.Servers.New)
	if c.Servers.New == "" {
		c.Servers.New = pull.DefaultServerName()
	}
	if _, err := puppet.ParseServer(c.Servers.New); err != nil {
		return fmt.Errorf("invalid --new-server: %w", err)
	}

	if !c.Runtime.DryRun {
		if strings.TrimSpace(c.Catalogs.OldDir) == "" || strings.TrimSpace(c.Catalogs.NewDir) == "" {
			return errors.New("old and new catalog directories are required")
		}
		if filepath.Clean(c.Catalogs.OldDir) == filepath.Clean(c.Catalogs.NewDir) {
			return errors.New("old and new catalog directories must differ")
		}
	}

	if c.Runtime.Threads <= 0 {
		return errors.New("--threads must be >= 1")
	}
	if c.Runtime.ChangedDepth < 0 {
		return errors.New("--changed-depth must be >= 0")
	}

	c.Publish.Labels = splitCommaList(c.Publish.Labels)
	if c.Publish.Issue != "" {
		if _, _, err := github.ParseRepo(c.Publish.Issue); err != nil {
			return fmt.Errorf("invalid --publish-issue: %w", err)
		}
	}

	return nil
}

func (c *Config) validateOutput() error {
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
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
