// Package discovery resolves a fact query into the list of nodes to pull,
// using the Puppet server's facts search, PuppetDB, or both plus the
// server's local YAML node cache.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"catalogpull/internal/pull"
	"catalogpull/internal/puppet"

	"golang.org/x/sync/errgroup"
)

const DefaultPuppetDBURL = "https://puppetdb:8081"

type Finder struct {
	http        *puppet.Client
	puppetDBURL string
	yamlDir     string
	environment string
	logger      *slog.Logger
}

type Option func(*Finder)

func WithPuppetDBURL(u string) Option {
	return func(f *Finder) {
		if u != "" {
			f.puppetDBURL = strings.TrimRight(u, "/")
		}
	}
}

// WithYAMLDir sets the server's yamldir; its node/ subdirectory is scanned
// when local filtering is requested.
func WithYAMLDir(dir string) Option {
	return func(f *Finder) {
		f.yamlDir = dir
	}
}

// WithEnvironment sets the environment facts searches run in when the old
// server spec does not pin one.
func WithEnvironment(env string) Option {
	return func(f *Finder) {
		if env != "" {
			f.environment = env
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFinder(httpClient *puppet.Client, opts ...Option) (*Finder, error) {
	if httpClient == nil {
		return nil, errors.New("discovery: http client is nil")
	}
	f := &Finder{
		http:        httpClient,
		puppetDBURL: DefaultPuppetDBURL,
		environment: "production",
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

var _ pull.NodeFinder = (*Finder)(nil)

func (f *Finder) FindNodes(ctx context.Context, args []string, opts pull.DiscoveryOptions) ([]string, error) {
	query, err := ParseQuery(args)
	if err != nil {
		return nil, err
	}
	if opts.FilterLocal && f.yamlDir == "" {
		return nil, errors.New("discovery: local filtering needs a yaml directory")
	}

	var remote []string
	var local map[string]bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if opts.UsePuppetDB {
			remote, err = f.searchPuppetDB(gctx, query)
		} else {
			remote, err = f.searchFacts(gctx, opts.OldServer, query)
		}
		return err
	})
	if opts.FilterLocal {
		g.Go(func() error {
			var err error
			local, err = f.localNodes(query)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(remote) == 0 {
		return nil, pull.ErrNoNodesFound
	}
	if !opts.FilterLocal {
		return remote, nil
	}

	kept := make([]string, 0, len(remote))
	for _, node := range remote {
		if local[node] {
			kept = append(kept, node)
		}
	}
	f.logger.Debug("filtered nodes against local cache", "remote", len(remote), "kept", len(kept))
	return kept, nil
}

func (f *Finder) searchFacts(ctx context.Context, server string, query []Fact) ([]string, error) {
	srv, err := puppet.ParseServer(server)
	if err != nil {
		return nil, fmt.Errorf("facts search: %w", err)
	}
	env := srv.Environment
	if env == "" {
		env = f.environment
	}

	params := url.Values{}
	for _, fact := range query {
		params.Add("facts."+fact.Name, fact.Value)
	}
	params.Set("environment", env)

	var nodes []string
	if err := f.http.GetJSON(ctx, srv.URL("/puppet/v3/facts_search/search", params), &nodes); err != nil {
		return nil, fmt.Errorf("facts search on %s: %w", srv, err)
	}
	f.logger.Debug("facts search", "server", srv.String(), "query", query, "nodes", len(nodes))
	return nodes, nil
}

// PuppetDBQuery renders the AST query selecting active nodes matching every fact.
func PuppetDBQuery(query []Fact) (string, error) {
	clauses := []any{"and", []any{"=", []any{"node", "active"}, true}}
	for _, fact := range query {
		clauses = append(clauses, []any{"=", []any{"fact", fact.Name}, fact.Value})
	}
	raw, err := json.Marshal(clauses)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (f *Finder) searchPuppetDB(ctx context.Context, query []Fact) ([]string, error) {
	base, err := url.Parse(f.puppetDBURL)
	if err != nil {
		return nil, fmt.Errorf("puppetdb url %q: %w", f.puppetDBURL, err)
	}
	q, err := PuppetDBQuery(query)
	if err != nil {
		return nil, err
	}
	u := base.JoinPath("pdb", "query", "v4", "nodes")
	u.RawQuery = url.Values{"query": {q}}.Encode()

	var rows []struct {
		Certname string `json:"certname"`
	}
	if err := f.http.GetJSON(ctx, u, &rows); err != nil {
		return nil, fmt.Errorf("puppetdb query: %w", err)
	}

	nodes := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Certname != "" {
			nodes = append(nodes, row.Certname)
		}
	}
	f.logger.Debug("puppetdb query", "url", base.String(), "query", q, "nodes", len(nodes))
	return nodes, nil
}

func (f *Finder) localNodes(query []Fact) (map[string]bool, error) {
	paths, err := puppet.ListNodeFiles(f.yamlDir)
	if err != nil {
		return nil, fmt.Errorf("list node cache: %w", err)
	}

	out := make(map[string]bool, len(paths))
	for _, path := range paths {
		nf, err := puppet.ReadNodeFile(path)
		if err != nil {
			f.logger.Debug("skipping unreadable node file", "path", path, "error", err)
			continue
		}
		if matches(nf, query) {
			out[nf.CertName()] = true
		}
	}
	return out, nil
}

func matches(nf *puppet.NodeFile, query []Fact) bool {
	for _, fact := range query {
		v, ok := nf.Parameter(fact.Name)
		if !ok || v != fact.Value {
			return false
		}
	}
	return true
}
