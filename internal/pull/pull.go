// Package pull seeds catalogs for many nodes from two Puppet servers with a
// fixed pool of workers and condenses the outcome into a ranked failure report.
//
// Node discovery and the seed call itself are collaborators (NodeFinder and
// SeedClient); this package owns the queue, the worker pool, the shared result
// state and the post-processing that turns it into a Report.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ErrNoNodesFound is returned when discovery yields no nodes. No worker is
// started in that case.
var ErrNoNodesFound = errors.New("no nodes found")

// DiscoveryOptions are the parts of Options that node discovery needs.
type DiscoveryOptions struct {
	OldServer   string
	UsePuppetDB bool
	FilterLocal bool
}

// NodeFinder resolves the node list for a run from fact=value arguments.
type NodeFinder interface {
	FindNodes(ctx context.Context, args []string, opts DiscoveryOptions) ([]string, error)
}

type Options struct {
	// OldServer is the certificate name (or alt name) of the old server. Required.
	OldServer string

	// NewServer is the certificate name of the new server. Defaults to the
	// local host name.
	NewServer string

	// Threads is the number of concurrent workers.
	Threads int

	// UsePuppetDB selects PuppetDB instead of the server's facts search.
	UsePuppetDB bool

	// FilterLocal keeps only nodes present in the local YAML node cache.
	FilterLocal bool

	// ChangedDepth is the number of problem files kept in the report.
	ChangedDepth int
}

func DefaultOptions() Options {
	return Options{
		NewServer:    DefaultServerName(),
		Threads:      DefaultThreads,
		ChangedDepth: DefaultChangedDepth,
	}
}

// DefaultServerName returns the fully qualified name of the local host. A
// short host name is resolved through DNS; if that fails the short name is
// returned. Without a host name it returns "localhost".
func DefaultServerName() string {
	h, err := os.Hostname()
	if err != nil || strings.TrimSpace(h) == "" {
		return "localhost"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return canonicalHostName(ctx, h, net.DefaultResolver.LookupCNAME)
}

func canonicalHostName(ctx context.Context, host string, lookupCNAME func(context.Context, string) (string, error)) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Contains(host, ".") || lookupCNAME == nil {
		return host
	}
	cname, err := lookupCNAME(ctx, host)
	if err != nil {
		return host
	}
	if fqdn := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(cname)), "."); fqdn != "" {
		return fqdn
	}
	return host
}

func (o Options) validate() error {
	if strings.TrimSpace(o.OldServer) == "" {
		return errors.New("old server is required")
	}
	if strings.TrimSpace(o.NewServer) == "" {
		return errors.New("new server is required")
	}
	if o.Threads <= 0 {
		return fmt.Errorf("threads must be >= 1, got %d", o.Threads)
	}
	if o.ChangedDepth < 0 {
		return fmt.Errorf("changed depth must be >= 0, got %d", o.ChangedDepth)
	}
	return nil
}

type Puller struct {
	finder   NodeFinder
	client   SeedClient
	logger   Logger
	observer func(SeedEvent)
	onNodes  func([]string)
}

type PullerOption func(*Puller)

func WithPullLogger(l Logger) PullerOption {
	return func(p *Puller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSeedObserver forwards every finished seed call to fn (see WithObserver).
func WithSeedObserver(fn func(SeedEvent)) PullerOption {
	return func(p *Puller) {
		p.observer = fn
	}
}

// WithDiscoveredNodes calls fn with the discovered node list before any
// worker starts.
func WithDiscoveredNodes(fn func([]string)) PullerOption {
	return func(p *Puller) {
		p.onNodes = fn
	}
}

func NewPuller(finder NodeFinder, client SeedClient, opts ...PullerOption) (*Puller, error) {
	if finder == nil {
		return nil, errors.New("node finder is nil")
	}
	if client == nil {
		return nil, errors.New("seed client is nil")
	}
	p := &Puller{
		finder: finder,
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(p)
		}
	}
	return p, nil
}

// Pull discovers nodes, seeds each of them into label1 from the old server and
// into label2 from the new server, and returns the aggregated report.
//
// Only discovery problems and invalid options are returned as errors. Compile
// failures and broken seed calls are part of the report.
func (p *Puller) Pull(ctx context.Context, label1, label2 string, discoveryArgs []string, opts Options) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	nodes, err := p.finder.FindNodes(ctx, discoveryArgs, DiscoveryOptions{
		OldServer:   opts.OldServer,
		UsePuppetDB: opts.UsePuppetDB,
		FilterLocal: opts.FilterLocal,
	})
	if err != nil {
		return nil, fmt.Errorf("problem finding nodes with query %v: %w", discoveryArgs, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("problem finding nodes with query %v: %w", discoveryArgs, ErrNoNodesFound)
	}
	p.logger.Debug("discovered nodes", "count", len(nodes), "nodes", nodes)
	if p.onNodes != nil {
		p.onNodes(nodes)
	}

	sched, err := NewScheduler(p.client,
		Target{Label: label1, Server: opts.OldServer},
		Target{Label: label2, Server: opts.NewServer},
		opts.Threads,
		WithLogger(p.logger),
		WithObserver(p.observer),
	)
	if err != nil {
		return nil, err
	}

	agg := NewAggregator()
	if err := sched.Run(ctx, NewNodeQueue(nodes), agg); err != nil {
		return nil, err
	}
	return BuildReport(agg.Snapshot(), len(nodes), opts.ChangedDepth)
}
