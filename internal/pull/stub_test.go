package pull

import (
	"context"
	"errors"
	"sync"
)

type seedCall struct {
	label  string
	node   string
	server string
}

// stubSeeder answers seed calls from fixed tables keyed by server then node.
// Nodes missing from failures/errs/panics compile successfully.
type stubSeeder struct {
	mu       sync.Mutex
	calls    []seedCall
	failures map[string]map[string]string
	errs     map[string]map[string]error
	panics   map[string]map[string]bool
}

func (s *stubSeeder) Seed(ctx context.Context, label, node, server string) (SeedOutcome, error) {
	s.mu.Lock()
	s.calls = append(s.calls, seedCall{label: label, node: node, server: server})
	s.mu.Unlock()

	if s.panics[server][node] {
		panic("seed exploded")
	}
	if err := s.errs[server][node]; err != nil {
		return SeedOutcome{}, err
	}
	if msg, ok := s.failures[server][node]; ok {
		return FailedOutcome(node, msg), nil
	}
	return CompiledOutcome(node), nil
}

func (s *stubSeeder) recorded() []seedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]seedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type stubFinder struct {
	nodes []string
	err   error
	calls int
	last  DiscoveryOptions
}

func (f *stubFinder) FindNodes(ctx context.Context, args []string, opts DiscoveryOptions) ([]string, error) {
	f.calls++
	f.last = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.nodes, nil
}

var errBroken = errors.New("connection reset")
