package pull

import (
	"context"
	"time"
)

// SeedOutcome is the result of one seed call. A call populates either
// CompiledNodes or FailedNodes for its node, never both.
type SeedOutcome struct {
	CompiledNodes []string
	FailedNodes   map[string]string
}

// CompiledOutcome reports a successful compile of node.
func CompiledOutcome(node string) SeedOutcome {
	return SeedOutcome{CompiledNodes: []string{node}, FailedNodes: map[string]string{}}
}

// FailedOutcome reports a compile failure of node with the server's error text.
func FailedOutcome(node, errText string) SeedOutcome {
	return SeedOutcome{FailedNodes: map[string]string{node: errText}}
}

// SeedClient requests one compiled catalog for one node from one server and
// stores it under label. A returned error means the call itself broke; compile
// failures are reported through SeedOutcome.FailedNodes.
type SeedClient interface {
	Seed(ctx context.Context, label, node, server string) (SeedOutcome, error)
}

// Role tells the two servers of a run apart.
type Role string

const (
	RoleOld Role = "old"
	RoleNew Role = "new"
)

// Target pairs a catalog label (where catalogs are saved) with the server
// that compiles them.
type Target struct {
	Role   Role
	Label  string
	Server string
}

// SeedEvent describes one finished seed call. It is delivered to the
// scheduler's observer from worker goroutines.
type SeedEvent struct {
	Node     string
	Target   Target
	Compiled bool
	// Failure is the compile error text when the server rejected the node.
	Failure string
	// Err is set when the call errored; the node is then dropped.
	Err      error
	Duration time.Duration
}

// Outcome is a short label for the call result: compiled, failed or error.
func (e SeedEvent) Outcome() string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Compiled:
		return "compiled"
	default:
		return "failed"
	}
}

// Logger is the logging surface the pull pipeline needs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}
