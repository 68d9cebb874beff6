package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultThreads = 10

type Scheduler struct {
	client   SeedClient
	oldT     Target
	newT     Target
	threads  int
	logger   Logger
	observer func(SeedEvent)
}

type SchedulerOption func(*Scheduler)

func WithLogger(l Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers fn to be called after every seed call. fn runs on
// worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(SeedEvent)) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

func NewScheduler(client SeedClient, oldT, newT Target, threads int, opts ...SchedulerOption) (*Scheduler, error) {
	if client == nil {
		return nil, errors.New("seed client is nil")
	}
	if threads <= 0 {
		return nil, fmt.Errorf("threads must be >= 1, got %d", threads)
	}
	if oldT.Server == "" || newT.Server == "" {
		return nil, errors.New("both old and new servers are required")
	}
	oldT.Role = RoleOld
	newT.Role = RoleNew

	s := &Scheduler{
		client:  client,
		oldT:    oldT,
		newT:    newT,
		threads: threads,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(s)
		}
	}
	return s, nil
}

// Run starts the worker pool and blocks until the queue is drained and every
// worker has exited. Per-node problems never stop the pool; they end up in agg.
func (s *Scheduler) Run(ctx context.Context, queue *NodeQueue, agg *Aggregator) error {
	if ctx == nil {
		return errors.New("context is nil")
	}
	if queue == nil {
		return errors.New("node queue is nil")
	}
	if agg == nil {
		return errors.New("aggregator is nil")
	}

	var g errgroup.Group
	for i := 0; i < s.threads; i++ {
		worker := i
		g.Go(func() error {
			s.work(ctx, worker, queue, agg)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) work(ctx context.Context, worker int, queue *NodeQueue, agg *Aggregator) {
	s.logger.Debug("worker started", "worker", worker, "queued", queue.Len())
	for {
		node, remaining, ok := queue.Pop()
		if !ok {
			s.logger.Debug("worker finished", "worker", worker)
			return
		}
		s.pullNode(ctx, node, s.order(remaining), agg)
	}
}

// order spreads the first request of each node across both servers: an odd
// number of nodes left in the queue goes to the old server first.
func (s *Scheduler) order(remaining int) [2]Target {
	if remaining%2 == 1 {
		return [2]Target{s.oldT, s.newT}
	}
	return [2]Target{s.newT, s.oldT}
}

// pullNode seeds node from both targets and merges the outcomes only when
// both calls succeeded. The first errored call ends the node: the remaining
// call is skipped and nothing is recorded for the node.
func (s *Scheduler) pullNode(ctx context.Context, node string, targets [2]Target, agg *Aggregator) {
	var outs [2]SeedOutcome
	for i, t := range targets {
		out, err := s.seed(ctx, t, node)
		if err != nil {
			s.logger.Error("seed failed", "node", node, "server", t.Server, "role", t.Role, "error", err)
			agg.RecordDropped()
			return
		}
		outs[i] = out
	}

	for i, t := range targets {
		agg.RecordCompiled(outs[i].CompiledNodes...)
		// Only the new server's failure is kept in the report.
		if msg, failed := outs[i].FailedNodes[node]; failed && t.Role == RoleNew {
			agg.RecordFailure(node, msg)
		}
	}
}

func (s *Scheduler) seed(ctx context.Context, t Target, node string) (SeedOutcome, error) {
	start := time.Now()
	out, err := s.call(ctx, t, node)
	ev := SeedEvent{Node: node, Target: t, Err: err, Duration: time.Since(start)}
	if err == nil {
		ev.Failure = out.FailedNodes[node]
		ev.Compiled = slices.Contains(out.CompiledNodes, node)
		s.logger.Debug("seeded", "node", node, "server", t.Server, "role", t.Role, "outcome", ev.Outcome(), "duration", ev.Duration)
	}
	s.notify(ev)
	return out, err
}

func (s *Scheduler) call(ctx context.Context, t Target, node string) (out SeedOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while seeding %s from %s: %v", node, t.Server, r)
		}
	}()
	return s.client.Seed(ctx, t.Label, node, t.Server)
}

func (s *Scheduler) notify(ev SeedEvent) {
	if s.observer != nil {
		s.observer(ev)
	}
}
