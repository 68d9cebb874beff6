package pull

import "sync"

// RunState is a point-in-time copy of everything the workers recorded.
type RunState struct {
	// CompiledNodes holds one entry per successful seed call, so a node that
	// compiled on both servers appears twice.
	CompiledNodes []string

	// FailedNodes maps a node to the new server's error text for it.
	FailedNodes map[string]string

	// DroppedCalls counts seed calls that returned an error (or panicked).
	// Each one drops its node from both collections, so it also counts the
	// nodes missing from the report.
	DroppedCalls int
}

// Aggregator owns the run's shared results. One mutex guards every field;
// it is only held for in-memory appends and overwrites.
type Aggregator struct {
	mu       sync.Mutex
	compiled []string
	failed   map[string]string
	dropped  int
}

func NewAggregator() *Aggregator {
	return &Aggregator{failed: make(map[string]string)}
}

func (a *Aggregator) RecordCompiled(nodes ...string) {
	if len(nodes) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compiled = append(a.compiled, nodes...)
}

// RecordFailure stores errText for node. The last writer wins.
func (a *Aggregator) RecordFailure(node, errText string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed[node] = errText
}

func (a *Aggregator) RecordDropped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropped++
}

func (a *Aggregator) Snapshot() RunState {
	a.mu.Lock()
	defer a.mu.Unlock()

	compiled := make([]string, len(a.compiled))
	copy(compiled, a.compiled)
	failed := make(map[string]string, len(a.failed))
	for k, v := range a.failed {
		failed[k] = v
	}
	return RunState{
		CompiledNodes: compiled,
		FailedNodes:   failed,
		DroppedCalls:  a.dropped,
	}
}
