package pull

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

const DefaultChangedDepth = 10

// ErrNoNodes is returned when a report is requested for a run without nodes.
var ErrNoNodes = errors.New("cannot build report: total node count is zero")

// RankedEntry is one problem bucket and the number of nodes that failed in it.
// It encodes as a one-entry JSON object: {"<bucket>": <nodes>}.
type RankedEntry struct {
	Bucket string
	Nodes  int
}

func (e RankedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{e.Bucket: e.Nodes})
}

func (e *RankedEntry) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("ranked entry must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		e.Bucket, e.Nodes = k, v
	}
	return nil
}

// ExampleError is the representative error for one ranked bucket.
// It encodes as a one-entry JSON object: {"<error text>": "<node>"}.
type ExampleError struct {
	Error string
	Node  string
}

func (e ExampleError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{e.Error: e.Node})
}

func (e *ExampleError) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("example error must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		e.Error, e.Node = k, v
	}
	return nil
}

// Report is the final result of a pull. ExampleCompileErrors[i] belongs to
// FailedToCompileFiles[i].
//
// CompiledNodes keeps one entry per successful seed call, so a node that
// compiled on both servers is listed twice; use UniqueCompiledNodes for the
// distinct set.
type Report struct {
	FailedNodes          map[string]string `json:"failed_nodes"`
	FailedNodesTotal     int               `json:"failed_nodes_total"`
	CompiledNodes        []string          `json:"compiled_nodes"`
	CompiledNodesTotal   int               `json:"compiled_nodes_total"`
	TotalNodes           int               `json:"total_nodes"`
	TotalPercentage      float64           `json:"total_percentage"`
	FailedToCompileFiles []RankedEntry     `json:"failed_to_compile_files"`
	ExampleCompileErrors []ExampleError    `json:"example_compile_errors"`
	DroppedCalls         int               `json:"dropped_calls"`
}

// UniqueCompiledNodes returns the distinct compiled node names, sorted.
func (r *Report) UniqueCompiledNodes() []string {
	out := slices.Clone(r.CompiledNodes)
	slices.Sort(out)
	return slices.Compact(out)
}

// RankBuckets orders buckets by node count, most failures first, and keeps at
// most depth of them.
//
// The order is an ascending stable sort reversed, not a descending stable
// sort: buckets with equal counts come out in reverse insertion order.
func RankBuckets(idx *ProblemFileIndex, depth int) []RankedEntry {
	if idx == nil || depth <= 0 {
		return []RankedEntry{}
	}
	entries := make([]RankedEntry, 0, idx.Len())
	for _, k := range idx.Keys() {
		entries = append(entries, RankedEntry{Bucket: k, Nodes: len(idx.Nodes(k))})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Nodes < entries[j].Nodes })
	slices.Reverse(entries)
	if len(entries) > depth {
		entries = entries[:depth]
	}
	return entries
}

// BuildReport turns the final run state into a Report.
func BuildReport(state RunState, totalNodes, depth int) (*Report, error) {
	if totalNodes <= 0 {
		return nil, ErrNoNodes
	}

	compiled := make([]string, 0, len(state.CompiledNodes))
	for _, n := range state.CompiledNodes {
		if n != "" {
			compiled = append(compiled, n)
		}
	}
	failed := state.FailedNodes
	if failed == nil {
		failed = map[string]string{}
	}

	idx := ClassifyFailures(failed)
	ranked := RankBuckets(idx, depth)
	examples := make([]ExampleError, 0, len(ranked))
	for _, e := range ranked {
		node := idx.Nodes(e.Bucket)[0]
		examples = append(examples, ExampleError{Error: failed[node], Node: node})
	}

	return &Report{
		FailedNodes:          failed,
		FailedNodesTotal:     len(failed),
		CompiledNodes:        compiled,
		CompiledNodesTotal:   len(compiled),
		TotalNodes:           totalNodes,
		TotalPercentage:      float64(len(failed)) / float64(totalNodes) * 100,
		FailedToCompileFiles: ranked,
		ExampleCompileErrors: examples,
		DroppedCalls:         state.DroppedCalls,
	}, nil
}
