package output

import (
	"catalogpull/internal/pull"
)

func sampleReport() *pull.Report {
	return &pull.Report{
		FailedNodes: map[string]string{
			"b": "Error: Evaluation Error: Unknown resource at /modules/foo/manifests/bar.pp:4:2 on node b",
			"d": "boom",
		},
		FailedNodesTotal:   2,
		CompiledNodes:      []string{"a", "a", "b", "c", "c", "d"},
		CompiledNodesTotal: 6,
		TotalNodes:         4,
		TotalPercentage:    50,
		FailedToCompileFiles: []pull.RankedEntry{
			{Bucket: "No-path-in-error-9f9d51bc70ef21ca5c14f307980a29d8", Nodes: 1},
			{Bucket: "/modules/foo/manifests/bar.pp", Nodes: 1},
		},
		ExampleCompileErrors: []pull.ExampleError{
			{Error: "boom", Node: "d"},
			{Error: "Error: Evaluation Error: Unknown resource at /modules/foo/manifests/bar.pp:4:2 on node b", Node: "b"},
		},
	}
}
