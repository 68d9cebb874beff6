package output

import (
	"catalogpull/internal/pull"
)

const (
	EventRunStarted      = "run.started"
	EventNodesDiscovered = "nodes.discovered"
	EventNodeSeeded      = "node.seeded"
	EventReport          = "report"
	EventRunFinished     = "run.finished"
)

// Event is one record of a run. In NDJSON mode every event is written as a
// line; aggregate formats pick out the events they render.
type Event struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`

	OldServer string `json:"old_server,omitempty"`
	NewServer string `json:"new_server,omitempty"`
	Threads   int    `json:"threads,omitempty"`

	Nodes     int      `json:"nodes,omitempty"`
	NodeNames []string `json:"node_names,omitempty"`

	Node       string `json:"node,omitempty"`
	Role       string `json:"role,omitempty"`
	Server     string `json:"server,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`

	Report   *pull.Report `json:"report,omitempty"`
	ExitCode int          `json:"exit_code,omitempty"`
}

// NodeSeeded converts a finished seed call into a node.seeded event.
func NodeSeeded(runID string, ev pull.SeedEvent) Event {
	e := Event{
		Type:       EventNodeSeeded,
		RunID:      runID,
		Node:       ev.Node,
		Role:       string(ev.Target.Role),
		Server:     ev.Target.Server,
		Outcome:    ev.Outcome(),
		Error:      ev.Failure,
		DurationMS: ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	return e
}
