package output

import (
	"encoding/json"
	"io"

	"catalogpull/internal/pull"
)

// aggregate keeps what the json format writes on Close: the report of a
// pull run, or the node list of a discovery-only run.
type aggregate struct {
	report *pull.Report
	nodes  []string
}

func (a *aggregate) observe(ev Event) {
	switch ev.Type {
	case EventReport:
		a.report = ev.Report
	case EventNodesDiscovered:
		a.nodes = append([]string(nil), ev.NodeNames...)
	}
}

func (a *aggregate) writeJSON(w io.Writer) error {
	var v any
	switch {
	case a.report != nil:
		v = a.report
	case a.nodes != nil:
		v = struct {
			Nodes []string `json:"nodes"`
		}{Nodes: a.nodes}
	default:
		return nil
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// flushIfPossible pushes buffered output (bufio.Writer, test recorders) out
// after each streamed line.
func flushIfPossible(w io.Writer) error {
	f, ok := w.(interface{ Flush() error })
	if !ok {
		return nil
	}
	return f.Flush()
}
