package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"catalogpull/internal/pull"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	agg    aggregate
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{writer: w, format: format}
}

func (s *ConsoleSink) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		s.agg.observe(ev)
		return nil
	case "ndjson":
		if err := json.NewEncoder(s.writer).Encode(ev); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		switch ev.Type {
		case EventNodesDiscovered:
			for _, n := range ev.NodeNames {
				if _, err := fmt.Fprintln(s.writer, n); err != nil {
					return err
				}
			}
		case EventReport:
			if err := RenderText(s.writer, ev.Report); err != nil {
				return err
			}
		default:
			// Progress is reported through the logger in text mode.
			return nil
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		return s.agg.writeJSON(s.writer)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

// RenderText prints the run summary followed by the ranked problem files and
// one example error for each of them.
func RenderText(w io.Writer, rep *pull.Report) error {
	if rep == nil {
		return nil
	}
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	status := green
	if rep.FailedNodesTotal > 0 {
		status = red
	}
	if _, err := status.Fprintf(w, "%d of %d nodes failed to compile (%.2f%%)", rep.FailedNodesTotal, rep.TotalNodes, rep.TotalPercentage); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, ", %d catalogs retrieved\n", rep.CompiledNodesTotal); err != nil {
		return err
	}
	if rep.DroppedCalls > 0 {
		if _, err := yellow.Fprintf(w, "%d catalog requests errored and are not counted\n", rep.DroppedCalls); err != nil {
			return err
		}
	}

	if len(rep.FailedToCompileFiles) > 0 {
		if _, err := bold.Fprintln(w, "\nFailed to compile files:"); err != nil {
			return err
		}
		for _, e := range rep.FailedToCompileFiles {
			if _, err := fmt.Fprintf(w, "  %5d  %s\n", e.Nodes, e.Bucket); err != nil {
				return err
			}
		}
	}

	if len(rep.ExampleCompileErrors) > 0 {
		if _, err := bold.Fprintln(w, "\nExample compile errors:"); err != nil {
			return err
		}
		for _, e := range rep.ExampleCompileErrors {
			if _, err := fmt.Fprintf(w, "  %s: ", e.Node); err != nil {
				return err
			}
			if _, err := red.Fprintln(w, e.Error); err != nil {
				return err
			}
		}
	}
	return nil
}
