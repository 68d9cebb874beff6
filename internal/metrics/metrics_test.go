package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"catalogpull/internal/pull"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveSeed(t *testing.T) {
	r := NewRecorder()

	r.ObserveSeed(pull.SeedEvent{Node: "a", Target: pull.Target{Role: pull.RoleNew}, Compiled: true, Duration: time.Second})
	r.ObserveSeed(pull.SeedEvent{Node: "b", Target: pull.Target{Role: pull.RoleNew}, Failure: "boom"})
	r.ObserveSeed(pull.SeedEvent{Node: "b", Target: pull.Target{Role: pull.RoleOld}, Compiled: true})

	if got := testutil.ToFloat64(r.SeedCalls.WithLabelValues("new", "compiled")); got != 1 {
		t.Errorf("SeedCalls[new,compiled] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(r.SeedCalls.WithLabelValues("new", "failed")); got != 1 {
		t.Errorf("SeedCalls[new,failed] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(r.SeedCalls.WithLabelValues("old", "compiled")); got != 1 {
		t.Errorf("SeedCalls[old,compiled] = %f, want 1", got)
	}
	if got := testutil.CollectAndCount(r.SeedDuration); got != 2 {
		t.Errorf("SeedDuration series = %d, want 2", got)
	}
}

func TestRecorder_ObserveReport(t *testing.T) {
	r := NewRecorder()
	r.ObserveReport(nil)
	r.ObserveReport(&pull.Report{TotalNodes: 4, FailedNodesTotal: 2, TotalPercentage: 50, DroppedCalls: 1})

	if got := testutil.ToFloat64(r.FailedNodes); got != 2 {
		t.Errorf("FailedNodes = %f, want 2", got)
	}
	if got := testutil.ToFloat64(r.FailurePercentage); got != 50 {
		t.Errorf("FailurePercentage = %f, want 50", got)
	}
	if got := testutil.ToFloat64(r.DroppedCalls); got != 1 {
		t.Errorf("DroppedCalls = %f, want 1", got)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveReport(&pull.Report{TotalNodes: 10, FailedNodesTotal: 1, TotalPercentage: 10})

	path := filepath.Join(t.TempDir(), "catalogpull.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{"catalogpull_failed_nodes 1", "catalogpull_failure_percentage 10", "catalogpull_nodes 10"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("textfile missing %q:\n%s", want, raw)
		}
	}

	if err := r.WriteTextfile(""); err == nil {
		t.Errorf("expected error for empty path")
	}
}
