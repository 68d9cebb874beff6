// Package metrics records seed call and report figures for a run and writes
// them in the node_exporter textfile format.
package metrics

import (
	"errors"

	"catalogpull/internal/pull"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalogpull"

// Recorder owns a private registry so a run never leaks into the global one.
type Recorder struct {
	registry *prometheus.Registry

	SeedCalls         *prometheus.CounterVec
	SeedDuration      *prometheus.HistogramVec
	TotalNodes        prometheus.Gauge
	FailedNodes       prometheus.Gauge
	FailurePercentage prometheus.Gauge
	DroppedCalls      prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		SeedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_calls_total",
			Help:      "Catalog requests by server role and outcome (compiled, failed, error).",
		}, []string{"server", "outcome"}),
		SeedDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seed_duration_seconds",
			Help:      "Time spent retrieving one catalog.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"server"}),
		TotalNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Nodes selected by the fact query.",
		}),
		FailedNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_nodes",
			Help:      "Nodes that failed to compile on the new server.",
		}),
		FailurePercentage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failure_percentage",
			Help:      "Failed nodes as a percentage of all nodes.",
		}),
		DroppedCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_calls",
			Help:      "Seed calls that errored and were left out of the report.",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSeed is safe to call from worker goroutines.
func (r *Recorder) ObserveSeed(ev pull.SeedEvent) {
	server := string(ev.Target.Role)
	r.SeedCalls.WithLabelValues(server, ev.Outcome()).Inc()
	r.SeedDuration.WithLabelValues(server).Observe(ev.Duration.Seconds())
}

func (r *Recorder) ObserveReport(rep *pull.Report) {
	if rep == nil {
		return
	}
	r.TotalNodes.Set(float64(rep.TotalNodes))
	r.FailedNodes.Set(float64(rep.FailedNodesTotal))
	r.FailurePercentage.Set(rep.TotalPercentage)
	r.DroppedCalls.Set(float64(rep.DroppedCalls))
}

// WriteTextfile atomically replaces path with the current metric values.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics: textfile path is empty")
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
