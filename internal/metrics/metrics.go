// Package metrics records generation runs as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/simonhull/hatch/internal/report"
)

// Metrics holds the collectors for generation runs.
type Metrics struct {
	Registry    *prometheus.Registry
	generations *prometheus.CounterVec
	files       *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatch_generations_total",
				Help: "Generation runs by outcome",
			},
			[]string{"outcome"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatch_files_total",
				Help: "Files processed by status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hatch_generation_duration_seconds",
				Help:    "Duration of generate and materialize cycles",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
	}
	m.Registry.MustRegister(m.generations, m.files, m.duration)
	return m
}

// Observe records one finished run.
func (m *Metrics) Observe(out report.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(out.Kind.String()).Inc()
	for _, path := range out.Succeeded {
		m.files.WithLabelValues(out.Changes[path].String()).Inc()
	}
	if n := len(out.Failed); n > 0 {
		m.files.WithLabelValues("failed").Add(float64(n))
	}
	m.duration.Observe(elapsed.Seconds())
}

// WriteTextfile writes the registry to path in the text exposition format
// read by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
