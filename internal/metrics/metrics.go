// Package metrics records per-version extraction results as Prometheus
// metrics and writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one extraction run.
//
// Each Metrics owns a private registry so repeated runs in one process (and
// parallel tests) never collide on registration.
//
// Metrics:
//   - classcatalog_entries{version} - entries in the catalog last written for version
//   - classcatalog_last_success_timestamp_seconds{version} - when that catalog was written
//   - classcatalog_version_failures_total{version} - versions that failed in this run
type Metrics struct {
	registry *prometheus.Registry

	Entries     *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec
	Failures    *prometheus.CounterVec

	now func() time.Time
}

// New creates Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "classcatalog_entries",
				Help: "Number of entries in the catalog written for a version",
			},
			[]string{"version"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "classcatalog_last_success_timestamp_seconds",
				Help: "Unix time the catalog for a version was last written",
			},
			[]string{"version"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classcatalog_version_failures_total",
				Help: "Versions whose extraction failed",
			},
			[]string{"version"},
		),
		now: time.Now,
	}
}

// ObserveSuccess records a written catalog.
func (m *Metrics) ObserveSuccess(version string, entries int) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues(version).Set(float64(entries))
	m.LastSuccess.WithLabelValues(version).Set(float64(m.now().Unix()))
}

// ObserveFailure records a failed version.
func (m *Metrics) ObserveFailure(version string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(version).Inc()
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics to path. The file is replaced atomically,
// so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
