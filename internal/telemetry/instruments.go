package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope used for classcatalog spans and metrics.
const ScopeName = "github.com/fyrsmithlabs/classcatalog"

// Instruments groups the metric instruments recorded during a run.
type Instruments struct {
	catalogsWritten metric.Int64Counter
	entries         metric.Int64Gauge
	gitDuration     metric.Float64Histogram
}

// NewInstruments creates the classcatalog instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	written, err := meter.Int64Counter("classcatalog.catalogs.written",
		metric.WithDescription("Catalog files written"),
		metric.WithUnit("{file}"))
	if err != nil {
		return nil, fmt.Errorf("creating catalogs.written counter: %w", err)
	}

	entries, err := meter.Int64Gauge("classcatalog.entries",
		metric.WithDescription("Entries in the most recent catalog for a version"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("creating entries gauge: %w", err)
	}

	duration, err := meter.Float64Histogram("classcatalog.git.command.duration",
		metric.WithDescription("Duration of git operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating git.command.duration histogram: %w", err)
	}

	return &Instruments{
		catalogsWritten: written,
		entries:         entries,
		gitDuration:     duration,
	}, nil
}

// RecordCatalog records a written catalog for version.
func (i *Instruments) RecordCatalog(ctx context.Context, version string, entries int) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("version", version))
	i.catalogsWritten.Add(ctx, 1, attrs)
	i.entries.Record(ctx, int64(entries), attrs)
}

// RecordGitCommand records how long a git operation took and whether it failed.
func (i *Instruments) RecordGitCommand(ctx context.Context, operation string, d time.Duration, err error) {
	if i == nil {
		return
	}
	i.gitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("git.operation", operation),
		attribute.Bool("error", err != nil),
	))
}
