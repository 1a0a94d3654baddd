// Package metrics records sheet runs as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

// Metrics implements export.MetricsHook on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Sheet runs by outcome: completed, failed, canceled.
	SheetRuns *prometheus.CounterVec
	// Failed runs by error kind.
	SheetErrors *prometheus.CounterVec
	// Rows and bytes written by sheet.
	RowsWritten  *prometheus.CounterVec
	BytesWritten *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	InFlight     prometheus.Gauge
	// Auxiliary lines dropped for having too few fields.
	AuxSkipped prometheus.Counter

	LastSuccess *prometheus.GaugeVec
}

// New creates Metrics with every collector registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		SheetRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsheet_sheet_runs_total",
			Help: "Sheet runs by outcome",
		}, []string{"outcome"}),
		SheetErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsheet_sheet_errors_total",
			Help: "Failed sheet runs by error kind",
		}, []string{"kind"}),
		RowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsheet_rows_written_total",
			Help: "Data rows written by sheet",
		}, []string{"sheet"}),
		BytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logsheet_bytes_written_total",
			Help: "Bytes persisted by sheet",
		}, []string{"sheet"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logsheet_sheet_run_duration_seconds",
			Help:    "Duration of a sheet run from open to save",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logsheet_sheet_runs_in_flight",
			Help: "Sheet runs currently in progress",
		}),
		AuxSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "logsheet_aux_lines_skipped_total",
			Help: "Auxiliary lines skipped for having too few fields",
		}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logsheet_sheet_last_success_timestamp_seconds",
			Help: "Unix time of the last successful write by sheet",
		}, []string{"sheet"}),
	}
}

// Emit implements export.MetricsHook.
func (m *Metrics) Emit(ctx context.Context, evt export.MetricsEvent) error {
	_ = ctx
	if m == nil {
		return nil
	}
	switch evt.Name {
	case "sheet.started":
		m.InFlight.Inc()
	case "sheet.completed":
		m.finish("completed", evt)
		m.RowsWritten.WithLabelValues(evt.Sheet).Add(float64(evt.Rows))
		m.BytesWritten.WithLabelValues(evt.Sheet).Add(float64(evt.Bytes))
		m.LastSuccess.WithLabelValues(evt.Sheet).Set(float64(timestamp(evt).Unix()))
	case "sheet.failed", "sheet.canceled":
		outcome := "failed"
		if evt.Name == "sheet.canceled" {
			outcome = "canceled"
		}
		m.finish(outcome, evt)
		m.SheetErrors.WithLabelValues(string(evt.ErrorKind)).Inc()
	}
	return nil
}

// ObserveAuxSkip counts a dropped auxiliary line. Its signature matches
// enrich.SkipFunc.
func (m *Metrics) ObserveAuxSkip(lineNo int, line string, fields []string) {
	if m != nil {
		m.AuxSkipped.Inc()
	}
}

// Registry exposes the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes every metric in the text exposition format, for
// node_exporter's textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return export.NewError(export.KindPersistence, "write metrics textfile", err)
	}
	return nil
}

func (m *Metrics) finish(outcome string, evt export.MetricsEvent) {
	m.SheetRuns.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(evt.Duration.Seconds())
	m.InFlight.Dec()
}

func timestamp(evt export.MetricsEvent) time.Time {
	if evt.Timestamp.IsZero() {
		return time.Now()
	}
	return evt.Timestamp
}
