package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	cellsComputed   *prometheus.CounterVec
	cellDuration    *prometheus.HistogramVec
	stagesCompleted *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec

	resolverCalls   *prometheus.CounterVec
	resolverLatency *prometheus.HistogramVec

	traceWrites     prometheus.Counter
	traceDedupeHits prometheus.Counter
	traceRotations  prometheus.Counter

	exports    *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	activeRuns        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		cellsComputed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirality_cells_computed_total",
				Help: "Total number of cell computations",
			},
			[]string{"matrix", "status"},
		),
		cellDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chirality_cell_duration_seconds",
				Help:    "Full cell pipeline duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"matrix"},
		),
		stagesCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirality_stages_completed_total",
				Help: "Total number of pipeline stages completed",
			},
			[]string{"kind"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chirality_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		resolverCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirality_resolver_calls_total",
				Help: "Total number of resolver calls",
			},
			[]string{"model", "operation"},
		),
		resolverLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chirality_resolver_latency_seconds",
				Help:    "Resolver call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"model", "operation"},
		),
		traceWrites: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chirality_trace_writes_total",
				Help: "Total number of trace records written",
			},
		),
		traceDedupeHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chirality_trace_dedupe_hits_total",
				Help: "Total number of trace records suppressed by dedupe",
			},
		),
		traceRotations: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chirality_trace_rotations_total",
				Help: "Total number of trace file rotations",
			},
		),
		exports: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirality_graph_exports_total",
				Help: "Total number of graph export attempts",
			},
			[]string{"status"},
		),
		sinkErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chirality_sink_errors_total",
				Help: "Total number of best-effort sink failures",
			},
			[]string{"sink"},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chirality_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chirality_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chirality_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chirality_active_runs",
				Help: "Number of currently active valley runs",
			},
		),
	}
}

// RecordCellComputed records one finished cell computation
func (c *Collector) RecordCellComputed(matrix, status string, duration time.Duration) {
	c.cellsComputed.WithLabelValues(matrix, status).Inc()
	c.cellDuration.WithLabelValues(matrix).Observe(duration.Seconds())
}

// RecordStageCompleted records one completed pipeline stage
func (c *Collector) RecordStageCompleted(kind string, duration time.Duration) {
	c.stagesCompleted.WithLabelValues(kind).Inc()
	c.stageDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordResolverCall records one resolver round trip
func (c *Collector) RecordResolverCall(model, operation string, duration time.Duration) {
	c.resolverCalls.WithLabelValues(model, operation).Inc()
	c.resolverLatency.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordTraceWrite records one appended trace record
func (c *Collector) RecordTraceWrite() {
	c.traceWrites.Inc()
}

// RecordTraceDedupeHit records one suppressed duplicate trace record
func (c *Collector) RecordTraceDedupeHit() {
	c.traceDedupeHits.Inc()
}

// RecordTraceRotation records one trace file rotation
func (c *Collector) RecordTraceRotation() {
	c.traceRotations.Inc()
}

// RecordExport records one graph export attempt
func (c *Collector) RecordExport(status string) {
	c.exports.WithLabelValues(status).Inc()
}

// RecordSinkError records one best-effort sink failure
func (c *Collector) RecordSinkError(sink string) {
	c.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetActiveRuns sets the number of currently active runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
