// Package metrics records per-run counters for the sales pipeline and
// optionally pushes them to a Prometheus Pushgateway. A batch job has no
// scrape endpoint, so Push is the only export path.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-etl/internal/resilience"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "sales_etl"

// Record kinds for the records counter.
const (
	KindExtracted   = "extracted"
	KindDuplicate   = "duplicate"
	KindNonPositive = "non_positive"
	KindLoaded      = "loaded"
)

// Stage status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder owns a private registry so repeated runs in one process (tests)
// never collide on the default registry.
type Recorder struct {
	reg *prometheus.Registry

	records       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	tableRows     prometheus.Gauge

	retry resilience.Policy
}

// New constructs a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg:   reg,
		retry: resilience.PushgatewayPush(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_etl_records_total",
			Help: "Sales records seen per kind (extracted, duplicate, non_positive, loaded).",
		}, []string{"kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sales_etl_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_etl_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"status"}),
		tableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sales_etl_table_rows",
			Help: "Row count of the sales table after the last validation.",
		}),
	}
	reg.MustRegister(r.records, r.stageDuration, r.runs, r.tableRows)
	return r
}

// Registry exposes the underlying registry as a Gatherer.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// AddRecords increments the records counter for kind.
func (r *Recorder) AddRecords(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.records.WithLabelValues(kind).Add(float64(n))
}

// ObserveStage records how long stage took, labelled by whether err is nil.
func (r *Recorder) ObserveStage(stage string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage, statusOf(err)).Observe(time.Since(start).Seconds())
}

// RunFinished counts a completed run.
func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(statusOf(err)).Inc()
}

// SetTableRows records the post-load row count.
func (r *Recorder) SetTableRows(n int64) {
	if r == nil {
		return
	}
	r.tableRows.Set(float64(n))
}

// Push sends the registry to a Pushgateway, replacing the job's group.
// Network failures and 5xx/429 responses are retried.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return eris.New("metrics: pushgateway URL is required")
	}
	if job == "" {
		job = DefaultJob
	}

	pusher := push.New(gatewayURL, job).Gatherer(r.reg)
	if err := resilience.Do(ctx, r.retry, pusher.PushContext); err != nil {
		return eris.Wrapf(err, "metrics: push to %s", gatewayURL)
	}
	return nil
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
