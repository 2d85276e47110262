// Package metrics provides Prometheus metrics for the test harness.
//
// All metrics are batch-level aggregates: the harness runs a handful of
// processes per run, so there is no cardinality concern.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	harnessInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netharness_info",
			Help: "Information about the harness invocation (value always 1)",
		},
		[]string{"version", "interface"},
	)

	runsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netharness_runs_completed_total",
			Help: "Runs that reached artifact collection",
		},
	)

	runsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netharness_runs_failed_total",
			Help: "Runs aborted before their hold phase",
		},
	)

	processStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netharness_process_starts_total",
			Help: "Processes launched, by role",
		},
		[]string{"role"},
	)

	captureBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netharness_capture_bytes_total",
			Help: "Bytes of finalized capture artifacts",
		},
	)

	capturePacketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netharness_capture_packets_total",
			Help: "Packets in finalized capture artifacts",
		},
	)

	activeProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netharness_active_processes",
			Help: "Processes currently alive in the active run",
		},
	)

	currentRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netharness_current_run",
			Help: "The active scenario and repetition (value always 1)",
		},
		[]string{"scenario", "repetition"},
	)

	batchProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netharness_batch_progress",
			Help: "Fraction of the batch completed (0.0 to 1.0)",
		},
	)
)

var registerOnce sync.Once

// registerAll registers the package metrics with the default registry.
// Guarded so tests creating multiple Collectors don't double-register.
func registerAll() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			harnessInfo,
			runsCompletedTotal,
			runsFailedTotal,
			processStartsTotal,
			captureBytesTotal,
			capturePacketsTotal,
			activeProcesses,
			currentRun,
			batchProgress,
		)
	})
}

// Collector tracks batch progress for Prometheus and for the exit
// summary's uptime distribution.
type Collector struct {
	startTime time.Time

	mu        sync.Mutex
	completed int
	failed    int
	uptimes   *tdigest.TDigest
	samples   int
}

// NewCollector creates a Collector and registers the metrics.
func NewCollector(version, iface string) *Collector {
	registerAll()
	harnessInfo.WithLabelValues(version, iface).Set(1)

	return &Collector{
		startTime: time.Now(),
		uptimes:   tdigest.NewWithCompression(100),
	}
}

// RunStarted marks the active scenario/repetition.
func (c *Collector) RunStarted(scenario string, rep int) {
	currentRun.Reset()
	currentRun.WithLabelValues(scenario, strconv.Itoa(rep)).Set(1)
}

// RunCompleted records a run that reached artifact collection.
func (c *Collector) RunCompleted() {
	runsCompletedTotal.Inc()
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

// RunFailed records a run aborted before its hold phase.
func (c *Collector) RunFailed() {
	runsFailedTotal.Inc()
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

// ProcessStarted records a process launch by role ("server"/"client").
func (c *Collector) ProcessStarted(role string) {
	processStartsTotal.WithLabelValues(role).Inc()
}

// SetActiveProcesses updates the live-process gauge.
func (c *Collector) SetActiveProcesses(n int) {
	activeProcesses.Set(float64(n))
}

// SetBatchProgress updates the completed fraction of the batch.
func (c *Collector) SetBatchProgress(f float64) {
	batchProgress.Set(f)
}

// RecordCapture accounts a finalized capture artifact.
func (c *Collector) RecordCapture(bytes int64, packets int) {
	captureBytesTotal.Add(float64(bytes))
	capturePacketsTotal.Add(float64(packets))
}

// RecordUptime feeds one process uptime into the distribution.
func (c *Collector) RecordUptime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uptimes.Add(d.Seconds(), 1)
	c.samples++
}

// BatchSummary is the aggregate view printed at exit.
type BatchSummary struct {
	Elapsed   time.Duration
	Completed int
	Failed    int

	UptimeP50 time.Duration
	UptimeP95 time.Duration
	UptimeP99 time.Duration
}

// Summary snapshots the batch aggregates.
func (c *Collector) Summary() BatchSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := BatchSummary{
		Elapsed:   time.Since(c.startTime),
		Completed: c.completed,
		Failed:    c.failed,
	}
	if c.samples > 0 {
		s.UptimeP50 = secondsToDuration(c.uptimes.Quantile(0.50))
		s.UptimeP95 = secondsToDuration(c.uptimes.Quantile(0.95))
		s.UptimeP99 = secondsToDuration(c.uptimes.Quantile(0.99))
	}
	return s
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
