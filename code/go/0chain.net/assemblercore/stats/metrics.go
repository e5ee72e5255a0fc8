package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chunk outcomes
const (
	ChunkStored   = "stored"
	ChunkMerged   = "merged"
	ChunkRejected = "rejected"
	ChunkFailed   = "failed"
)

// merge outcomes
const (
	MergeOK     = "ok"
	MergeFailed = "failed"
)

// Metrics holds the Prometheus metrics of the assembler. A nil *Metrics records nothing.
type Metrics struct {
	ChunksReceived  *prometheus.CounterVec // assembler_chunks_received_total{status}
	ChunkBytes      prometheus.Counter     // assembler_chunk_bytes_total
	Merges          *prometheus.CounterVec // assembler_merges_total{result}
	MergeDuration   prometheus.Histogram   // assembler_merge_duration_seconds
	CleanupFailures prometheus.Counter     // assembler_cleanup_failures_total
	StaleReaped     prometheus.Counter     // assembler_stale_assemblies_reaped_total
	ActiveLocks     prometheus.Gauge       // assembler_active_locks
}

// InitMetrics registers the assembler metrics on registry, prometheus.DefaultRegisterer when nil.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ChunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assembler_chunks_received_total",
			Help: "Chunks received by outcome",
		}, []string{"status"}),

		ChunkBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "assembler_chunk_bytes_total",
			Help: "Total bytes of stored chunks",
		}),

		Merges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assembler_merges_total",
			Help: "Merge attempts by result",
		}, []string{"result"}),

		MergeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assembler_merge_duration_seconds",
			Help:    "Time spent concatenating chunks",
			Buckets: prometheus.DefBuckets,
		}),

		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "assembler_cleanup_failures_total",
			Help: "Chunk deletions that failed after a merge",
		}),

		StaleReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "assembler_stale_assemblies_reaped_total",
			Help: "Incomplete assemblies removed by the stale cleaner",
		}),

		ActiveLocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "assembler_active_locks",
			Help: "File id locks held by the registry",
		}),
	}
}

// RecordChunk counts a received chunk by status, and its bytes once stored.
func (m *Metrics) RecordChunk(status string, size int64) {
	if m == nil {
		return
	}
	m.ChunksReceived.WithLabelValues(status).Inc()
	if size > 0 {
		m.ChunkBytes.Add(float64(size))
	}
}

// RecordMerge counts a merge attempt and observes its duration.
func (m *Metrics) RecordMerge(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(result).Inc()
	m.MergeDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordCleanupFailure() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}

func (m *Metrics) RecordStaleReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleReaped.Add(float64(n))
}

// SetActiveLocks publishes the registry size.
func (m *Metrics) SetActiveLocks(n int) {
	if m == nil {
		return
	}
	m.ActiveLocks.Set(float64(n))
}
