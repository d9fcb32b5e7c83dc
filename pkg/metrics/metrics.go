package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Index plane metrics
	IndexVectorsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vectrixdb_index_vectors_total",
			Help: "Number of vectors currently held by each configured index",
		},
		[]string{"index_type"},
	)

	UpsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_upsert_duration_seconds",
			Help:    "Time taken to commit a single upsert across C1/C2/C3",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index_type"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_search_duration_seconds",
			Help:    "Time taken to answer a search request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index_type", "filtered"},
	)

	// FilterIndex metrics
	FilterBitmapCardinality = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vectrixdb_filter_bitmap_cardinality",
			Help: "Cardinality of the largest bitmap under a given filter field",
		},
		[]string{"field"},
	)

	// WAL metrics
	WALSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_wal_size_bytes",
			Help: "Size of the write-ahead log file on disk",
		},
	)

	WALLastSnapshotID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_wal_last_snapshot_id",
			Help: "last_snapshot_id recorded by the WAL sidecar",
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_snapshot_duration_seconds",
			Help:    "Time taken to write a full index snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Raft / ReplicationCore metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vectrixdb_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_raft_apply_duration_seconds",
			Help:    "Time taken for append() to resolve",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_raft_commit_duration_seconds",
			Help:    "Time taken by the state-machine commit callback",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTP surface metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectrixdb_api_requests_total",
			Help: "Total number of HTTP API requests by path and status",
		},
		[]string{"path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vectrixdb_api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(
		IndexVectorsTotal,
		UpsertDuration,
		SearchDuration,
		FilterBitmapCardinality,
		WALSizeBytes,
		WALLastSnapshotID,
		SnapshotDuration,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		RaftApplyDuration,
		RaftCommitDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
