package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Partition/space inventory
	PartitionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulastore_partitions_total",
			Help: "Total number of partitions hosted locally by role (leader, follower, learner)",
		},
		[]string{"role"},
	)

	SpacesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebulastore_spaces_total",
			Help: "Total number of graph spaces known to this host",
		},
	)

	// Raft metrics, one series per partition
	RaftLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulastore_raft_is_leader",
			Help: "Whether this host is the Raft leader for a partition (1 = leader, 0 = follower)",
		},
		[]string{"space", "part"},
	)

	RaftPeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulastore_raft_peers_total",
			Help: "Total number of Raft peers for a partition",
		},
		[]string{"space", "part"},
	)

	RaftLogIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulastore_raft_log_index",
			Help: "Current Raft log index for a partition",
		},
		[]string{"space", "part"},
	)

	RaftAppliedIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulastore_raft_applied_index",
			Help: "Last applied Raft log index for a partition",
		},
		[]string{"space", "part"},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nebulastore_raft_apply_duration_seconds",
			Help:    "Time taken to replicate and apply one Raft log entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RPC surface metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulastore_rpc_requests_total",
			Help: "Total number of storage RPCs served, by method and result code",
		},
		[]string{"method", "code"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebulastore_rpc_request_duration_seconds",
			Help:    "Storage RPC duration in seconds, by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RPCRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulastore_rpc_retries_total",
			Help: "Total number of sub-request retries issued by the dispatcher, by reason",
		},
		[]string{"reason"},
	)

	// Mutation pipeline metrics
	MutationApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebulastore_mutation_apply_duration_seconds",
			Help:    "Time taken to validate, assemble, and commit a mutation, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	PairedEdgeReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulastore_paired_edge_reconcile_total",
			Help: "Total number of asynchronous paired-edge reconciliation attempts, by result",
		},
		[]string{"result"},
	)

	IndexConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nebulastore_index_conflicts_total",
			Help: "Total number of unique-index conflicts rejected by the mutation pipeline",
		},
	)

	// Read pipeline metrics
	ReadLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebulastore_read_latency_seconds",
			Help:    "Read pipeline latency in seconds, by operation and consistency level",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "consistency"},
	)

	NeighborsScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nebulastore_neighbors_scanned_total",
			Help: "Total number of edge rows scanned to answer GetNeighbors requests",
		},
	)

	// Schema cache metrics
	SchemaCacheRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulastore_schema_cache_refresh_total",
			Help: "Total number of schema cache refreshes, by trigger (long_poll, miss, singleflight_shared)",
		},
		[]string{"trigger"},
	)

	// KV engine metrics
	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulastore_compactions_total",
			Help: "Total number of engine compaction/maintenance passes, by partition",
		},
		[]string{"space", "part"},
	)
)

func init() {
	prometheus.MustRegister(
		PartitionsTotal,
		SpacesTotal,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		RaftApplyDuration,
		RPCRequestsTotal,
		RPCRequestDuration,
		RPCRetriesTotal,
		MutationApplyDuration,
		PairedEdgeReconcileTotal,
		IndexConflictsTotal,
		ReadLatency,
		NeighborsScanned,
		SchemaCacheRefreshTotal,
		CompactionsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
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
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
