/*
Package metrics provides Prometheus metrics collection and exposition for nebulastore.

The metrics package defines and registers every nebulastore metric using the
Prometheus client library, giving observability into partition placement, Raft
replication health, RPC throughput and latency, and mutation/read pipeline
behavior. Metrics are exposed via an HTTP endpoint for scraping by Prometheus
servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                  │          │
	│  │                                              │          │
	│  │  Partition inventory: PartitionsTotal,      │          │
	│  │    SpacesTotal                              │          │
	│  │  Raft: RaftLeader, RaftPeers, RaftLogIndex, │          │
	│  │    RaftAppliedIndex, RaftApplyDuration      │          │
	│  │  RPC surface: RPCRequestsTotal,             │          │
	│  │    RPCRequestDuration, RPCRetriesTotal      │          │
	│  │  Mutation pipeline: MutationApplyDuration,  │          │
	│  │    PairedEdgeReconcileTotal,                │          │
	│  │    IndexConflictsTotal                      │          │
	│  │  Read pipeline: ReadLatency,                │          │
	│  │    NeighborsScanned                         │          │
	│  │  Schema cache: SchemaCacheRefreshTotal      │          │
	│  │  KV engine: CompactionsTotal                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: metrics.Handler()                │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Partition inventory:

nebulastore_partitions_total{role}:
  - Type: Gauge
  - Description: Partitions hosted locally by role (leader, follower, learner)

nebulastore_spaces_total:
  - Type: Gauge
  - Description: Graph spaces known to this host

Raft metrics (labeled by space, part):

nebulastore_raft_is_leader{space,part}:
  - Type: Gauge
  - Description: 1 if this host is the partition's Raft leader, else 0

nebulastore_raft_peers_total{space,part}:
  - Type: Gauge
  - Description: Raft peers in the partition's replication group

nebulastore_raft_log_index{space,part} / nebulastore_raft_applied_index{space,part}:
  - Type: Gauge
  - Description: Current and last-applied Raft log index

nebulastore_raft_apply_duration_seconds:
  - Type: Histogram
  - Description: Time to replicate and apply one Raft log entry

RPC surface metrics:

nebulastore_rpc_requests_total{method,code}:
  - Type: Counter
  - Description: Storage RPCs served, by method and result code

nebulastore_rpc_request_duration_seconds{method}:
  - Type: Histogram
  - Description: Storage RPC duration, by method

nebulastore_rpc_retries_total{reason}:
  - Type: Counter
  - Description: Dispatcher sub-request retries, by reason

Mutation pipeline metrics:

nebulastore_mutation_apply_duration_seconds{kind}:
  - Type: Histogram
  - Description: Time to validate, assemble, and commit a mutation, by kind

nebulastore_paired_edge_reconcile_total{result}:
  - Type: Counter
  - Description: Asynchronous paired-edge reconciliation attempts, by result

nebulastore_index_conflicts_total:
  - Type: Counter
  - Description: Unique-index conflicts rejected by the mutation pipeline

Read pipeline metrics:

nebulastore_read_latency_seconds{op,consistency}:
  - Type: Histogram
  - Description: Read pipeline latency, by operation and consistency level

nebulastore_neighbors_scanned_total:
  - Type: Counter
  - Description: Edge rows scanned to answer GetNeighbors requests

Schema cache metrics:

nebulastore_schema_cache_refresh_total{trigger}:
  - Type: Counter
  - Description: Schema cache refreshes, by trigger (long_poll, miss, singleflight_shared)

KV engine metrics:

nebulastore_compactions_total{space,part}:
  - Type: Counter
  - Description: Engine compaction/maintenance passes, by partition

# Usage

Updating Gauge Metrics:

	import "github.com/cuemby/nebulastore/pkg/metrics"

	metrics.PartitionsTotal.WithLabelValues("leader").Set(12)
	metrics.SpacesTotal.Inc()

Updating Counter Metrics:

	metrics.RPCRequestsTotal.WithLabelValues("AddVertices", "ok").Inc()
	metrics.IndexConflictsTotal.Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.ReadLatency.WithLabelValues("GetNeighbors", "strong").Observe(0.004)

	// Using the Timer helper
	timer := metrics.NewTimer()
	// ... perform the mutation ...
	timer.ObserveDurationVec(metrics.MutationApplyDuration, "add_vertices")

Complete Example:

	package main

	import (
		"net/http"

		"github.com/cuemby/nebulastore/pkg/metrics"
	)

	func main() {
		metrics.PartitionsTotal.WithLabelValues("leader").Set(4)
		metrics.RaftLeader.WithLabelValues("1", "0").Set(1)

		timer := metrics.NewTimer()
		applyMutation()
		timer.ObserveDurationVec(metrics.MutationApplyDuration, "add_vertices")

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func applyMutation() {}

# Integration Points

This package integrates with:

  - internal/raftgroup: times each Raft apply into RaftApplyDuration
  - internal/rpc: records RPCRequestsTotal and RPCRequestDuration per
    sub-request, and RPCRetriesTotal on leader-changed retries
  - internal/schema: counts cache refresh triggers
  - Prometheus: scrapes the /metrics endpoint

The partition-inventory gauges, the Raft leader/peer/index gauges, the
mutation and read pipeline metrics, and CompactionsTotal are registered
but no package in this repository updates them.

# Design Patterns

Package Init Registration:
  - All metrics registered in init() via MustRegister
  - Ensures metrics are available before main() runs

Label Discipline:
  - Labels are bounded (role, method, kind, result, trigger) — never raw
    vertex/edge IDs or timestamps

Timer Pattern:
  - Create a Timer at operation start, observe duration on completion
  - Supports both plain histograms and label vectors

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
