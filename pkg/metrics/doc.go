// Package metrics registers vectrixdb's Prometheus metrics: index
// sizes and upsert/search latency, filter bitmap cardinality, WAL
// size and snapshot horizon, Raft state, and HTTP request counters.
// All metrics are package-level vars registered at init, following the
// teacher's global-registry convention; Collector (collector.go) is
// the periodic ticker that samples the stateful ones.
package metrics
