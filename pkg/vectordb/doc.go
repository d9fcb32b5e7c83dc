// Package vectordb implements C6, the commit-side orchestrator that
// keeps the scalar store (pkg/scalarstore), vector index plane
// (pkg/vectorindex via pkg/registry), and filter index
// (pkg/filterindex) mutually consistent on every upsert, and drives
// startup replay against the write-ahead log (pkg/wal). It owns C1–C5
// exclusively; callers above it (the replication commit callback, the
// HTTP surface) go through its methods (Upsert/Query/Search, the WAL
// writers, TakeSnapshot, ReloadDatabase, StartLogIndex) rather than
// touching C1–C5 directly.
package vectordb
