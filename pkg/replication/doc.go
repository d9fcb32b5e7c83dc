// Package replication implements C7: a hashicorp/raft-backed consensus
// log whose commit callback drives pkg/vectordb's Upsert. It is
// adapted from the teacher's pkg/manager — same transport, log store,
// and stable store wiring (TCP transport, raft-boltdb, a file snapshot
// store) — narrowed to the single state-machine operation this system
// needs (upsert) instead of warren's dozen resource-CRUD commands, and
// with elections suppressed at startup per spec.md §5 until
// EnableElectionTimeout is called explicitly.
package replication
