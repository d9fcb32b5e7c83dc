package vdberrors

import "errors"

// Request errors: malformed input, never submitted to the replicated log.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrMissingField     = errors.New("missing required field")
	ErrUnknownIndexType = errors.New("unknown index type")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Routing errors: surfaced by the (out-of-scope) proxy/master, included here
// so the HTTP surface can return the same status codes when it stands in
// for them during local testing.
var ErrNoMasterForPartition = errors.New("no master node for partition")

// Transient replication errors: callers should retry or redirect.
var (
	ErrNotLeader = errors.New("not the leader")
	ErrNoQuorum  = errors.New("no quorum available")
)

// Durability errors: fatal for the node; it must stop accepting writes.
var (
	ErrDurability = errors.New("durability failure")
	ErrWALWrite   = errors.New("wal write failure")
)

// Replay errors: fatal at startup, the log must never be silently skipped.
var (
	ErrReplay          = errors.New("replay failure")
	ErrCorruptWALEntry = errors.New("corrupt wal entry")
)

// ErrAbsent is returned by nothing — a storage miss is represented as
// (zero value, false), matching spec.md §4.1 ("read miss returns Absent,
// not an error"). It is kept here only as a documented non-error sentinel
// for callers that want to log the case uniformly.
var ErrAbsent = errors.New("absent")
