// Package vdberrors defines the node-wide error taxonomy: request errors
// that never reach consensus, transient replication errors callers should
// retry, and durability/replay errors that take a node out of service.
package vdberrors
