// Package scalarstore is the durable key→document store backing C1 of the
// vectrixdb core: an embedded ordered KV engine (bbolt) that is the source
// of truth for per-ID payloads. A read miss is represented as (nil, false),
// never an error — spec.md §4.1 is explicit that Absent is a normal result,
// not a failure.
package scalarstore
