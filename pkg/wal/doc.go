// Package wal implements C5: a single append-only text log plus its
// snapshot sidecar. Log entries are UTF-8 lines shaped
// "<log_id>|<version>|<op>|<json>"; a line that doesn't match that
// grammar ends the log early rather than failing the read. The WAL is
// authoritative for replay order — pkg/scalarstore is authoritative for
// the value a given id holds — following the durability split described
// by the teacher's raft log/stable store pairing in pkg/manager, here
// collapsed into a single flat file since there is no separate Raft log
// store backing this layer.
package wal
