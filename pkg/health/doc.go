// Package health provides checker primitives (HTTP, TCP) used to probe
// Raft peer liveness for the topology-refresh timer described in
// spec.md §5 ("periodic timers: snapshot/admin, topology refresh").
// Checker/Result/Status are domain-agnostic and kept as the teacher
// wrote them; pkg/replication uses TCPChecker against each peer's
// advertised endpoint rather than the teacher's container liveness use.
package health
