package scalarstore

// Store is the durable key→document store that backs C1. Every method that
// writes returns only once the engine's internal WAL has been fsynced, and
// every method that reads the latest committed payload, never a cache.
type Store interface {
	// Put durably writes the JSON-encoded document for id.
	Put(id uint64, document []byte) error

	// Get returns the latest committed document for id. A miss is (nil,
	// false, nil) — Absent is not an error.
	Get(id uint64) ([]byte, bool, error)

	// PutRaw stores an opaque byte blob under a caller-chosen string key,
	// used by FilterIndex to persist bitmap snapshots.
	PutRaw(key string, value []byte) error

	// GetRaw reads back a blob stored with PutRaw.
	GetRaw(key string) ([]byte, bool, error)

	// Close releases the underlying engine handle.
	Close() error
}
