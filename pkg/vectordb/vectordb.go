package vectordb

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/registry"
	"github.com/vectrix-io/vectrixdb/pkg/scalarstore"
	"github.com/vectrix-io/vectrixdb/pkg/vdberrors"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
	"github.com/vectrix-io/vectrixdb/pkg/wal"
)

// VectorDatabase is C6. It is safe for concurrent Search/Query calls;
// Upsert calls are expected to arrive already serialized by the
// replication commit callback (spec.md §5 "commit is strictly
// serialized"), so it does not itself hold a commit-wide lock — doing
// so would duplicate work the caller already guarantees and would
// needlessly block concurrent reads against the KV engine's own
// locking.
type VectorDatabase struct {
	scalar   scalarstore.Store
	registry *registry.Registry
	filters  *filterindex.Index
	log      *wal.WAL
	logger   zerolog.Logger
}

// New constructs a VectorDatabase over already-opened collaborators.
func New(scalar scalarstore.Store, reg *registry.Registry, filters *filterindex.Index, w *wal.WAL) *VectorDatabase {
	return &VectorDatabase{scalar: scalar, registry: reg, filters: filters, log: w, logger: log.WithComponent("vectordb")}
}

// Upsert applies a write: remove-old-vector (Flat only), insert the new
// vector, update filter bitmaps for every integer field, then durably
// store the document. The scalar store write happens last so a crash
// mid-upsert leaves the WAL as the sole source of truth for replay
// (spec.md §4.6).
func (db *VectorDatabase) Upsert(id uint64, doc Document, indexType vectorindex.Type) error {
	var oldDoc Document
	existing, found, err := db.scalar.Get(id)
	if err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrDurability, err)
	}
	if found {
		oldDoc, err = ParseDocument(existing)
		if err != nil {
			return fmt.Errorf("%w: stored document is corrupt: %v", vdberrors.ErrDurability, err)
		}
		for _, typ := range db.registry.Types() {
			idx, ok := db.registry.Get(typ)
			if !ok {
				continue
			}
			if flat, ok := idx.(*vectorindex.FlatIndex); ok {
				flat.Remove(id)
			}
		}
	}

	idx, ok := db.registry.Get(indexType)
	if !ok {
		return fmt.Errorf("%w: %s", vdberrors.ErrUnknownIndexType, indexType)
	}
	vector, err := doc.Vector()
	if err != nil {
		return err
	}
	if err := idx.Insert(id, vector); err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrDurability, err)
	}

	newInts := doc.IntFields()
	var oldInts map[string]int64
	if oldDoc != nil {
		oldInts = oldDoc.IntFields()
	}
	for field, newVal := range newInts {
		var oldVal *int64
		if v, ok := oldInts[field]; ok {
			oldVal = &v
		}
		db.filters.Update(field, oldVal, newVal, id)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrMalformedRequest, err)
	}
	if err := db.scalar.Put(id, raw); err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrDurability, err)
	}
	return nil
}

// Query looks up a document by id directly against the scalar store.
func (db *VectorDatabase) Query(id uint64) (Document, bool, error) {
	raw, found, err := db.scalar.Get(id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", vdberrors.ErrDurability, err)
	}
	if !found {
		return nil, false, nil
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Filter is an optional equality/inequality predicate applied before an
// ANN search, pushed down into the index traversal itself.
type Filter struct {
	Field string
	Op    filterindex.Op
	Value int64
}

// SearchRequest is the parsed form of a /search body.
type SearchRequest struct {
	Vector    []float32
	K         int
	IndexType vectorindex.Type
	Filter    *Filter
	Ef        int
}

// Search runs an optionally-filtered ANN query and returns the index's
// result as-is: no re-sorting, no re-truncation.
func (db *VectorDatabase) Search(req SearchRequest) ([]uint64, []float32, error) {
	idx, ok := db.registry.Get(req.IndexType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", vdberrors.ErrUnknownIndexType, req.IndexType)
	}

	var bitmap *filterindex.Bitmap
	if req.Filter != nil {
		bitmap = filterindex.NewBitmap()
		if err := db.filters.Query(req.Filter.Field, req.Filter.Op, req.Filter.Value, bitmap); err != nil {
			return nil, nil, err
		}
	}

	return idx.Search(req.Vector, req.K, bitmap, req.Ef)
}

// WriteWALLog is a thin delegation to the WAL, exposed for collaborators
// that need to record an entry outside the replicated commit path (e.g.
// a standalone node running without consensus).
func (db *VectorDatabase) WriteWALLog(op string, payload json.RawMessage) error {
	return db.log.Append(op, payload, 1)
}

// WriteWALRaw lets the replication layer reuse its own commit index as
// the WAL's log_id (spec.md §4.7 step 1), keeping the two logs aligned.
func (db *VectorDatabase) WriteWALRaw(logID uint64, op string, payload json.RawMessage, version int) error {
	return db.log.AppendRaw(logID, op, payload, version)
}

// IndexSizes reports the current vector count of every configured
// index, for metrics collection.
func (db *VectorDatabase) IndexSizes() map[vectorindex.Type]int {
	return db.registry.Sizes()
}

// FilterCardinalities reports per-field bitmap cardinalities, for
// metrics collection.
func (db *VectorDatabase) FilterCardinalities() map[string]uint64 {
	return db.filters.Cardinalities()
}

// WALSizeBytes reports the on-disk size of the WAL file, for metrics
// collection.
func (db *VectorDatabase) WALSizeBytes() int64 {
	return db.log.SizeBytes()
}

// TakeSnapshot delegates to the WAL's snapshot/registry coordination.
func (db *VectorDatabase) TakeSnapshot() error {
	return db.log.TakeSnapshot()
}

// StartLogIndex returns the WAL's last_snapshot_id, used by the
// replication layer to align its state-machine commit cursor on
// restart (spec.md §4.7).
func (db *VectorDatabase) StartLogIndex() uint64 {
	return db.log.StartLogIndex()
}

// ReloadDatabase calls the WAL's LoadSnapshot to restore C4 and the
// filter index, then replays WAL entries after last_snapshot_id. It
// stops at the first
// entry ReadNext reports as end-of-log (an empty op).
func (db *VectorDatabase) ReloadDatabase() error {
	if err := db.log.LoadSnapshot(); err != nil {
		return err
	}

	replayed := 0
	for {
		op, payload, err := db.log.ReadNext()
		if err != nil {
			return fmt.Errorf("%w: %v", vdberrors.ErrReplay, err)
		}
		if op == "" {
			break
		}
		if op != "upsert" {
			return fmt.Errorf("%w: unknown wal op %q", vdberrors.ErrReplay, op)
		}
		doc, err := ParseDocument(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", vdberrors.ErrReplay, err)
		}
		id, err := doc.ID()
		if err != nil {
			return fmt.Errorf("%w: %v", vdberrors.ErrReplay, err)
		}
		indexType, err := doc.IndexType()
		if err != nil {
			return fmt.Errorf("%w: %v", vdberrors.ErrReplay, err)
		}
		if err := db.Upsert(id, doc, indexType); err != nil {
			return fmt.Errorf("%w: %v", vdberrors.ErrReplay, err)
		}
		replayed++
	}
	db.logger.Info().Int("replayed", replayed).Msg("replayed wal entries")
	return nil
}
