package vectordb

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/registry"
	"github.com/vectrix-io/vectrixdb/pkg/scalarstore"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
	"github.com/vectrix-io/vectrixdb/pkg/wal"
)

func newTestDB(t *testing.T) *VectorDatabase {
	t.Helper()
	dir := t.TempDir()

	store, err := scalarstore.NewBoltStore(filepath.Join(dir, "scalar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New([]registry.Spec{
		{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2},
		{Type: vectorindex.Hnsw, Dim: 2, Metric: vectorindex.L2, HnswM: 4, HnswEfConstr: 16, HnswEfSearch: 16},
	})

	filters := filterindex.New()
	w, err := wal.Open(filepath.Join(dir, "wal.log"), filepath.Join(dir, "snapshots_"), reg, store, filters)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return New(store, reg, filters, w)
}

func mustDoc(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestUpsertThenQueryRoundTrips(t *testing.T) {
	db := newTestDB(t)

	doc := mustDoc(t, `{"id":1,"vectors":[0.1,0.2],"indexType":"FLAT","category":7}`)
	require.NoError(t, db.Upsert(1, doc, vectorindex.Flat))

	got, found, err := db.Query(1)
	require.NoError(t, err)
	require.True(t, found)
	id, err := got.ID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestUpsertIsVisibleToSearch(t *testing.T) {
	db := newTestDB(t)

	doc := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT"}`)
	require.NoError(t, db.Upsert(1, doc, vectorindex.Flat))
	doc2 := mustDoc(t, `{"id":2,"vectors":[5,5],"indexType":"FLAT"}`)
	require.NoError(t, db.Upsert(2, doc2, vectorindex.Flat))

	labels, _, err := db.Search(SearchRequest{Vector: []float32{0, 0}, K: 1, IndexType: vectorindex.Flat})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}

func TestUpsertUpdatesFilterBitmapOnValueChange(t *testing.T) {
	db := newTestDB(t)

	doc := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT","category":7}`)
	require.NoError(t, db.Upsert(1, doc, vectorindex.Flat))

	out := filterindex.NewBitmap()
	require.NoError(t, db.filters.Query("category", filterindex.Equal, 7, out))
	assert.ElementsMatch(t, []uint64{1}, out.ToArray())

	doc2 := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT","category":8}`)
	require.NoError(t, db.Upsert(1, doc2, vectorindex.Flat))

	out7 := filterindex.NewBitmap()
	require.NoError(t, db.filters.Query("category", filterindex.Equal, 7, out7))
	assert.Empty(t, out7.ToArray())

	out8 := filterindex.NewBitmap()
	require.NoError(t, db.filters.Query("category", filterindex.Equal, 8, out8))
	assert.ElementsMatch(t, []uint64{1}, out8.ToArray())
}

func TestSearchWithFilterExcludesNonMatching(t *testing.T) {
	db := newTestDB(t)

	a := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT","category":7}`)
	b := mustDoc(t, `{"id":2,"vectors":[0.1,0.1],"indexType":"FLAT","category":8}`)
	require.NoError(t, db.Upsert(1, a, vectorindex.Flat))
	require.NoError(t, db.Upsert(2, b, vectorindex.Flat))

	labels, _, err := db.Search(SearchRequest{
		Vector:    []float32{0, 0},
		K:         5,
		IndexType: vectorindex.Flat,
		Filter:    &Filter{Field: "category", Op: filterindex.Equal, Value: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, labels)
}

func TestQueryOnMissingIDReturnsNotFoundNotError(t *testing.T) {
	db := newTestDB(t)
	_, found, err := db.Query(999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReloadDatabaseReplaysWALEntryIdempotently(t *testing.T) {
	db := newTestDB(t)
	doc := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT","category":7}`)
	require.NoError(t, db.Upsert(1, doc, vectorindex.Flat))

	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, db.WriteWALLog("upsert", payload))

	require.NoError(t, db.ReloadDatabase())

	labels, _, err := db.Search(SearchRequest{Vector: []float32{0, 0}, K: 1, IndexType: vectorindex.Flat})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}

func TestTakeSnapshotThenReloadPreservesFilterBitmaps(t *testing.T) {
	dir := t.TempDir()
	scalarPath := filepath.Join(dir, "scalar.db")
	walPath := filepath.Join(dir, "wal.log")
	snapDir := filepath.Join(dir, "snapshots_")

	store, err := scalarstore.NewBoltStore(scalarPath)
	require.NoError(t, err)

	reg := registry.New([]registry.Spec{{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2}})
	filters := filterindex.New()
	w, err := wal.Open(walPath, snapDir, reg, store, filters)
	require.NoError(t, err)

	db := New(store, reg, filters, w)
	doc := mustDoc(t, `{"id":1,"vectors":[0,0],"indexType":"FLAT","category":7}`)
	require.NoError(t, db.Upsert(1, doc, vectorindex.Flat))

	// After take_snapshot, every entry up to the watermark is materialized
	// in the snapshot and no longer replayed from the WAL (spec.md P5) —
	// the filter bitmap for id 1 must therefore survive through the
	// snapshot blob itself, not through WAL replay.
	require.NoError(t, db.TakeSnapshot())

	require.NoError(t, w.Close())
	require.NoError(t, store.Close())

	store2, err := scalarstore.NewBoltStore(scalarPath)
	require.NoError(t, err)
	defer store2.Close()

	reg2 := registry.New([]registry.Spec{{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2}})
	filters2 := filterindex.New()
	w2, err := wal.Open(walPath, snapDir, reg2, store2, filters2)
	require.NoError(t, err)
	defer w2.Close()

	db2 := New(store2, reg2, filters2, w2)
	require.NoError(t, db2.ReloadDatabase())

	out := filterindex.NewBitmap()
	require.NoError(t, db2.filters.Query("category", filterindex.Equal, 7, out))
	assert.ElementsMatch(t, []uint64{1}, out.ToArray())

	labels, _, err := db2.Search(SearchRequest{
		Vector:    []float32{0, 0},
		K:         1,
		IndexType: vectorindex.Flat,
		Filter:    &Filter{Field: "category", Op: filterindex.Equal, Value: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}
