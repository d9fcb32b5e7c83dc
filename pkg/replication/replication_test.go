package replication

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/registry"
	"github.com/vectrix-io/vectrixdb/pkg/scalarstore"
	"github.com/vectrix-io/vectrixdb/pkg/vectordb"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
	"github.com/vectrix-io/vectrixdb/pkg/wal"
)

func newTestFSM(t *testing.T) (*FSM, *vectordb.VectorDatabase) {
	t.Helper()
	dir := t.TempDir()

	store, err := scalarstore.NewBoltStore(filepath.Join(dir, "scalar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New([]registry.Spec{
		{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2},
	})

	filters := filterindex.New()
	w, err := wal.Open(filepath.Join(dir, "wal.log"), filepath.Join(dir, "snapshots_"), reg, store, filters)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	db := vectordb.New(store, reg, filters, w)
	return NewFSM(db, "node-1"), db
}

func TestFSMApplyUpsertsAndAdvancesCommitIndex(t *testing.T) {
	fsm, db := newTestFSM(t)

	payload, err := json.Marshal(map[string]interface{}{
		"id": 1, "vectors": []float32{0, 0}, "indexType": "FLAT", "category": 7,
	})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Index: 5, Data: payload})
	assert.Nil(t, result)
	assert.Equal(t, uint64(5), fsm.LastCommittedIdx())

	got, found, err := db.Query(1)
	require.NoError(t, err)
	require.True(t, found)
	id, err := got.ID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestFSMApplyOnMalformedPayloadReturnsErrorWithoutPanicking(t *testing.T) {
	fsm, _ := newTestFSM(t)

	result := fsm.Apply(&raft.Log{Index: 1, Data: []byte("not json")})
	err, ok := result.(error)
	require.True(t, ok)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), fsm.LastCommittedIdx())
}

func TestFSMSnapshotAndRestoreRoundTripsState(t *testing.T) {
	fsm, db := newTestFSM(t)

	payload, err := json.Marshal(map[string]interface{}{
		"id": 1, "vectors": []float32{0, 0}, "indexType": "FLAT",
	})
	require.NoError(t, err)
	require.Nil(t, fsm.Apply(&raft.Log{Index: 1, Data: payload}))

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &fakeSnapshotSink{}
	require.NoError(t, snap.Persist(sink))
	assert.True(t, sink.closed)
	assert.NotEmpty(t, sink.buf.Bytes())

	require.NoError(t, fsm.Restore(&fakeReadCloser{}))

	labels, _, err := db.Search(vectordb.SearchRequest{Vector: []float32{0, 0}, K: 1, IndexType: vectorindex.Flat})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}

type fakeSnapshotSink struct {
	buf    bytes.Buffer
	closed bool
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Close() error                { s.closed = true; return nil }
func (s *fakeSnapshotSink) Cancel() error               { return nil }
func (s *fakeSnapshotSink) ID() string                  { return "test-snapshot" }

type fakeReadCloser struct{}

func (fakeReadCloser) Read(p []byte) (int, error) { return 0, nil }
func (fakeReadCloser) Close() error               { return nil }
