package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
)

func TestGetReturnsConfiguredType(t *testing.T) {
	r := New([]Spec{{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2}})
	idx, ok := r.Get(vectorindex.Flat)
	require.True(t, ok)
	assert.Equal(t, 2, idx.Dim())

	_, ok = r.Get(vectorindex.Hnsw)
	assert.False(t, ok)
}

func TestSaveLoadRoundTripsAllTypes(t *testing.T) {
	r := New([]Spec{
		{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2},
		{Type: vectorindex.Hnsw, Dim: 2, Metric: vectorindex.L2, HnswM: 4, HnswEfConstr: 16, HnswEfSearch: 16},
	})

	flat, _ := r.Get(vectorindex.Flat)
	require.NoError(t, flat.Insert(1, []float32{0, 0}))
	hnsw, _ := r.Get(vectorindex.Hnsw)
	require.NoError(t, hnsw.Insert(1, []float32{1, 1}))

	folder := filepath.Join(t.TempDir(), "snapshots")
	require.NoError(t, r.Save(folder))

	restored := New([]Spec{
		{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2},
		{Type: vectorindex.Hnsw, Dim: 2, Metric: vectorindex.L2, HnswM: 4, HnswEfConstr: 16, HnswEfSearch: 16},
	})
	require.NoError(t, restored.Load(folder))

	idx, _ := restored.Get(vectorindex.Flat)
	labels, _, err := idx.Search([]float32{0, 0}, 1, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}

func TestLoadSkipsMissingSnapshotFile(t *testing.T) {
	r := New([]Spec{{Type: vectorindex.Flat, Dim: 2, Metric: vectorindex.L2}})
	err := r.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
}
