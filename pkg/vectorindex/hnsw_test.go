package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
)

func buildHnsw(t *testing.T) *HnswIndex {
	t.Helper()
	idx := NewHnsw(2, L2, 4, 32, 16)
	points := map[uint64][2]float32{
		1: {0, 0},
		2: {1, 0},
		3: {0, 1},
		4: {10, 10},
		5: {10, 11},
		6: {11, 10},
	}
	for label, p := range points {
		require.NoError(t, idx.Insert(label, []float32{p[0], p[1]}))
	}
	return idx
}

func TestHnswInsertRejectsWrongDimension(t *testing.T) {
	idx := NewHnsw(3, L2, 0, 0, 0)
	assert.Error(t, idx.Insert(1, []float32{1, 2}))
}

func TestHnswSearchFindsNearestCluster(t *testing.T) {
	idx := buildHnsw(t)
	labels, _, err := idx.Search([]float32{0.1, 0.1}, 3, nil, 0)
	require.NoError(t, err)
	require.Len(t, labels, 3)
	for _, l := range labels {
		assert.Contains(t, []uint64{1, 2, 3}, l)
	}
}

func TestHnswSearchHonorsFilterDuringTraversal(t *testing.T) {
	idx := buildHnsw(t)
	filter := filterindex.NewBitmap()
	filter.Add(4)
	filter.Add(5)
	filter.Add(6)

	labels, _, err := idx.Search([]float32{0, 0}, 3, filter, 32)
	require.NoError(t, err)
	require.Len(t, labels, 3)
	for _, l := range labels {
		assert.Contains(t, []uint64{4, 5, 6}, l)
	}
}

func TestHnswEmptyIndexSearchReturnsNoResults(t *testing.T) {
	idx := NewHnsw(2, L2, 0, 0, 0)
	labels, distances, err := idx.Search([]float32{0, 0}, 5, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Empty(t, distances)
}

func TestHnswSaveLoadRoundTrips(t *testing.T) {
	idx := buildHnsw(t)
	path := filepath.Join(t.TempDir(), "hnsw.index")
	require.NoError(t, idx.Save(path))

	restored := NewHnsw(2, L2, 4, 32, 16)
	require.NoError(t, restored.Load(path))

	labels, _, err := restored.Search([]float32{0.1, 0.1}, 3, nil, 0)
	require.NoError(t, err)
	require.Len(t, labels, 3)
}
