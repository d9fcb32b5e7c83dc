package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
)

func TestFlatInsertRejectsWrongDimension(t *testing.T) {
	idx := NewFlat(3, L2)
	err := idx.Insert(1, []float32{1, 2})
	assert.Error(t, err)
}

func TestFlatSearchFindsExactNearestL2(t *testing.T) {
	idx := NewFlat(2, L2)
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	require.NoError(t, idx.Insert(2, []float32{1, 1}))
	require.NoError(t, idx.Insert(3, []float32{10, 10}))

	labels, distances, err := idx.Search([]float32{0, 0}, 2, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, labels)
	assert.Equal(t, float32(0), distances[0])
}

func TestFlatSearchRanksByInnerProductDescending(t *testing.T) {
	idx := NewFlat(2, IP)
	require.NoError(t, idx.Insert(1, []float32{1, 0}))
	require.NoError(t, idx.Insert(2, []float32{2, 0}))
	require.NoError(t, idx.Insert(3, []float32{-1, 0}))

	labels, _, err := idx.Search([]float32{1, 0}, 3, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1, 3}, labels)
}

func TestFlatSearchHonorsFilterDuringTraversal(t *testing.T) {
	idx := NewFlat(2, L2)
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	require.NoError(t, idx.Insert(2, []float32{1, 1}))

	filter := filterindex.NewBitmap()
	filter.Add(2)
	labels, _, err := idx.Search([]float32{0, 0}, 5, filter, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, labels)
}

func TestFlatInsertReplacesExistingLabel(t *testing.T) {
	idx := NewFlat(2, L2)
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	require.NoError(t, idx.Insert(1, []float32{5, 5}))

	labels, distances, err := idx.Search([]float32{5, 5}, 1, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, labels)
	assert.Equal(t, float32(0), distances[0])
}

func TestFlatRemoveDropsLabelFromResults(t *testing.T) {
	idx := NewFlat(2, L2)
	require.NoError(t, idx.Insert(1, []float32{0, 0}))
	idx.Remove(1)

	labels, _, err := idx.Search([]float32{0, 0}, 5, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestFlatSaveLoadRoundTrips(t *testing.T) {
	idx := NewFlat(2, L2)
	require.NoError(t, idx.Insert(1, []float32{0.5, 1.5}))
	require.NoError(t, idx.Insert(2, []float32{2.5, 3.5}))

	path := filepath.Join(t.TempDir(), "flat.index")
	require.NoError(t, idx.Save(path))

	restored := NewFlat(2, L2)
	require.NoError(t, restored.Load(path))

	labels, _, err := restored.Search([]float32{0.5, 1.5}, 1, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, labels)
}
