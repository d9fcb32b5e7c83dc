package filterindex

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// Bitmap is the id-set type filters hand to the vector index plane. It is
// a type alias, not a wrapper, so vectorindex's predicate hook can call
// Contains directly without importing roaring64 itself.
type Bitmap = roaring64.Bitmap

// NewBitmap returns an empty Bitmap, useful for callers building a filter
// out-param before calling Query.
func NewBitmap() *Bitmap {
	return roaring64.New()
}
