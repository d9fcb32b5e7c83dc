package vectorindex

import (
	"fmt"

	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
)

// Metric selects the distance function a Flat or Hnsw index was built
// with. It cannot be changed after construction.
type Metric string

const (
	L2 Metric = "L2"
	IP Metric = "IP"
)

// Type identifies which index variant a document's indexType field
// selects, per spec.md §3.
type Type string

const (
	Flat Type = "FLAT"
	Hnsw Type = "HNSW"
)

// Index is the narrow contract both variants satisfy. It intentionally
// holds only the four operations spec.md §4.2 names — no shared base
// type, no class hierarchy (spec.md §9).
type Index interface {
	// Insert adds or replaces the vector at label. Re-insertion of an
	// existing label replaces its stored vector in both variants; Hnsw
	// additionally keeps the graph edges other nodes hold to that label.
	Insert(label uint64, vector []float32) error

	// Search returns up to k (label, distance) pairs nearest to query,
	// sorted nearest-first, ties broken by ascending label. If filter is
	// non-nil, only labels present in it are considered — the check is
	// made during traversal, not as a post-filter. If ef > 0 it overrides
	// the variant's default search-time breadth.
	Search(query []float32, k int, filter *filterindex.Bitmap, ef int) (labels []uint64, distances []float32, err error)

	// Save writes the index to path.
	Save(path string) error

	// Load replaces the index's contents with what's stored at path.
	Load(path string) error

	// Dim returns the configured vector dimension.
	Dim() int
}

func validateVector(dim int, vector []float32) error {
	if len(vector) != dim {
		return fmt.Errorf("vector has %d dims, index configured for %d", len(vector), dim)
	}
	return nil
}

// candidate is a scored result shared by Flat and Hnsw while ranking;
// ties are broken by ascending label (spec.md §4.2 Numeric semantics).
type candidate struct {
	label    uint64
	distance float32
}
