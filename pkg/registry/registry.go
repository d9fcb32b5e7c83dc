package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
)

// Spec is the construction-time configuration for one index type: its
// kind (Flat/Hnsw), vector dimension, metric, and Hnsw build parameters
// (ignored by Flat).
type Spec struct {
	Type         vectorindex.Type
	Dim          int
	Metric       vectorindex.Metric
	HnswM        int
	HnswEfConstr int
	HnswEfSearch int
}

// Registry owns one vectorindex.Index per configured type and
// coordinates bulk save/load against a snapshot folder.
type Registry struct {
	mu      sync.RWMutex
	indices map[vectorindex.Type]vectorindex.Index
	specs   map[vectorindex.Type]Spec
}

// New builds a Registry with one fresh index per spec.
func New(specs []Spec) *Registry {
	r := &Registry{
		indices: make(map[vectorindex.Type]vectorindex.Index, len(specs)),
		specs:   make(map[vectorindex.Type]Spec, len(specs)),
	}
	for _, s := range specs {
		r.specs[s.Type] = s
		r.indices[s.Type] = newIndex(s)
	}
	return r
}

func newIndex(s Spec) vectorindex.Index {
	if s.Type == vectorindex.Hnsw {
		return vectorindex.NewHnsw(s.Dim, s.Metric, s.HnswM, s.HnswEfConstr, s.HnswEfSearch)
	}
	return vectorindex.NewFlat(s.Dim, s.Metric)
}

// Get returns the singleton index for typ, or false if typ was not
// configured.
func (r *Registry) Get(typ vectorindex.Type) (vectorindex.Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indices[typ]
	return idx, ok
}

// Types lists the configured index types.
func (r *Registry) Types() []vectorindex.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]vectorindex.Type, 0, len(r.indices))
	for t := range r.indices {
		out = append(out, t)
	}
	return out
}

// Save writes every index to <folder>/<type>.index.
func (r *Registry) Save(folder string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("create snapshot folder: %w", err)
	}
	for typ, idx := range r.indices {
		path := indexPath(folder, typ)
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("save index %s: %w", typ, err)
		}
	}
	return nil
}

// Load restores every configured index from <folder>/<type>.index. A
// missing file is logged and skipped rather than treated as an error: a
// cold start with no prior snapshot is expected (spec.md §4.4).
func (r *Registry) Load(folder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for typ, idx := range r.indices {
		path := indexPath(folder, typ)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.WithIndexType(string(typ)).Warn().Str("path", path).Msg("no snapshot found, starting empty")
			continue
		}
		if err := idx.Load(path); err != nil {
			return fmt.Errorf("load index %s: %w", typ, err)
		}
	}
	return nil
}

func indexPath(folder string, typ vectorindex.Type) string {
	return filepath.Join(folder, string(typ)+".index")
}

type sizer interface {
	Len() int
}

// Sizes reports the current vector count for every configured index
// that exposes one, for metrics collection.
func (r *Registry) Sizes() map[vectorindex.Type]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[vectorindex.Type]int, len(r.indices))
	for typ, idx := range r.indices {
		if s, ok := idx.(sizer); ok {
			out[typ] = s.Len()
		}
	}
	return out
}
