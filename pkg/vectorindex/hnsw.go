package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
)

// defaults applied when a caller doesn't configure HnswM/EfConstruction
// (spec.md §6 lets these be absent from the config file).
const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch       = 64
)

// HnswIndex is an approximate index backed by a single-layer navigable
// proximity graph: each node keeps up to M edges to its nearest
// neighbors, picked greedily at insert time, and Search does a
// best-first beam walk of width ef. There is no Remove: re-inserting a
// label overwrites its vector and recomputes its own edges, while edges
// other nodes hold to it are kept (see Insert).
type HnswIndex struct {
	mu             sync.RWMutex
	dim            int
	metric         Metric
	distance       distanceFunc
	m              int
	efConstruction int
	efSearch       int

	vectors map[uint64][]float32
	edges   map[uint64][]uint64
	entry   uint64
	hasAny  bool
}

// NewHnsw constructs an empty HnswIndex. m/efConstruction/efSearch <= 0
// fall back to defaultM/defaultEfConstruction/defaultEfSearch.
func NewHnsw(dim int, metric Metric, m, efConstruction, efSearch int) *HnswIndex {
	if m <= 0 {
		m = defaultM
	}
	if efConstruction <= 0 {
		efConstruction = defaultEfConstruction
	}
	if efSearch <= 0 {
		efSearch = defaultEfSearch
	}
	return &HnswIndex{
		dim:            dim,
		metric:         metric,
		distance:       distanceFuncFor(metric),
		m:              m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		vectors:        make(map[uint64][]float32),
		edges:          make(map[uint64][]uint64),
	}
}

func (h *HnswIndex) Dim() int { return h.dim }

// Len reports how many vectors the index currently holds, for metrics
// collection.
func (h *HnswIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// Insert adds label with a fresh edge set, or replaces its vector in
// place if label already exists (existing edges are recomputed from the
// new vector; edges pointing at label from other nodes are left as-is
// and simply re-scored against the new vector on the next traversal).
func (h *HnswIndex) Insert(label uint64, vector []float32) error {
	if err := validateVector(h.dim, vector); err != nil {
		return err
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.vectors[label] = cp
	if !h.hasAny {
		h.entry = label
		h.hasAny = true
		h.edges[label] = nil
		return nil
	}

	neighbors := h.nearestForConstruction(label, cp, h.efConstruction)
	h.edges[label] = neighbors
	for _, n := range neighbors {
		h.connect(n, label)
	}
	return nil
}

// connect adds a back-edge from -> to, trimming to the m closest edges
// by distance from "from"'s own vector once it exceeds m.
func (h *HnswIndex) connect(from, to uint64) {
	existing := h.edges[from]
	for _, e := range existing {
		if e == to {
			return
		}
	}
	existing = append(existing, to)
	if len(existing) > h.m {
		fromVec, ok := h.vectors[from]
		if ok {
			sort.Slice(existing, func(i, j int) bool {
				vi, oki := h.vectors[existing[i]]
				vj, okj := h.vectors[existing[j]]
				if !oki || !okj {
					return oki
				}
				return betterThan(h.metric, h.distance(fromVec, vi), h.distance(fromVec, vj))
			})
			existing = existing[:h.m]
		} else {
			existing = existing[:h.m]
		}
	}
	h.edges[from] = existing
}

// nearestForConstruction runs a greedy beam search from the entry point
// to find candidate neighbors for a newly inserted vector, excluding
// label itself. Used only while holding the write lock during Insert.
func (h *HnswIndex) nearestForConstruction(label uint64, vector []float32, ef int) []uint64 {
	visited := map[uint64]bool{label: true}
	beam := []candidate{{label: h.entry, distance: h.distance(vector, h.vectors[h.entry])}}
	visited[h.entry] = true

	frontier := []uint64{h.entry}
	for len(frontier) > 0 {
		next := make([]uint64, 0)
		for _, cur := range frontier {
			for _, nb := range h.edges[cur] {
				if visited[nb] || nb == label {
					continue
				}
				visited[nb] = true
				vec, ok := h.vectors[nb]
				if !ok {
					continue
				}
				beam = append(beam, candidate{label: nb, distance: h.distance(vector, vec)})
				next = append(next, nb)
			}
		}
		sort.Slice(beam, func(i, j int) bool {
			return betterThan(h.metric, beam[i].distance, beam[j].distance)
		})
		if len(beam) > ef {
			beam = beam[:ef]
		}
		frontier = next
		if len(frontier) > ef {
			frontier = frontier[:ef]
		}
	}

	m := h.m
	if len(beam) < m {
		m = len(beam)
	}
	out := make([]uint64, m)
	for i := 0; i < m; i++ {
		out[i] = beam[i].label
	}
	return out
}

// Search walks the graph from the entry point outward in best-first
// order, consulting filter via Contains for every candidate it visits
// (not as a post-filter) so excluded labels never occupy a result slot.
// ef overrides the index's configured efSearch when positive.
func (h *HnswIndex) Search(query []float32, k int, filter *filterindex.Bitmap, ef int) ([]uint64, []float32, error) {
	if err := validateVector(h.dim, query); err != nil {
		return nil, nil, err
	}
	if k <= 0 {
		return nil, nil, nil
	}
	if ef <= 0 {
		ef = h.efSearch
	}
	if ef < k {
		ef = k
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasAny {
		return nil, nil, nil
	}

	visited := make(map[uint64]bool)
	var matched []candidate

	entryVec, ok := h.vectors[h.entry]
	if !ok {
		return nil, nil, nil
	}
	visited[h.entry] = true
	frontier := []candidate{{label: h.entry, distance: h.distance(query, entryVec)}}
	if filter == nil || filter.Contains(h.entry) {
		matched = append(matched, frontier[0])
	}

	for step := 0; step < ef && len(frontier) > 0; step++ {
		sort.Slice(frontier, func(i, j int) bool {
			return betterThan(h.metric, frontier[i].distance, frontier[j].distance)
		})
		cur := frontier[0]
		frontier = frontier[1:]

		for _, nb := range h.edges[cur.label] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			vec, ok := h.vectors[nb]
			if !ok {
				continue
			}
			c := candidate{label: nb, distance: h.distance(query, vec)}
			frontier = append(frontier, c)
			if filter == nil || filter.Contains(nb) {
				matched = append(matched, c)
			}
		}
		if len(frontier) > ef {
			frontier = frontier[:ef]
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.distance != b.distance {
			return betterThan(h.metric, a.distance, b.distance)
		}
		return a.label < b.label
	})
	if len(matched) > k {
		matched = matched[:k]
	}

	labels := make([]uint64, len(matched))
	distances := make([]float32, len(matched))
	for i, c := range matched {
		labels[i] = c.label
		distances[i] = c.distance
	}
	return labels, distances, nil
}

// Save writes the graph as: header (dim, m, efConstruction, efSearch,
// entry, count), then per node an 8-byte label, dim float32 components,
// and its edge list (count + labels).
func (h *HnswIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create hnsw index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := writeUint64(w, uint64(h.dim)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(h.m)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(h.efConstruction)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(h.efSearch)); err != nil {
		return err
	}
	if err := writeUint64(w, h.entry); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(h.vectors))); err != nil {
		return err
	}

	for label, vec := range h.vectors {
		if err := writeUint64(w, label); err != nil {
			return err
		}
		for _, c := range vec {
			if err := writeUint32(w, math.Float32bits(c)); err != nil {
				return err
			}
		}
		edges := h.edges[label]
		if err := writeUint64(w, uint64(len(edges))); err != nil {
			return err
		}
		for _, e := range edges {
			if err := writeUint64(w, e); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Load replaces the index's contents with a graph read from path.
func (h *HnswIndex) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open hnsw index file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	dim, err := readUint64(r)
	if err != nil {
		return fmt.Errorf("read hnsw header: %w", err)
	}
	m, err := readUint64(r)
	if err != nil {
		return err
	}
	efConstruction, err := readUint64(r)
	if err != nil {
		return err
	}
	efSearch, err := readUint64(r)
	if err != nil {
		return err
	}
	entry, err := readUint64(r)
	if err != nil {
		return err
	}
	count, err := readUint64(r)
	if err != nil {
		return err
	}

	vectors := make(map[uint64][]float32, count)
	edgeMap := make(map[uint64][]uint64, count)
	for i := uint64(0); i < count; i++ {
		label, err := readUint64(r)
		if err != nil {
			return fmt.Errorf("read hnsw node: %w", err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			bits, err := readUint32(r)
			if err != nil {
				return fmt.Errorf("read hnsw vector: %w", err)
			}
			vec[j] = math.Float32frombits(bits)
		}
		edgeCount, err := readUint64(r)
		if err != nil {
			return err
		}
		edges := make([]uint64, edgeCount)
		for j := range edges {
			e, err := readUint64(r)
			if err != nil {
				return err
			}
			edges[j] = e
		}
		vectors[label] = vec
		edgeMap[label] = edges
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.dim = int(dim)
	h.m = int(m)
	h.efConstruction = int(efConstruction)
	h.efSearch = int(efSearch)
	h.entry = entry
	h.hasAny = count > 0
	h.vectors = vectors
	h.edges = edgeMap
	return nil
}

func writeUint64(w *bufio.Writer, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	_, err := w.Write(buf)
	return err
}

func writeUint32(w *bufio.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

func readUint64(r *bufio.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := readFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func readUint32(r *bufio.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := readFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}
