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

// FlatIndex is an exact, brute-force Index: every Search scans every
// stored vector. It trades query cost for perfect recall and supports
// true removal, unlike Hnsw (spec.md §9).
type FlatIndex struct {
	mu       sync.RWMutex
	dim      int
	metric   Metric
	distance distanceFunc
	vectors  map[uint64][]float32
}

// NewFlat constructs an empty FlatIndex for vectors of the given
// dimension and metric.
func NewFlat(dim int, metric Metric) *FlatIndex {
	return &FlatIndex{
		dim:      dim,
		metric:   metric,
		distance: distanceFuncFor(metric),
		vectors:  make(map[uint64][]float32),
	}
}

func (f *FlatIndex) Dim() int { return f.dim }

// Len reports how many vectors the index currently holds, for metrics
// collection.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Insert adds label, or replaces its vector if label already exists.
func (f *FlatIndex) Insert(label uint64, vector []float32) error {
	if err := validateVector(f.dim, vector); err != nil {
		return err
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[label] = cp
	return nil
}

// Remove deletes label from the index. It is a no-op if label is absent.
func (f *FlatIndex) Remove(label uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, label)
}

// Search scans every stored vector, skipping any label excluded by
// filter, and returns up to k nearest matches sorted nearest-first with
// ties broken by ascending label. ef is accepted for interface symmetry
// with Hnsw but has no effect on an exact scan.
func (f *FlatIndex) Search(query []float32, k int, filter *filterindex.Bitmap, ef int) ([]uint64, []float32, error) {
	if err := validateVector(f.dim, query); err != nil {
		return nil, nil, err
	}
	if k <= 0 {
		return nil, nil, nil
	}

	f.mu.RLock()
	candidates := make([]candidate, 0, len(f.vectors))
	for label, vec := range f.vectors {
		if filter != nil && !filter.Contains(label) {
			continue
		}
		candidates = append(candidates, candidate{label: label, distance: f.distance(query, vec)})
	}
	f.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return betterThan(f.metric, a.distance, b.distance)
		}
		return a.label < b.label
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	labels := make([]uint64, len(candidates))
	distances := make([]float32, len(candidates))
	for i, c := range candidates {
		labels[i] = c.label
		distances[i] = c.distance
	}
	return labels, distances, nil
}

// Save writes an 8-byte dim header followed by a sequence of
// fixed-width records: an 8-byte label followed by dim 4-byte float32
// components, all little-endian.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create flat index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(f.dim))
	if _, err := w.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 8+4*f.dim)
	for label, vec := range f.vectors {
		binary.LittleEndian.PutUint64(buf[0:8], label)
		for i, component := range vec {
			binary.LittleEndian.PutUint32(buf[8+4*i:12+4*i], math.Float32bits(component))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write flat index record: %w", err)
		}
	}
	return w.Flush()
}

// Load replaces the index's contents with records read from path.
func (f *FlatIndex) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open flat index file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	header := make([]byte, 8)
	if _, err := readFull(r, header); err != nil {
		return fmt.Errorf("read flat index header: %w", err)
	}
	dim := int(binary.LittleEndian.Uint64(header))

	vectors := make(map[uint64][]float32)
	recordLen := 8 + 4*dim
	buf := make([]byte, recordLen)
	for {
		n, err := readFull(r, buf)
		if n == 0 && err != nil {
			break
		}
		if err != nil {
			return fmt.Errorf("read flat index record: %w", err)
		}
		label := binary.LittleEndian.Uint64(buf[0:8])
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8+4*i : 12+4*i]))
		}
		vectors[label] = vec
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = dim
	f.vectors = vectors
	return nil
}

// readFull reads exactly len(buf) bytes, returning io.EOF only when zero
// bytes were read before the stream ended.
func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
