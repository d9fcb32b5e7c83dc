package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/registry"
	"github.com/vectrix-io/vectrixdb/pkg/scalarstore"
	"github.com/vectrix-io/vectrixdb/pkg/vdberrors"
)

const snapshotSidecarName = "snapshots_MaxLogID"

// filterIndexSnapshotKey is the well-known ScalarStore raw key C3's
// bitmap snapshot is persisted under (spec.md §4.1, §4.3: "used by C3 to
// persist bitmap snapshots under well-known keys").
const filterIndexSnapshotKey = "snapshots_filterindex"

// WAL is C5: an append-only text log of "<log_id>|<version>|<op>|<json>"
// records plus a paired snapshot of C2 (via the IndexRegistry) and C3
// (via the FilterIndex, persisted through the scalar store's raw-key API).
type WAL struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	idCtr    uint64
	snapDir  string
	registry *registry.Registry
	scalar   scalarstore.Store
	filters  *filterindex.Index
	logger   zerolog.Logger

	readMu   sync.Mutex
	readFile *os.File
	reader   *bufio.Reader

	lastSnapshotID atomic.Uint64
}

// Open opens (or creates) the log at path, scans it to recover
// id_counter, and loads last_snapshot_id from snapDir's sidecar file if
// present. reg is the IndexRegistry (C2) and filters is the FilterIndex
// (C3) that take_snapshot/load_snapshot coordinate with; scalar is the
// ScalarStore (C1) used to persist the filter index's snapshot blob under
// filterIndexSnapshotKey, per spec.md §3's "Snapshot: ... of C2+C3".
func Open(path, snapDir string, reg *registry.Registry, scalar scalarstore.Store, filters *filterindex.Index) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wal directory: %w", err)
	}
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal file: %w", err)
	}

	w := &WAL{
		path:     path,
		file:     file,
		snapDir:  snapDir,
		registry: reg,
		scalar:   scalar,
		filters:  filters,
		logger:   log.WithComponent("wal"),
	}

	maxID, err := scanMaxLogID(path)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.idCtr = maxID

	if err := w.loadSidecar(); err != nil {
		file.Close()
		return nil, err
	}

	readFile, err := os.Open(path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open wal read cursor: %w", err)
	}
	w.readFile = readFile
	w.reader = bufio.NewReaderSize(readFile, 64*1024)

	return w, nil
}

func scanMaxLogID(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wal for scan: %w", err)
	}
	defer file.Close()

	var max uint64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		id, _, _, _, ok := parseLine(scanner.Text())
		if !ok {
			break
		}
		if id > max {
			max = id
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan wal: %w", err)
	}
	return max, nil
}

func parseLine(line string) (id uint64, version int, op string, payload json.RawMessage, ok bool) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return 0, 0, "", nil, false
	}
	parsedID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, "", nil, false
	}
	parsedVersion, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, "", nil, false
	}
	return parsedID, parsedVersion, parts[2], json.RawMessage(parts[3]), true
}

// NextID returns a strictly increasing log_id.
func (w *WAL) NextID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.idCtr++
	return w.idCtr
}

// Append writes a new record with a freshly allocated log_id.
func (w *WAL) Append(op string, payload json.RawMessage, version int) error {
	id := w.NextID()
	return w.AppendRaw(id, op, payload, version)
}

// AppendRaw writes a record under a caller-supplied log_id, letting the
// replication layer reuse its own commit index (spec.md §4.5).
func (w *WAL) AppendRaw(logID uint64, op string, payload json.RawMessage, version int) error {
	line := fmt.Sprintf("%d|%d|%s|%s\n", logID, version, op, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if logID > w.idCtr {
		w.idCtr = logID
	}
	if _, err := w.file.WriteString(line); err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrWALWrite, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", vdberrors.ErrWALWrite, err)
	}
	return nil
}

// ReadNext advances the replay cursor and returns the next entry. An
// empty op with a nil error signals end-of-log. Entries with
// log_id <= last_snapshot_id are silently skipped (already
// materialized by the last snapshot).
func (w *WAL) ReadNext() (op string, payload json.RawMessage, err error) {
	w.readMu.Lock()
	defer w.readMu.Unlock()

	lastSnapshot := w.lastSnapshotID.Load()
	for {
		line, readErr := w.reader.ReadString('\n')
		if line == "" && readErr != nil {
			if readErr == io.EOF {
				return "", nil, nil
			}
			return "", nil, fmt.Errorf("%w: %v", vdberrors.ErrReplay, readErr)
		}
		trimmed := strings.TrimRight(line, "\n")
		id, _, parsedOp, parsedPayload, ok := parseLine(trimmed)
		if !ok {
			return "", nil, nil
		}
		if id <= lastSnapshot {
			if readErr == io.EOF {
				return "", nil, nil
			}
			continue
		}
		return parsedOp, parsedPayload, nil
	}
}

// TakeSnapshot freezes last_snapshot_id at the current id_counter, writes
// every index in the registry (C2) to snapDir, serializes the filter
// index (C3) through the scalar store's raw-key API, and persists the new
// last_snapshot_id to the sidecar file. Per spec.md §3 the snapshot covers
// C2+C3 together; C1 is never included, it is always-current ground truth.
func (w *WAL) TakeSnapshot() error {
	w.mu.Lock()
	id := w.idCtr
	w.mu.Unlock()

	if err := w.registry.Save(w.snapDir); err != nil {
		return fmt.Errorf("take snapshot: %w", err)
	}
	filterData, err := w.filters.Serialize()
	if err != nil {
		return fmt.Errorf("take snapshot: serialize filter index: %w", err)
	}
	if err := w.scalar.PutRaw(filterIndexSnapshotKey, filterData); err != nil {
		return fmt.Errorf("take snapshot: persist filter index: %w", err)
	}
	if err := w.writeSidecar(id); err != nil {
		return fmt.Errorf("take snapshot: %w", err)
	}
	w.lastSnapshotID.Store(id)
	w.logger.Info().Uint64("log_id", id).Msg("snapshot taken")
	return nil
}

// LoadSnapshot restores the registry's indices (C2) from snapDir, restores
// the filter index (C3) from its raw-key blob in the scalar store (absent
// is a cold start, not an error), and reloads last_snapshot_id from the
// sidecar file.
func (w *WAL) LoadSnapshot() error {
	if err := w.registry.Load(w.snapDir); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	filterData, found, err := w.scalar.GetRaw(filterIndexSnapshotKey)
	if err != nil {
		return fmt.Errorf("load snapshot: read filter index: %w", err)
	}
	if found {
		if err := w.filters.LoadFrom(filterData); err != nil {
			return fmt.Errorf("load snapshot: restore filter index: %w", err)
		}
	} else {
		w.logger.Warn().Msg("no filter index snapshot found, starting cold")
	}
	return w.loadSidecar()
}

// StartLogIndex returns last_snapshot_id, used by the replication layer
// to align its commit cursor with what's already durable on disk.
func (w *WAL) StartLogIndex() uint64 {
	return w.lastSnapshotID.Load()
}

// SizeBytes reports the on-disk size of the log file, for metrics
// collection.
func (w *WAL) SizeBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (w *WAL) sidecarPath() string {
	return filepath.Join(w.snapDir, snapshotSidecarName)
}

func (w *WAL) writeSidecar(id uint64) error {
	tmp := w.sidecarPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(id, 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.sidecarPath())
}

func (w *WAL) loadSidecar() error {
	data, err := os.ReadFile(w.sidecarPath())
	if err != nil {
		if os.IsNotExist(err) {
			w.lastSnapshotID.Store(0)
			return nil
		}
		return fmt.Errorf("read snapshot sidecar: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed snapshot sidecar", vdberrors.ErrReplay)
	}
	w.lastSnapshotID.Store(id)
	return nil
}

// Close releases the WAL's file handles.
func (w *WAL) Close() error {
	w.readMu.Lock()
	readErr := w.readFile.Close()
	w.readMu.Unlock()

	w.mu.Lock()
	writeErr := w.file.Close()
	w.mu.Unlock()

	if writeErr != nil {
		return writeErr
	}
	return readErr
}
