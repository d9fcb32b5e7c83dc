package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/metrics"
	"github.com/vectrix-io/vectrixdb/pkg/replication"
	"github.com/vectrix-io/vectrixdb/pkg/vdberrors"
	"github.com/vectrix-io/vectrixdb/pkg/vectordb"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
)

// Server is C8: the JSON HTTP surface in front of a VectorDatabase and
// its ReplicationCore.
type Server struct {
	db     *vectordb.VectorDatabase
	core   *replication.Core
	mux    *http.ServeMux
	logger zerolog.Logger
}

// NewServer builds a Server with every route registered.
func NewServer(db *vectordb.VectorDatabase, core *replication.Core) *Server {
	s := &Server{db: db, core: core, mux: http.NewServeMux(), logger: log.WithComponent("httpapi")}

	s.mux.HandleFunc("/search", s.withMetrics("/search", s.handleSearch))
	s.mux.HandleFunc("/insert", s.withMetrics("/insert", s.handleInsert))
	s.mux.HandleFunc("/upsert", s.withMetrics("/upsert", s.handleUpsert))
	s.mux.HandleFunc("/query", s.withMetrics("/query", s.handleQuery))
	s.mux.HandleFunc("/admin/snapshot", s.withMetrics("/admin/snapshot", s.handleSnapshot))
	s.mux.HandleFunc("/admin/setLeader", s.withMetrics("/admin/setLeader", s.handleSetLeader))
	s.mux.HandleFunc("/admin/addFollower", s.withMetrics("/admin/addFollower", s.handleAddFollower))
	s.mux.HandleFunc("/admin/listNode", s.withMetrics("/admin/listNode", s.handleListNode))
	s.mux.HandleFunc("/admin/getNode", s.withMetrics("/admin/getNode", s.handleGetNode))
	s.mux.HandleFunc("/health", metrics.HealthHandler())
	s.mux.HandleFunc("/ready", metrics.ReadyHandler())
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler exposes the server's mux for embedding or testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until it errors out or the process exits.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("listening")
	return server.ListenAndServe()
}

func (s *Server) withMetrics(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rw, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, path)
		metrics.APIRequestsTotal.WithLabelValues(path, http.StatusText(rw.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// envelope is the {retCode, msg} pair spec.md §6 requires on every
// response.
type envelope struct {
	RetCode int    `json:"retCode"`
	Msg     string `json:"msg,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, extra map[string]interface{}) {
	body := map[string]interface{}{"retCode": 0}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError classifies err per spec.md §7's taxonomy: request errors
// are 400, leader/quorum errors are 503 and retryable, everything else
// is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vdberrors.ErrMalformedRequest),
		errors.Is(err, vdberrors.ErrMissingField),
		errors.Is(err, vdberrors.ErrUnknownIndexType),
		errors.Is(err, vdberrors.ErrDimensionMismatch):
		writeJSON(w, http.StatusBadRequest, envelope{RetCode: 1, Msg: err.Error()})
	case errors.Is(err, vdberrors.ErrNotLeader),
		errors.Is(err, vdberrors.ErrNoQuorum),
		errors.Is(err, vdberrors.ErrNoMasterForPartition):
		writeJSON(w, http.StatusServiceUnavailable, envelope{RetCode: 2, Msg: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, envelope{RetCode: 3, Msg: err.Error()})
	}
}

func decodeBody(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return errors.Join(vdberrors.ErrMalformedRequest, err)
	}
	return nil
}

type searchFilter struct {
	FieldName string `json:"fieldName"`
	Op        string `json:"op"`
	Value     int64  `json:"value"`
}

type searchBody struct {
	Vectors   []float32     `json:"vectors"`
	K         int           `json:"k"`
	IndexType string        `json:"indexType"`
	Filter    *searchFilter `json:"filter"`
	Ef        int           `json:"ef"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Vectors) == 0 {
		writeError(w, errMissing("vectors"))
		return
	}
	if body.K <= 0 {
		writeError(w, errMissing("k"))
		return
	}
	indexType, err := parseIndexType(body.IndexType)
	if err != nil {
		writeError(w, err)
		return
	}

	req := vectordb.SearchRequest{
		Vector:    body.Vectors,
		K:         body.K,
		IndexType: indexType,
		Ef:        body.Ef,
	}
	if body.Filter != nil {
		op, err := parseFilterOp(body.Filter.Op)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Filter = &vectordb.Filter{Field: body.Filter.FieldName, Op: op, Value: body.Filter.Value}
	}

	filtered := "false"
	if body.Filter != nil {
		filtered = "true"
	}
	timer := metrics.NewTimer()
	labels, distances, err := s.db.Search(req)
	timer.ObserveDurationVec(metrics.SearchDuration, string(indexType), filtered)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"vectors": labels, "distances": distances})
}

type writeBody struct {
	ID        json.Number            `json:"id"`
	Vectors   []float32              `json:"vectors"`
	IndexType string                 `json:"indexType"`
	Scalars   map[string]interface{} `json:"-"`
}

// handleInsert and handleUpsert share an implementation: both append a
// document to the replicated log and wait for it to commit. Per
// spec.md §4.6 Upsert already behaves correctly whether or not a prior
// document exists, so there is no separate insert code path in C6.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	raw := map[string]interface{}{}
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, err)
		return
	}
	body, err := json.Marshal(raw)
	if err != nil {
		writeError(w, errors.Join(vdberrors.ErrMalformedRequest, err))
		return
	}
	doc, err := vectordb.ParseDocument(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := doc.ID(); err != nil {
		writeError(w, err)
		return
	}
	if _, err := doc.IndexType(); err != nil {
		writeError(w, err)
		return
	}
	if _, err := doc.Vector(); err != nil {
		writeError(w, err)
		return
	}

	timer := metrics.NewTimer()
	indexType, _ := doc.IndexType()
	defer timer.ObserveDurationVec(metrics.UpsertDuration, string(indexType))

	if _, err := s.core.Append(body); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

type queryBody struct {
	ID json.Number `json:"id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, err := body.ID.Int64()
	if err != nil || id < 0 {
		writeError(w, errMissing("id"))
		return
	}

	doc, found, err := s.db.Query(uint64(id))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]interface{}{"retCode": 0, "found": false})
		return
	}
	result := map[string]interface{}{"retCode": 0}
	for k, v := range doc {
		result[k] = v
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnapshotDuration)
	if err := s.db.TakeSnapshot(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleSetLeader(w http.ResponseWriter, r *http.Request) {
	if err := s.core.TransferLeadership(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

type addFollowerBody struct {
	NodeID   string `json:"nodeId"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleAddFollower(w http.ResponseWriter, r *http.Request) {
	var body addFollowerBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.NodeID == "" || body.Endpoint == "" {
		writeError(w, errMissing("nodeId/endpoint"))
		return
	}
	if err := s.core.AddServer(body.NodeID, body.Endpoint); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListNode(w http.ResponseWriter, r *http.Request) {
	peers, err := s.core.ListPeers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"nodes": peers})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]interface{}{"node": s.core.SelfInfo()})
}

func errMissing(field string) error {
	return errors.Join(vdberrors.ErrMissingField, errors.New(field))
}

func parseIndexType(s string) (vectorindex.Type, error) {
	switch vectorindex.Type(s) {
	case vectorindex.Flat, vectorindex.Hnsw:
		return vectorindex.Type(s), nil
	default:
		return "", errors.Join(vdberrors.ErrUnknownIndexType, errors.New(s))
	}
}

func parseFilterOp(s string) (filterindex.Op, error) {
	switch s {
	case "=":
		return filterindex.Equal, nil
	case "!=":
		return filterindex.NotEqual, nil
	default:
		return "", errors.Join(vdberrors.ErrMalformedRequest, errors.New("unsupported filter op "+s))
	}
}
