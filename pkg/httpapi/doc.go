// Package httpapi is C8: the JSON HTTP surface described in spec.md §6,
// adapted from the teacher's pkg/api health server — same
// net/http.ServeMux-per-server, manual json.Decoder/Encoder pattern,
// same /health and /ready wiring via pkg/metrics — narrowed to the
// vector operations (search/insert/upsert/query) and cluster admin
// endpoints this system exposes instead of Warren's container/service
// CRUD surface.
package httpapi
