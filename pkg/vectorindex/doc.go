// Package vectorindex implements C2: the in-memory ANN index plane keyed
// by 64-bit label. Flat and Hnsw are the two variants named in spec.md
// §4.2; both satisfy the Index interface and both accept a Bitmap
// predicate consulted during traversal (not as a post-filter) so a
// filtered search never wastes candidates on excluded IDs.
//
// Neither variant reaches for a third-party ANN library: the pack's own
// github.com/coder/hnsw has no per-candidate visit hook in its Search API,
// which would force a post-filter and violate the pushdown requirement.
// See DESIGN.md for the full justification.
package vectorindex
