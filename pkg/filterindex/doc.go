// Package filterindex implements C3: a two-level fieldname→value→bitmap
// map that lets the vector index plane push integer-equality predicates
// down into ANN traversal instead of post-filtering results. Bitmaps are
// github.com/RoaringBitmap/roaring/v2, the same compressed-bitmap library
// AKJUS-bsc-erigon pulls in for its own ID-set indexing.
package filterindex
