// Package registry implements C4: the IndexRegistry that owns one
// vectorindex.Index per configured index type and persists/reloads them
// as a set. It mirrors pkg/manager's store-lifecycle pattern (construct,
// load-if-present, save-on-demand) from the teacher repo, scoped down to
// the single concern of "a named set of on-disk index files".
package registry
