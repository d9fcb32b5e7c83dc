// Package config reads a node's startup configuration. The key=value
// grammar (one "key=value" pair per line, blank lines and "#"-prefixed
// lines ignored) is the format spec.md §6 mandates; a .yaml/.yml path
// is parsed as structured YAML instead, for operators who prefer it.
// Unrecognized keys are kept in Extra and logged as a warning by the
// caller rather than rejected, so newer config files stay loadable by
// older binaries during a rolling upgrade.
package config
