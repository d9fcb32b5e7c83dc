// Package log provides structured logging for vectrixdb nodes, built on
// zerolog. Init configures the global logger once at startup; components
// derive child loggers via WithComponent/WithNodeID/WithIndexType so every
// line carries enough context to trace a request across the commit path
// without passing a logger through every function signature.
package log
