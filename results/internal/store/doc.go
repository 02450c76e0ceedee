// Package store holds the in-memory run state: one entry per profiling run,
// carrying its summary and measurement history, with TTL-based eviction.
package store
