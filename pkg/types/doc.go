// Package types defines the shared wire types exchanged between the profiler
// and the results server. These are the canonical JSON representations of run
// measurements, separate from the in-memory record types used during a sweep.
package types
