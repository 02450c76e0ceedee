// Package config loads and validates the YAML profile configuration that
// drives a profiling sweep: the batch-size and concurrency sweep values, the
// models to profile, pass-through flag maps for the perf-analyzer client and
// the inference server, and the gRPC SSL file paths both consume.
//
// Load applies defaults before validation; Watch re-loads the file on change
// and keeps the previous config when a reload fails. Flag maps preserve the
// literal scalar text of each value, so boolean flags ("true") and quoted
// numeric flags ('1') survive the YAML round trip exactly as written.
package config
