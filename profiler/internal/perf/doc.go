// Package perf drives the external perf-analyzer binary for one run
// configuration at a time. It assembles the command line from the profile's
// pass-through flag map plus the per-run model, batch size, and concurrency
// arguments, executes the binary under a timeout, and parses the CSV latency
// report into record metrics.
//
// The SSL flags are forwarded untouched: when the profile points the client
// at a corrupted certificate pair, the analyzer's failure is surfaced as a
// measurement error and never retried over a non-SSL channel.
package perf
