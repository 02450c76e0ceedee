// Package metrics scrapes the inference server's Prometheus metrics endpoint
// around a measurement window. Gauges (GPU utilization, GPU memory) are read
// from the closing snapshot; counters (inference count, queue time) are
// reported as deltas between the opening and closing snapshots, so one
// measurement window never inherits traffic from a previous run.
package metrics
