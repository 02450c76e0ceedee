// Package record defines the metric records collected for each run
// configuration, the per-configuration Measurement aggregate, and the
// constraint manager that decides whether a measurement passes the profile's
// per-model or default constraints.
//
// Metric tags follow the perf-analyzer naming scheme (perf_latency_avg,
// perf_latency_p95, perf_throughput, ...) plus server-side tags taken from the
// metrics scrape (gpu_used_memory, gpu_utilization). Each tag carries a
// direction so best-configuration selection knows whether higher or lower
// values win.
package record
