package types

// Canonical metric tags carried in RunMeasurement.Metrics. Both ends of the
// wire rank measurements by these names, so the ranking direction lives here
// with them.
const (
	TagLatencyAvg = "perf_latency_avg"
	TagLatencyP50 = "perf_latency_p50"
	TagLatencyP95 = "perf_latency_p95"
	TagLatencyP99 = "perf_latency_p99"
	TagThroughput = "perf_throughput"

	TagGPUUsedMemory  = "gpu_used_memory"
	TagGPUUtilization = "gpu_utilization"
	TagQueueTimeAvg   = "server_queue_time_avg"
	TagInferCount     = "server_infer_count"
)

// higherIsBetter marks the tags where larger values win. Tags absent from the
// map rank lower-is-better, the safe direction for latency-like values.
var higherIsBetter = map[string]bool{
	TagThroughput:     true,
	TagGPUUtilization: true,
	TagInferCount:     true,
}

// HigherIsBetter reports the comparison direction for tag.
func HigherIsBetter(tag string) bool {
	return higherIsBetter[tag]
}

// Better reports whether value a beats value b for the given tag.
func Better(tag string, a, b float64) bool {
	if HigherIsBetter(tag) {
		return a > b
	}
	return a < b
}
