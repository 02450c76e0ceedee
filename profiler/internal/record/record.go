package record

import "github.com/modelperf/modelperf/pkg/types"

// Canonical metric tags, re-exported from the wire types so sweep code can
// stay on the record package.
const (
	TagLatencyAvg = types.TagLatencyAvg
	TagLatencyP50 = types.TagLatencyP50
	TagLatencyP95 = types.TagLatencyP95
	TagLatencyP99 = types.TagLatencyP99
	TagThroughput = types.TagThroughput

	TagGPUUsedMemory  = types.TagGPUUsedMemory
	TagGPUUtilization = types.TagGPUUtilization
	TagQueueTimeAvg   = types.TagQueueTimeAvg
	TagInferCount     = types.TagInferCount
)

// units maps each registered tag to its display unit.
var units = map[string]string{
	TagLatencyAvg: "ms",
	TagLatencyP50: "ms",
	TagLatencyP95: "ms",
	TagLatencyP99: "ms",
	TagThroughput: "infer/sec",

	TagGPUUsedMemory:  "MB",
	TagGPUUtilization: "%",
	TagQueueTimeAvg:   "ms",
	TagInferCount:     "count",
}

// Known reports whether tag is a registered metric name.
func Known(tag string) bool {
	_, ok := units[tag]
	return ok
}

// Unit returns the unit string for tag, or empty for unknown tags.
func Unit(tag string) string {
	return units[tag]
}

// HigherIsBetter reports the comparison direction for tag.
func HigherIsBetter(tag string) bool {
	return types.HigherIsBetter(tag)
}

// Better reports whether value a beats value b for the given tag.
func Better(tag string, a, b float64) bool {
	return types.Better(tag, a, b)
}
