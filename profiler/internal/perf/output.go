package perf

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelperf/modelperf/profiler/internal/record"
)

// csvColumns maps latency-report column headers to record tags. Latency
// columns are reported by the analyzer in microseconds and converted to
// milliseconds; throughput is passed through.
var csvColumns = map[string]struct {
	tag    string
	micros bool
}{
	"Inferences/Second": {tag: record.TagThroughput},
	"Avg latency":       {tag: record.TagLatencyAvg, micros: true},
	"p50 latency":       {tag: record.TagLatencyP50, micros: true},
	"p95 latency":       {tag: record.TagLatencyP95, micros: true},
	"p99 latency":       {tag: record.TagLatencyP99, micros: true},
}

// ParseCSV parses a perf-analyzer latency report (header row plus one row
// per concurrency level) into record metrics. With a single-point
// concurrency range there is exactly one data row; if several are present
// the last row wins.
func ParseCSV(data []byte) (map[string]float64, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse latency report: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("latency report has no data rows")
	}

	header := rows[0]
	row := rows[len(rows)-1]
	if len(row) != len(header) {
		return nil, fmt.Errorf("latency report row has %d fields, header has %d",
			len(row), len(header))
	}

	out := make(map[string]float64)
	for i, col := range header {
		def, ok := csvColumns[strings.TrimSpace(col)]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("latency report column %q: %w", col, err)
		}
		if def.micros {
			v /= 1000 // usec -> ms
		}
		out[def.tag] = v
	}

	if _, ok := out[record.TagThroughput]; !ok {
		return nil, fmt.Errorf("latency report missing Inferences/Second column")
	}
	return out, nil
}
