package api

import "github.com/modelperf/modelperf/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	RunCount         int `json:"run_count"`
	RunningCount     int `json:"running_count"`
	MeasurementCount int `json:"measurement_count"`
	FailedCount      int `json:"failed_count"`
}

// RunResponse is one run entry in GET /api/v1/runs.
type RunResponse struct {
	types.RunSummary
	LastSeen string `json:"last_seen"` // RFC3339
}

// RunDetailResponse is the payload for GET /api/v1/runs/{id}.
type RunDetailResponse struct {
	RunResponse
	Measurements []types.RunMeasurement `json:"measurements"`
}

// BestResponse is the payload for GET /api/v1/runs/{id}/best.
type BestResponse struct {
	RunID       string               `json:"run_id"`
	Objective   string               `json:"objective"`
	Measurement types.RunMeasurement `json:"measurement"`
}

// RunsResponse is the envelope broadcast to WebSocket clients and returned by
// GET /api/v1/runs.
type RunsResponse struct {
	Runs        []RunResponse `json:"runs"`
	GeneratedAt string        `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
