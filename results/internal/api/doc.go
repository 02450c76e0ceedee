// Package api implements the results server's REST surface.
//
// Routes (all under /api/v1):
//
//	GET  /health            service health and run counts
//	GET  /runs              live run summaries
//	GET  /runs/{id}         one run with its measurement history
//	GET  /runs/{id}/best    the best passing measurement for an objective
//	POST /measurements      measurement ingest (profiler shipper)
package api
