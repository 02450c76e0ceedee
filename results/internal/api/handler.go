package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/modelperf/modelperf/pkg/types"
	"github.com/modelperf/modelperf/results/internal/store"
)

// DefaultObjective ranks measurements when the request names none.
const DefaultObjective = types.TagThroughput

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads run state from the store and returns JSON responses.
type Handler struct {
	store *store.Store
	mux   *http.ServeMux
}

// New creates a Handler wired to the given run store and registers all routes.
func New(st *store.Store) http.Handler {
	h := &Handler{store: st, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/runs", h.listRuns)
	h.mux.HandleFunc("/api/v1/runs/", h.runSubtree) // extracts {id} and {id}/best
	h.mux.HandleFunc("/api/v1/measurements", h.ingest)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — run counts across the store.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{RunCount: len(entries)}
	for _, e := range entries {
		if e.Summary.State == types.RunStateRunning {
			resp.RunningCount++
		}
		resp.MeasurementCount += e.Summary.Total
		resp.FailedCount += e.Summary.Failed
	}
	jsonResp(w, http.StatusOK, resp)
}

// listRuns returns GET /api/v1/runs — all live run summaries.
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildRuns(h.store))
}

// runSubtree dispatches GET /api/v1/runs/{id} and GET /api/v1/runs/{id}/best.
func (h *Handler) runSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if rest == "" {
		h.listRuns(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	e, ok := h.store.Get(id)
	if !ok || time.Since(e.UpdatedAt) > h.store.TTL() {
		// Stale entries are treated as not found.
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}

	switch sub {
	case "":
		jsonResp(w, http.StatusOK, RunDetailResponse{
			RunResponse:  toRunResponse(e),
			Measurements: e.Measurements,
		})
	case "best":
		h.best(w, r, e)
	default:
		jsonErr(w, http.StatusNotFound, "unknown run resource")
	}
}

// best returns the best passing measurement for the objective metric.
func (h *Handler) best(w http.ResponseWriter, r *http.Request, e *store.Entry) {
	objective := r.URL.Query().Get("objective")
	if objective == "" {
		objective = DefaultObjective
	}

	best := bestMeasurement(e.Measurements, objective)
	if best == nil {
		jsonErr(w, http.StatusNotFound, "no passing measurement carries the objective metric")
		return
	}
	jsonResp(w, http.StatusOK, BestResponse{
		RunID:       e.Summary.RunID,
		Objective:   objective,
		Measurement: *best,
	})
}

// ingest handles POST /api/v1/measurements — the profiler's delivery path.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var m types.RunMeasurement
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&m); err != nil {
		jsonErr(w, http.StatusBadRequest, "malformed measurement: "+err.Error())
		return
	}
	if m.RunID == "" || m.Model == "" {
		jsonErr(w, http.StatusBadRequest, "measurement missing run_id or model")
		return
	}
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = time.Now().UTC()
	}

	h.store.Ingest(&m)
	jsonResp(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// --- helpers ----------------------------------------------------------------

// BuildRuns assembles the live run list. Shared with the WebSocket hub's
// broadcast loop.
func BuildRuns(st *store.Store) RunsResponse {
	entries := st.List()
	runs := make([]RunResponse, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, toRunResponse(e))
	}
	return RunsResponse{
		Runs:        runs,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// bestMeasurement returns the passing measurement with the best value for the
// objective tag, or nil when none qualifies.
func bestMeasurement(measurements []types.RunMeasurement, objective string) *types.RunMeasurement {
	var best *types.RunMeasurement
	var bestVal float64
	for i := range measurements {
		m := &measurements[i]
		if m.Error != "" || !m.Passed {
			continue
		}
		v, ok := m.Metric(objective)
		if !ok {
			continue
		}
		if best == nil || types.Better(objective, v, bestVal) {
			best = m
			bestVal = v
		}
	}
	return best
}

func toRunResponse(e *store.Entry) RunResponse {
	return RunResponse{
		RunSummary: e.Summary,
		LastSeen:   e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
