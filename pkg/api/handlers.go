package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runResponse is the JSON shape of one run record.
type runResponse struct {
	RunID     string    `json:"run_id"`
	StartedAt int64     `json:"started_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// simulationResponse is the JSON shape of one archived simulation.
type simulationResponse struct {
	SimulationID  string          `json:"simulation_id"`
	Dir           string          `json:"dir"`
	Position      int             `json:"position"`
	RequestsTotal int64           `json:"requests_total"`
	RequestsOK    int64           `json:"requests_ok"`
	RequestsKO    int64           `json:"requests_ko"`
	Stats         json.RawMessage `json:"stats,omitempty"`
	ArchivedAt    time.Time       `json:"archived_at"`
}

// handleListRuns returns all recorded runs, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing runs"})

		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runResponse{
			RunID:     run.RunID,
			StartedAt: run.StartedAt,
			CreatedAt: run.CreatedAt,
			UpdatedAt: run.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetRun returns one run record.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"run not found"})

		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		RunID:     run.RunID,
		StartedAt: run.StartedAt,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	})
}

// handleListSimulations returns a run's archived simulations in append
// order.
func (s *server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	sims, err := s.store.ListSimulations(r.Context(), runID)
	if err != nil {
		s.log.WithError(err).WithField("run", runID).
			Error("Failed to list simulations")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing simulations"})

		return
	}

	resp := make([]simulationResponse, 0, len(sims))
	for _, sim := range sims {
		resp = append(resp, simulationResponse{
			SimulationID:  sim.SimulationID,
			Dir:           sim.Dir,
			Position:      sim.Position,
			RequestsTotal: sim.RequestsTotal,
			RequestsOK:    sim.RequestsOK,
			RequestsKO:    sim.RequestsKO,
			Stats:         json.RawMessage(sim.StatsJSON),
			ArchivedAt:    sim.ArchivedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleFileRequest serves one archived report file from the run's
// storage directory.
func (s *server) handleFileRequest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rel := chi.URLParam(r, "*")

	if rel == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"file path is required"})

		return
	}

	// Reject traversal outside the run's directory. Rooting the
	// requested path before cleaning strips any leading "..", and the
	// run ID itself must not climb either.
	if strings.Contains(runID, "..") {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid path"})

		return
	}

	clean := filepath.Clean("/" + rel)

	path := filepath.Join(s.storageDir, runID, clean)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorResponse{"file not found"})

		return
	}

	f, err := os.Open(path) //nolint:gosec // rooted under storageDir
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"opening file"})

		return
	}

	defer func() { _ = f.Close() }()

	// ServeContent rather than ServeFile: the latter redirects paths
	// ending in /index.html, which archived reports are full of.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
