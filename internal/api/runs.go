package api

import "net/http"

// handleLatestRun handles GET /api/v1/runs/latest.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Latest(r.Context())
	if err != nil {
		writeStoreError(w, err, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleGetRun handles GET /api/v1/runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
