package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/store"
)

// analysesResponse represents the response for the analyses endpoint.
type analysesResponse struct {
	RunID      string            `json:"run_id"`
	Items      []dedupe.Analysis `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

// handleAnalyses handles GET /api/v1/analyses
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalysisFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	page, err := s.analyses.Query(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "no runs recorded")
		return
	}

	resp := analysesResponse{
		RunID:      page.RunID,
		Items:      page.Items,
		NextCursor: page.NextCursor,
	}

	// Ensure Items is an empty array, not null, for JSON serialization
	if resp.Items == nil {
		resp.Items = []dedupe.Analysis{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetAnalysis handles GET /api/v1/analyses/{insert_id}
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyses.Get(r.Context(), r.URL.Query().Get("run"), r.PathValue("insert_id"))
	if err != nil {
		writeStoreError(w, err, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// parseAnalysisFilter parses query parameters into an AnalysisFilter.
func parseAnalysisFilter(r *http.Request) (store.AnalysisFilter, error) {
	var filter store.AnalysisFilter
	q := r.URL.Query()

	filter.RunID = q.Get("run")

	// 'dupe_type' must name a known tag
	if t := q.Get("dupe_type"); t != "" {
		k, err := dedupe.ParseKind(t)
		if err != nil {
			return filter, fmt.Errorf("invalid dupe_type: %s", t)
		}
		name := k.String()
		filter.DupeType = &name
	}

	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit: %s", l)
		}
		filter.Limit = limit
	}

	if c := q.Get("cursor"); c != "" {
		filter.Cursor = &c
	}

	return filter, nil
}
