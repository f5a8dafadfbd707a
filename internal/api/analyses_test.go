package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graaaaa/reconcile/internal/app"
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/store"
)

// MockAnalysesService implements app.AnalysesUsecase for testing.
type MockAnalysesService struct {
	QueryFunc func(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error)
	GetFunc   func(ctx context.Context, runID, insertID string) (dedupe.Analysis, error)
}

func (m *MockAnalysesService) Query(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter)
	}
	return store.AnalysisPage{}, nil
}

func (m *MockAnalysesService) Get(ctx context.Context, runID, insertID string) (dedupe.Analysis, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, runID, insertID)
	}
	return dedupe.Analysis{}, store.ErrNotFound
}

func newAnalysesServer(m *MockAnalysesService) *Server {
	return NewServer(":8080", app.HealthService{Version: "test"}, WithAnalysesUsecase(m))
}

func TestAnalysesEndpoint_Success(t *testing.T) {
	next := "cursor-2"
	mock := &MockAnalysesService{
		QueryFunc: func(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
			return store.AnalysisPage{
				RunID: "run-1",
				Items: []dedupe.Analysis{
					{Key: "a", Count: 2, Type: dedupe.Single(dedupe.TrueDuplicate)},
					{Key: "b", Count: 3, Type: dedupe.Single(dedupe.TooMany)},
				},
				NextCursor: &next,
			}, nil
		},
	}
	server := newAnalysesServer(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp analysesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("RunID = %q", resp.RunID)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	if !resp.Items[1].Type.Is(dedupe.TooMany) {
		t.Errorf("second item type = %v", resp.Items[1].Type)
	}
	if resp.NextCursor == nil || *resp.NextCursor != next {
		t.Errorf("NextCursor = %v", resp.NextCursor)
	}
}

func TestAnalysesEndpoint_WithFilters(t *testing.T) {
	var captured store.AnalysisFilter
	mock := &MockAnalysesService{
		QueryFunc: func(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
			captured = filter
			return store.AnalysisPage{RunID: filter.RunID}, nil
		},
	}
	server := newAnalysesServer(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?run=r9&dupe_type=UnknownPropDiff&limit=10&cursor=abc", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.RunID != "r9" {
		t.Errorf("RunID = %q", captured.RunID)
	}
	if captured.DupeType == nil || *captured.DupeType != "UnknownPropDiff" {
		t.Errorf("DupeType = %v", captured.DupeType)
	}
	if captured.Limit != 10 {
		t.Errorf("Limit = %d", captured.Limit)
	}
	if captured.Cursor == nil || *captured.Cursor != "abc" {
		t.Errorf("Cursor = %v", captured.Cursor)
	}
}

func TestAnalysesEndpoint_BadParams(t *testing.T) {
	server := newAnalysesServer(&MockAnalysesService{})

	for _, q := range []string{"dupe_type=Bogus", "limit=0", "limit=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?"+q, nil)
		rec := httptest.NewRecorder()
		server.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestAnalysesEndpoint_InvalidCursor(t *testing.T) {
	mock := &MockAnalysesService{
		QueryFunc: func(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
			return store.AnalysisPage{}, store.ErrInvalidCursor
		},
	}
	server := newAnalysesServer(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?cursor=!!!", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAnalysesEndpoint_EmptyResult(t *testing.T) {
	mock := &MockAnalysesService{
		QueryFunc: func(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
			return store.AnalysisPage{RunID: "r"}, nil
		},
	}
	server := newAnalysesServer(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["items"]) != "[]" {
		t.Errorf("items = %s, want []", raw["items"])
	}
}

func TestGetAnalysisEndpoint(t *testing.T) {
	var gotRun, gotKey string
	mock := &MockAnalysesService{
		GetFunc: func(ctx context.Context, runID, insertID string) (dedupe.Analysis, error) {
			gotRun, gotKey = runID, insertID
			if insertID == "missing" {
				return dedupe.Analysis{}, store.ErrNotFound
			}
			return dedupe.Analysis{Key: insertID, Count: 2}, nil
		},
	}
	server := newAnalysesServer(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/order-1?run=r2", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotRun != "r2" || gotKey != "order-1" {
		t.Errorf("forwarded run=%q key=%q", gotRun, gotKey)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil)
	rec = httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
