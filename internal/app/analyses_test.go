package app

import (
	"context"
	"testing"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/store"
)

type stubAnalysisStore struct {
	gotFilter   store.AnalysisFilter
	gotRunID    string
	gotInsertID string
}

func (s *stubAnalysisStore) QueryAnalyses(ctx context.Context, f store.AnalysisFilter) (store.AnalysisPage, error) {
	s.gotFilter = f
	return store.AnalysisPage{RunID: "r1", Items: []dedupe.Analysis{{Key: "a"}}}, nil
}

func (s *stubAnalysisStore) GetAnalysis(ctx context.Context, runID, insertID string) (dedupe.Analysis, error) {
	s.gotRunID, s.gotInsertID = runID, insertID
	return dedupe.Analysis{Key: insertID}, nil
}

type stubRunStore struct {
	gotID string
}

func (s *stubRunStore) LatestRun(ctx context.Context) (store.Run, error) {
	return store.Run{ID: "latest"}, nil
}

func (s *stubRunStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.gotID = id
	return store.Run{ID: id}, nil
}

func TestAnalysesService_PassesThrough(t *testing.T) {
	stub := &stubAnalysisStore{}
	svc := &AnalysesService{Store: stub}

	dupeType := "TrueDuplicate"
	page, err := svc.Query(context.Background(), store.AnalysisFilter{RunID: "r1", DupeType: &dupeType, Limit: 5})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if page.RunID != "r1" || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}
	if stub.gotFilter.Limit != 5 || stub.gotFilter.DupeType == nil || *stub.gotFilter.DupeType != dupeType {
		t.Errorf("filter not forwarded: %+v", stub.gotFilter)
	}

	a, err := svc.Get(context.Background(), "r1", "key-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if a.Key != "key-1" || stub.gotRunID != "r1" {
		t.Errorf("Get forwarded run=%q key=%q", stub.gotRunID, a.Key)
	}
}

func TestRunsService(t *testing.T) {
	stub := &stubRunStore{}
	svc := &RunsService{Store: stub}

	latest, err := svc.Latest(context.Background())
	if err != nil || latest.ID != "latest" {
		t.Errorf("Latest = %+v, %v", latest, err)
	}

	run, err := svc.Get(context.Background(), "abc")
	if err != nil || run.ID != "abc" || stub.gotID != "abc" {
		t.Errorf("Get = %+v, %v", run, err)
	}
}
