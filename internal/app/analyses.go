package app

import (
	"context"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/store"
)

// AnalysesUsecase defines the analyses query use case.
type AnalysesUsecase interface {
	Query(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error)
	Get(ctx context.Context, runID, insertID string) (dedupe.Analysis, error)
}

// AnalysisStore defines store operations needed by AnalysesService.
type AnalysisStore interface {
	QueryAnalyses(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error)
	GetAnalysis(ctx context.Context, runID, insertID string) (dedupe.Analysis, error)
}

// AnalysesService implements AnalysesUsecase.
type AnalysesService struct {
	Store AnalysisStore
}

// Query pages through the analyses of a run.
func (s *AnalysesService) Query(ctx context.Context, filter store.AnalysisFilter) (store.AnalysisPage, error) {
	return s.Store.QueryAnalyses(ctx, filter)
}

// Get returns one analysis of a run.
func (s *AnalysesService) Get(ctx context.Context, runID, insertID string) (dedupe.Analysis, error) {
	return s.Store.GetAnalysis(ctx, runID, insertID)
}
