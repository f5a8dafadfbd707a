package app

import (
	"context"

	"github.com/graaaaa/reconcile/internal/store"
)

// RunsUsecase defines the run lookup use case.
type RunsUsecase interface {
	Latest(ctx context.Context) (store.Run, error)
	Get(ctx context.Context, id string) (store.Run, error)
}

// RunStore defines store operations needed by RunsService.
type RunStore interface {
	LatestRun(ctx context.Context) (store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
}

// RunsService implements RunsUsecase.
type RunsService struct {
	Store RunStore
}

// Latest returns the most recent run.
func (s *RunsService) Latest(ctx context.Context) (store.Run, error) {
	return s.Store.LatestRun(ctx)
}

// Get returns the run with the given id.
func (s *RunsService) Get(ctx context.Context, id string) (store.Run, error) {
	return s.Store.GetRun(ctx, id)
}
