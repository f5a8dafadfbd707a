package app

import (
	"context"
	"errors"

	"github.com/graaaaa/reconcile/internal/store"
)

// StatsResult represents the response for the stats endpoint.
type StatsResult struct {
	Records        int64            `json:"records"`
	DistinctKeys   int64            `json:"distinct_insert_ids"`
	DuplicateKeys  int64            `json:"duplicate_insert_ids"`
	MissingKeys    int64            `json:"missing_insert_ids"`
	ParseFailures  int64            `json:"parse_failures"`
	EventTypes     map[string]int64 `json:"event_types"`
	LastIngestedAt *string          `json:"last_ingested_at,omitempty"`
	LatestRunID    *string          `json:"latest_run_id,omitempty"`
}

// StatsUsecase defines the interface for stats operations.
type StatsUsecase interface {
	GetStats(ctx context.Context) (*StatsResult, error)
}

// StatsStore defines the interface for stats data access.
type StatsStore interface {
	GetStats(ctx context.Context) (*store.Stats, error)
	LatestRun(ctx context.Context) (store.Run, error)
}

// StatsService implements StatsUsecase.
type StatsService struct {
	store StatsStore
}

// NewStatsService creates a new StatsService.
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// GetStats retrieves staging statistics and the id of the latest run, if any.
func (s *StatsService) GetStats(ctx context.Context) (*StatsResult, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	result := &StatsResult{
		Records:        stats.Records,
		DistinctKeys:   stats.DistinctKeys,
		DuplicateKeys:  stats.DuplicateKeys,
		MissingKeys:    stats.MissingKeys,
		ParseFailures:  stats.ParseFailures,
		EventTypes:     stats.EventTypes,
		LastIngestedAt: stats.LastIngestedAt,
	}

	run, err := s.store.LatestRun(ctx)
	switch {
	case err == nil:
		result.LatestRunID = &run.ID
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	return result, nil
}
