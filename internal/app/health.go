// Package app provides application use cases.
package app

import (
	"context"
	"log/slog"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthUsecase defines the health check use case.
type HealthUsecase interface {
	Handle(ctx context.Context) (HealthResult, error)
}

// HealthResult represents the health check response.
type HealthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService implements HealthUsecase. DB is optional.
type HealthService struct {
	Version string
	DB      Pinger
}

// Handle returns the current health status. An unreachable database
// degrades the status rather than failing the check.
func (s HealthService) Handle(ctx context.Context) (HealthResult, error) {
	res := HealthResult{
		Status:  StatusOK,
		Version: s.Version,
	}
	if s.DB == nil {
		return res, nil
	}
	if err := s.DB.Ping(ctx); err != nil {
		slog.Warn("health check: database unreachable", "error", err)
		res.Status = StatusDegraded
		res.Database = "unreachable"
		return res, nil
	}
	res.Database = "ok"
	return res, nil
}
