package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/summary"
)

// Run is one persisted analyze invocation.
type Run struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    summary.Report `json:"summary"`
}

// SaveRun stores a run and its analyses in a single transaction. A new
// UUID is assigned to r.ID when it is empty.
func (s *Store) SaveRun(ctx context.Context, r *Run, analyses []dedupe.Analysis) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	summaryJSON, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO runs (id, source, started_at, finished_at, summary_json)
	VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.StartedAt.UTC().Format(TimeFormat), r.FinishedAt.UTC().Format(TimeFormat), string(summaryJSON)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO analyses (run_id, insert_id, dupe_type, resolution, payload_json)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare analysis insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range analyses {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode analysis %q: %w", a.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, a.Key, a.Type.Kind.String(), a.Resolution.Kind.String(), string(payload)); err != nil {
			return fmt.Errorf("insert analysis %q: %w", a.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently finished run, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, source, started_at, finished_at, summary_json
	FROM runs
	ORDER BY finished_at DESC, rowid DESC
	LIMIT 1
	`)
	return scanRun(row)
}

// GetRun returns the run with the given id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, source, started_at, finished_at, summary_json
	FROM runs
	WHERE id = ?
	`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (Run, error) {
	var (
		r                 Run
		started, finished string
		summaryJSON       string
	)
	err := row.Scan(&r.ID, &r.Source, &started, &finished, &summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if r.StartedAt, err = time.Parse(TimeFormat, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if r.FinishedAt, err = time.Parse(TimeFormat, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at %q: %w", finished, err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return Run{}, fmt.Errorf("decode summary: %w", err)
	}
	return r, nil
}
