package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/graaaaa/reconcile/internal/dedupe"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// AnalysisFilter contains filter options for querying analyses.
type AnalysisFilter struct {
	RunID    string
	DupeType *string
	Limit    int
	Cursor   *string
}

// AnalysisPage contains one page of analyses.
type AnalysisPage struct {
	RunID      string
	Items      []dedupe.Analysis
	NextCursor *string
}

// QueryAnalyses pages through the analyses of a run ordered by insert id.
// An empty RunID selects the latest run.
func (s *Store) QueryAnalyses(ctx context.Context, f AnalysisFilter) (AnalysisPage, error) {
	runID, err := s.resolveRunID(ctx, f.RunID)
	if err != nil {
		return AnalysisPage{}, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString(`
SELECT id, insert_id, payload_json
FROM analyses
WHERE run_id = ?
`)
	args = append(args, runID)

	if f.DupeType != nil && *f.DupeType != "" {
		sb.WriteString(" AND dupe_type = ?")
		args = append(args, *f.DupeType)
	}

	// Cursor handling (composite cursor: insert_id|id)
	if f.Cursor != nil && *f.Cursor != "" {
		cursorKey, cursorID, err := decodeCursor(*f.Cursor)
		if err != nil {
			return AnalysisPage{}, fmt.Errorf("decode cursor: %w", err)
		}
		sb.WriteString(" AND (insert_id > ? OR (insert_id = ? AND id > ?))")
		args = append(args, cursorKey, cursorKey, cursorID)
	}

	sb.WriteString(" ORDER BY insert_id ASC, id ASC")
	sb.WriteString(" LIMIT ?")
	args = append(args, limit+1) // fetch one extra to detect next page

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return AnalysisPage{}, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	type item struct {
		id       int64
		analysis dedupe.Analysis
	}
	items := make([]item, 0, limit+1)
	for rows.Next() {
		var (
			it      item
			key     string
			payload string
		)
		if err := rows.Scan(&it.id, &key, &payload); err != nil {
			return AnalysisPage{}, fmt.Errorf("scan analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &it.analysis); err != nil {
			return AnalysisPage{}, fmt.Errorf("decode analysis %q: %w", key, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return AnalysisPage{}, fmt.Errorf("rows error: %w", err)
	}

	page := AnalysisPage{RunID: runID, Items: make([]dedupe.Analysis, 0, limit)}
	if len(items) > limit {
		last := items[limit-1]
		items = items[:limit]
		c := EncodeCursor(last.analysis.Key, last.id)
		page.NextCursor = &c
	}
	for _, it := range items {
		page.Items = append(page.Items, it.analysis)
	}
	return page, nil
}

// GetAnalysis returns the analysis of one insert id in a run. An empty runID
// selects the latest run. Returns ErrNotFound if either does not exist.
func (s *Store) GetAnalysis(ctx context.Context, runID, insertID string) (dedupe.Analysis, error) {
	runID, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return dedupe.Analysis{}, err
	}

	var payload string
	err = s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM analyses WHERE run_id = ? AND insert_id = ?`,
		runID, insertID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dedupe.Analysis{}, ErrNotFound
	}
	if err != nil {
		return dedupe.Analysis{}, fmt.Errorf("get analysis: %w", err)
	}

	var a dedupe.Analysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return dedupe.Analysis{}, fmt.Errorf("decode analysis %q: %w", insertID, err)
	}
	return a, nil
}

func (s *Store) resolveRunID(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	r, err := s.LatestRun(ctx)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
