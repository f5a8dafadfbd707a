package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Stats summarizes the staging database.
type Stats struct {
	Records        int64            `json:"records"`
	DistinctKeys   int64            `json:"distinct_insert_ids"`
	DuplicateKeys  int64            `json:"duplicate_insert_ids"`
	MissingKeys    int64            `json:"missing_insert_ids"`
	ParseFailures  int64            `json:"parse_failures"`
	EventTypes     map[string]int64 `json:"event_types"`
	LastIngestedAt *string          `json:"last_ingested_at,omitempty"`
}

// GetStats retrieves counts over all staged records.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		EventTypes: map[string]int64{},
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT insert_id),
			COALESCE(SUM(CASE WHEN insert_id IS NULL THEN 1 ELSE 0 END), 0)
		FROM records
	`).Scan(&stats.Records, &stats.DistinctKeys, &stats.MissingKeys)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT insert_id FROM records
			WHERE insert_id IS NOT NULL
			GROUP BY insert_id
			HAVING COUNT(*) > 1
		)
	`).Scan(&stats.DuplicateKeys)
	if err != nil {
		return nil, fmt.Errorf("count duplicate keys: %w", err)
	}

	if stats.ParseFailures, err = s.CountParseFailures(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(event_type, ''), COUNT(*) FROM records
		GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count event types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ string
			n   int64
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		stats.EventTypes[typ] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var last sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT ingested_at FROM records
		ORDER BY ingested_at DESC, id DESC
		LIMIT 1
	`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if last.Valid {
		stats.LastIngestedAt = &last.String
	}

	return stats, nil
}
