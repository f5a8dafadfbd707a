package store

import (
	"context"
	"fmt"

	"github.com/graaaaa/reconcile/internal/event"
)

// InsertRecord stages an export record.
// Returns the inserted ID if successful, or 0 if the record was already staged.
// Uses ON CONFLICT(dedupe_key) DO NOTHING for deduplication.
// On success, sets r.ID to the inserted row's ID.
func (s *Store) InsertRecord(ctx context.Context, r *StagedRecord) (id int64, inserted bool, err error) {
	if err := validateStaged(r); err != nil {
		return 0, false, err
	}

	const query = `
	INSERT INTO records
	(insert_id, event_type, event_time, client_upload_time, raw_json, source_file, line_no, dedupe_key, ingested_at, schema_version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dedupe_key) DO NOTHING
	`

	row := stagedToRow(r)
	result, err := s.db.ExecContext(ctx, query,
		row.InsertID,
		row.EventType,
		row.EventTime,
		row.ClientUploadTime,
		row.RawJSON,
		row.SourceFile,
		row.LineNo,
		row.DedupeKey,
		row.IngestedAt,
		row.SchemaVersion,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id: %w", err)
		}
		r.ID = id
		return id, true, nil
	}

	return 0, false, nil
}

// StagedRecords returns every staged row in insertion order.
func (s *Store) StagedRecords(ctx context.Context) ([]StagedRecord, error) {
	const query = `
	SELECT id, insert_id, event_type, event_time, client_upload_time, raw_json, source_file, line_no, dedupe_key, ingested_at, schema_version
	FROM records
	ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []StagedRecord
	for rows.Next() {
		var r recordRow
		if err := rows.Scan(
			&r.ID, &r.InsertID, &r.EventType, &r.EventTime, &r.ClientUploadTime,
			&r.RawJSON, &r.SourceFile, &r.LineNo, &r.DedupeKey, &r.IngestedAt,
			&r.SchemaVersion,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		staged, err := r.toStaged()
		if err != nil {
			return nil, err
		}
		out = append(out, *staged)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// LoadRecords returns every staged record in insertion order, which is the
// order the export lines were read.
func (s *Store) LoadRecords(ctx context.Context) ([]event.Record, error) {
	staged, err := s.StagedRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]event.Record, len(staged))
	for i, r := range staged {
		out[i] = r.Record
	}
	return out, nil
}

// CountRecords returns the total number of staged records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM records`

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
