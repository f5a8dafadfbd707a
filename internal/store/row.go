package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graaaaa/reconcile/internal/event"
)

// StagedRecord is one export line as stored in the records table.
type StagedRecord struct {
	ID         int64
	Record     event.Record
	Raw        json.RawMessage
	SourceFile string
	Line       int
	DedupeKey  string
	IngestedAt time.Time
}

// recordRow is the internal type representing a database row.
type recordRow struct {
	ID               int64
	InsertID         sql.NullString
	EventType        sql.NullString
	EventTime        sql.NullString
	ClientUploadTime sql.NullString
	RawJSON          string
	SourceFile       string
	LineNo           int
	DedupeKey        string
	IngestedAt       string
	SchemaVersion    int
}

// toStaged converts a database row back to a StagedRecord. The record is
// decoded from raw_json; the indexed columns are derived data.
func (r *recordRow) toStaged() (*StagedRecord, error) {
	rec, err := event.Parse([]byte(r.RawJSON))
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.ID, err)
	}

	ingestedAt, err := time.Parse(TimeFormat, r.IngestedAt)
	if err != nil {
		return nil, fmt.Errorf("parse ingested_at %q: %w", r.IngestedAt, err)
	}

	return &StagedRecord{
		ID:         r.ID,
		Record:     rec,
		Raw:        json.RawMessage(r.RawJSON),
		SourceFile: r.SourceFile,
		Line:       r.LineNo,
		DedupeKey:  r.DedupeKey,
		IngestedAt: ingestedAt,
	}, nil
}

// stagedToRow converts a StagedRecord to a database row.
func stagedToRow(s *StagedRecord) *recordRow {
	r := &recordRow{
		ID:            s.ID,
		RawJSON:       string(s.Raw),
		SourceFile:    s.SourceFile,
		LineNo:        s.Line,
		DedupeKey:     s.DedupeKey,
		IngestedAt:    s.IngestedAt.UTC().Format(TimeFormat),
		SchemaVersion: CurrentSchemaVersion,
	}

	if key, ok := s.Record.Key(); ok {
		r.InsertID = sql.NullString{String: key, Valid: true}
	}
	if s.Record.EventType != nil {
		r.EventType = sql.NullString{String: *s.Record.EventType, Valid: true}
	}
	r.EventTime = nullTime(s.Record.EventTime)
	r.ClientUploadTime = nullTime(s.Record.ClientUploadTime)

	return r
}

func nullTime(ts *event.Timestamp) sql.NullString {
	if ts == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts.UTC().Format(TimeFormat), Valid: true}
}

// validateStaged checks that required fields are set.
func validateStaged(s *StagedRecord) error {
	if len(s.Raw) == 0 {
		return fmt.Errorf("%w: raw json is required", ErrInvalidRecord)
	}
	if s.SourceFile == "" {
		return fmt.Errorf("%w: source file is required", ErrInvalidRecord)
	}
	if s.DedupeKey == "" {
		return fmt.Errorf("%w: dedupe_key is required", ErrInvalidRecord)
	}
	if s.IngestedAt.IsZero() {
		return fmt.Errorf("%w: ingested_at is required", ErrInvalidRecord)
	}
	return nil
}
