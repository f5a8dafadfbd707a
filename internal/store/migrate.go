package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	steps := []struct {
		name   string
		schema string
	}{
		{"records", recordsSchema},
		{"parse_failures", parseFailuresSchema},
		{"metadata", metadataSchema},
		{"runs", runsSchema},
		{"analyses", analysesSchema},
	}
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step.schema); err != nil {
			return fmt.Errorf("create %s table: %w", step.name, err)
		}
	}
	return nil
}

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	id                 INTEGER PRIMARY KEY,
	insert_id          TEXT,
	event_type         TEXT,
	event_time         TEXT,
	client_upload_time TEXT,
	raw_json           TEXT NOT NULL,
	source_file        TEXT NOT NULL,
	line_no            INTEGER NOT NULL,
	dedupe_key         TEXT NOT NULL,
	ingested_at        TEXT NOT NULL,
	schema_version     INTEGER NOT NULL,
	UNIQUE(dedupe_key)
);

CREATE INDEX IF NOT EXISTS idx_records_insert_id ON records(insert_id);
CREATE INDEX IF NOT EXISTS idx_records_event_type ON records(event_type);
`

const parseFailuresSchema = `
CREATE TABLE IF NOT EXISTS parse_failures (
	id          INTEGER PRIMARY KEY,
	ts          TEXT NOT NULL,
	source_file TEXT NOT NULL,
	line_no     INTEGER NOT NULL,
	raw_line    TEXT NOT NULL,
	error_msg   TEXT NOT NULL,
	dedupe_key  TEXT NOT NULL,
	UNIQUE(dedupe_key)
);
`

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	summary_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
`

const analysesSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id           INTEGER PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	insert_id    TEXT NOT NULL,
	dupe_type    TEXT NOT NULL,
	resolution   TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	UNIQUE(run_id, insert_id)
);

CREATE INDEX IF NOT EXISTS idx_analyses_run_type_key ON analyses(run_id, dupe_type, insert_id, id);
`
