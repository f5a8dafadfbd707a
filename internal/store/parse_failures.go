package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ParseFailure is an export line that could not be decoded.
type ParseFailure struct {
	SourceFile string
	Line       int
	RawLine    string
	ErrorMsg   string
}

// InsertParseFailure records a line that failed to parse.
// Returns true if the failure was inserted, false if it was a duplicate.
// The same line at the same position is only stored once.
func (s *Store) InsertParseFailure(ctx context.Context, f ParseFailure) (inserted bool, err error) {
	if f.RawLine == "" {
		return false, fmt.Errorf("raw_line is required")
	}

	const query = `
	INSERT INTO parse_failures (ts, source_file, line_no, raw_line, error_msg, dedupe_key)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(dedupe_key) DO NOTHING
	`

	dedupeKey := sha256Hex(fmt.Sprintf("%s\n%d\n%s", f.SourceFile, f.Line, f.RawLine))
	ts := time.Now().UTC().Format(TimeFormat)

	result, err := s.db.ExecContext(ctx, query, ts, f.SourceFile, f.Line, f.RawLine, f.ErrorMsg, dedupeKey)
	if err != nil {
		return false, fmt.Errorf("insert parse failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CountParseFailures returns the number of stored parse failures.
func (s *Store) CountParseFailures(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parse_failures`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count parse failures: %w", err)
	}
	return count, nil
}

// sha256Hex returns the SHA256 hash of the input string as a hex string.
func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
