// Package ingest reads line-delimited JSON export files and stages their
// records in the store.
package ingest

import (
	"context"
	"fmt"

	"github.com/graaaaa/reconcile/internal/event"
)

// RecordSource abstracts record production for testing.
// Implementations should close both channels when done, when ctx is
// cancelled, or on fatal error.
type RecordSource interface {
	// Start begins producing records. The error channel may receive multiple
	// non-fatal *ParseError values during operation.
	Start(ctx context.Context) (<-chan Line, <-chan error, error)
}

// Line is one decoded export line.
type Line struct {
	File   string // path relative to the export root
	Number int    // 1-based
	Raw    []byte
	Record event.Record
}

// ParseError wraps a decode failure with its position and the original line.
type ParseError struct {
	File string
	Line int
	Raw  string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
