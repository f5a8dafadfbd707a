// Package report writes reconciliation results to disk.
//
// Every JSON document is written atomically. Per-record output uses JSON
// lines so large exports can be streamed back in.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/graaaaa/reconcile/internal/atomicfile"
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/event"
)

// ErrUnresolved is returned by WriteClean when at least one group needs
// manual review. All output is still written.
var ErrUnresolved = errors.New("unresolved duplicate groups")

// DefaultChunkSize is the number of records per clean output chunk.
const DefaultChunkSize = 1000

// Writer writes reports under a single output directory.
type Writer struct {
	dir           string
	priceProperty string
	logger        *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithPriceProperty sets the event_properties key used for price deltas.
func WithPriceProperty(name string) Option {
	return func(w *Writer) { w.priceProperty = name }
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:           dir,
		priceProperty: dedupe.DefaultRuleSet().UnitPriceProperty,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// SanitizeFilename replaces every rune that is not a letter, digit, '-' or
// '_' with '_'.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

func (w *Writer) path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

func (w *Writer) writeJSON(v any, elem ...string) error {
	path := w.path(elem...)
	if err := atomicfile.WriteJSON(path, v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeLines(records []event.Record, elem ...string) error {
	path := w.path(elem...)
	err := atomicfile.Write(path, 0o755, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
