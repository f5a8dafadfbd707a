package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/graaaaa/reconcile/internal/store"
)

// RecordStore defines store operations needed by Ingester.
type RecordStore interface {
	InsertRecord(ctx context.Context, r *store.StagedRecord) (int64, bool, error)
	InsertParseFailure(ctx context.Context, f store.ParseFailure) (bool, error)
}

// Stats counts what an Ingester has done.
type Stats struct {
	Inserted      int
	AlreadyStaged int
	ParseFailures int
	StoreErrors   int
	SourceErrors  int
}

// Ingester coordinates record ingestion from source to store.
type Ingester struct {
	source RecordSource
	store  RecordStore
	logger *slog.Logger
	clock  Clock

	mu    sync.Mutex
	stats Stats
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger for the Ingester.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) { i.logger = logger }
}

// WithClock sets the clock for the Ingester (for testing).
func WithClock(clock Clock) Option {
	return func(i *Ingester) { i.clock = clock }
}

// New creates a new Ingester.
func New(source RecordSource, store RecordStore, opts ...Option) *Ingester {
	i := &Ingester{
		source: source,
		store:  store,
		logger: slog.Default(),
		clock:  DefaultClock,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Stats returns a snapshot of the counters.
func (i *Ingester) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// Run starts the ingestion loop. Blocks until ctx is cancelled or source closes.
// Returns ctx.Err() on context cancellation, nil on clean source shutdown.
func (i *Ingester) Run(ctx context.Context) error {
	lines, errs, err := i.source.Start(ctx)
	if err != nil {
		return err
	}
	if lines == nil || errs == nil {
		return errors.New("source returned nil channel")
	}

	i.logger.Info("ingestion started")
	defer i.logger.Info("ingestion stopped")

	// Use nil-channel pattern: nil each channel when closed, exit when both are nil.
	linesCh := lines
	errsCh := errs

	for linesCh != nil || errsCh != nil {
		select {
		case l, ok := <-linesCh:
			if !ok {
				linesCh = nil
				continue
			}
			i.handleLine(ctx, l)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			i.handleError(ctx, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return ctx.Err()
}

func (i *Ingester) count(fn func(s *Stats)) {
	i.mu.Lock()
	fn(&i.stats)
	i.mu.Unlock()
}

// handleLine stages a single record.
func (i *Ingester) handleLine(ctx context.Context, l Line) {
	_, inserted, err := i.store.InsertRecord(ctx, ToStagedWithClock(l, i.clock))
	if err != nil {
		i.count(func(s *Stats) { s.StoreErrors++ })
		i.logger.Error("failed to insert record",
			"file", l.File,
			"line", l.Number,
			"error", err,
		)
		return
	}

	if !inserted {
		i.count(func(s *Stats) { s.AlreadyStaged++ })
		return
	}
	i.count(func(s *Stats) { s.Inserted++ })
	i.logger.Debug("record staged",
		"file", l.File,
		"line", l.Number,
		"event_type", l.Record.Type(),
	)
}

// handleError processes an error from the source.
func (i *Ingester) handleError(ctx context.Context, err error) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		i.handleParseError(ctx, parseErr)
		return
	}

	i.count(func(s *Stats) { s.SourceErrors++ })
	i.logger.Warn("source error", "error", err)
}

// handleParseError saves a parse failure to the database.
func (i *Ingester) handleParseError(ctx context.Context, parseErr *ParseError) {
	errMsg := ""
	if parseErr.Err != nil {
		errMsg = parseErr.Err.Error()
	}

	i.count(func(s *Stats) { s.ParseFailures++ })
	i.logger.Warn("unparseable export line",
		"file", parseErr.File,
		"line", parseErr.Line,
		"error", errMsg,
	)

	_, err := i.store.InsertParseFailure(ctx, store.ParseFailure{
		SourceFile: parseErr.File,
		Line:       parseErr.Line,
		RawLine:    parseErr.Raw,
		ErrorMsg:   errMsg,
	})
	if err != nil {
		i.count(func(s *Stats) { s.StoreErrors++ })
		i.logger.Error("failed to insert parse failure",
			"error", err,
		)
	}
}
