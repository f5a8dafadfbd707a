package ingest

import (
	"context"
	"log/slog"

	"github.com/graaaaa/reconcile/internal/event"
)

// Default buffer sizes for channels.
const (
	DefaultLineBufferSize  = 64
	DefaultErrorBufferSize = 16
)

// DirSource implements RecordSource over a directory of export files.
// Malformed lines are reported as *ParseError and reading continues.
type DirSource struct {
	root            string
	logger          *slog.Logger
	lineBufferSize  int
	errorBufferSize int
}

// SourceOption configures DirSource.
type SourceOption func(*DirSource)

// WithSourceLogger sets the logger for the source.
// If logger is nil, it is ignored and the default logger is retained.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *DirSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLineBufferSize sets the line channel buffer size.
func WithLineBufferSize(size int) SourceOption {
	return func(s *DirSource) { s.lineBufferSize = size }
}

// WithErrorBufferSize sets the error channel buffer size.
func WithErrorBufferSize(size int) SourceOption {
	return func(s *DirSource) { s.errorBufferSize = size }
}

// NewDirSource creates a DirSource reading every export file under root.
func NewDirSource(root string, opts ...SourceOption) *DirSource {
	s := &DirSource{
		root:            root,
		logger:          slog.Default(),
		lineBufferSize:  DefaultLineBufferSize,
		errorBufferSize: DefaultErrorBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Minimum 1 to avoid unbuffered channels
	if s.lineBufferSize < 1 {
		s.lineBufferSize = 1
	}
	if s.errorBufferSize < 1 {
		s.errorBufferSize = 1
	}
	return s
}

// Start lists the export files and streams their lines. Listing errors are
// returned directly; read errors after Start are sent on the error channel
// and end the stream.
func (s *DirSource) Start(ctx context.Context) (<-chan Line, <-chan error, error) {
	files, err := Files(s.root)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("reading export files",
		"root", s.root,
		"files", len(files),
	)

	lineCh := make(chan Line, s.lineBufferSize)
	errCh := make(chan error, s.errorBufferSize)

	go func() {
		defer close(lineCh)
		defer close(errCh)

		send := func(ch chan<- error, err error) bool {
			select {
			case ch <- err:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, path := range files {
			rel := relPath(s.root, path)
			err := scanFile(path, func(num int, raw []byte) error {
				r, err := event.Parse(raw)
				if err != nil {
					if !send(errCh, &ParseError{File: rel, Line: num, Raw: string(raw), Err: err}) {
						return ctx.Err()
					}
					return nil
				}
				select {
				case lineCh <- Line{File: rel, Number: num, Raw: raw, Record: r}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				send(errCh, err)
				return
			}
		}
	}()

	return lineCh, errCh, nil
}
