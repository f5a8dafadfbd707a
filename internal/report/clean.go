package report

import (
	"fmt"
	"os"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/event"
)

// ManualReviewDir holds groups that could not be resolved automatically.
const ManualReviewDir = "manual_review"

// CleanStats describes what WriteClean produced.
type CleanStats struct {
	NonDuplicateRecords int
	ResolvedRecords     int
	UnresolvedGroups    int
	MissingKeyRecords   int
	Chunks              int
}

// WriteClean replaces the output directory with resolved records. Records
// without a key are written to manual_review for inspection. If any group
// is unresolved it is written to manual_review/<Tag>/ and ErrUnresolved is
// returned after all output is complete.
func (w *Writer) WriteClean(p dedupe.Partition, analyses []dedupe.Analysis, chunkSize int) (CleanStats, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return CleanStats{}, fmt.Errorf("clear output dir: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return CleanStats{}, fmt.Errorf("create output dir: %w", err)
	}

	var stats CleanStats

	n, err := w.writeChunks("non_duplicate_chunk", p.Singletons, chunkSize)
	if err != nil {
		return stats, err
	}
	stats.Chunks += n
	stats.NonDuplicateRecords = len(p.Singletons)

	var resolved []event.Record
	for _, a := range analyses {
		if !a.Resolution.Resolved() {
			stats.UnresolvedGroups++
			if err := w.writeJSON(w.Document(a), ManualReviewDir, a.Type.Kind.String(), analysisFilename(a.Key)); err != nil {
				return stats, err
			}
			continue
		}
		resolved = append(resolved, a.Resolution.Records...)
	}
	n, err = w.writeChunks("duplicate_chunk", resolved, chunkSize)
	if err != nil {
		return stats, err
	}
	stats.Chunks += n
	stats.ResolvedRecords = len(resolved)

	if len(p.Missing) > 0 {
		stats.MissingKeyRecords = len(p.Missing)
		if err := w.writeLines(p.Missing, ManualReviewDir, "missing_insert_id.json"); err != nil {
			return stats, err
		}
	}

	w.logger.Info("clean output written",
		"dir", w.dir,
		"chunks", stats.Chunks,
		"resolved_records", stats.ResolvedRecords,
		"unresolved_groups", stats.UnresolvedGroups,
		"missing_insert_ids", stats.MissingKeyRecords,
	)

	if stats.UnresolvedGroups > 0 {
		return stats, fmt.Errorf("%w: %d groups written to %s", ErrUnresolved, stats.UnresolvedGroups, w.path(ManualReviewDir))
	}
	return stats, nil
}

func (w *Writer) writeChunks(prefix string, records []event.Record, size int) (int, error) {
	chunks := 0
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		name := fmt.Sprintf("%s_%d.json", prefix, chunks)
		if err := w.writeLines(records[start:end], name); err != nil {
			return chunks, err
		}
		chunks++
	}
	return chunks, nil
}
