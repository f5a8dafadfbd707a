package report

import (
	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/summary"
)

// Document is the on-disk form of one analysis.
type Document struct {
	dedupe.Analysis
	PriceDelta string `json:"price_delta,omitempty"`
}

// Consolidated is the content of all_dupe_analyses.json.
type Consolidated struct {
	Summary  summary.Report `json:"summary"`
	Analyses []Document     `json:"dupe_analyses"`
}

// Document builds the on-disk form of a, adding the price delta for price
// change groups.
func (w *Writer) Document(a dedupe.Analysis) Document {
	doc := Document{Analysis: a}
	if !hasPriceChange(a.Type) {
		return doc
	}
	g, err := dedupe.NewGroup(a.Key, a.Records)
	if err != nil {
		return doc
	}
	earlier, later := g.Chronological()
	if delta, ok := PriceDelta(earlier, later, w.priceProperty); ok {
		doc.PriceDelta = delta
	}
	return doc
}

// WriteAnalyses writes one file per group under a directory named after its
// tag, the run summary, and a consolidated file with everything.
func (w *Writer) WriteAnalyses(analyses []dedupe.Analysis, sum summary.Report) error {
	docs := make([]Document, 0, len(analyses))
	for _, a := range analyses {
		doc := w.Document(a)
		if err := w.writeJSON(doc, a.Type.Kind.String(), analysisFilename(a.Key)); err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	if err := w.writeJSON(sum, "dupe_analysis_summary.json"); err != nil {
		return err
	}
	if err := w.writeJSON(Consolidated{Summary: sum, Analyses: docs}, "all_dupe_analyses.json"); err != nil {
		return err
	}

	w.logger.Info("analysis written",
		"dir", w.dir,
		"groups", len(analyses),
	)
	return nil
}

func analysisFilename(key string) string {
	return "dupe_analysis_" + SanitizeFilename(key) + ".json"
}
