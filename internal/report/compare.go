package report

import (
	"github.com/graaaaa/reconcile/internal/compare"
)

// ComparisonSummary is the content of comparison_summary.json.
type ComparisonSummary struct {
	Original   compare.Counts `json:"original"`
	Comparison compare.Counts `json:"comparison"`
	Counts     struct {
		Identical        int `json:"identical_events"`
		Different        int `json:"different_events"`
		OnlyInOriginal   int `json:"only_in_original"`
		OnlyInComparison int `json:"only_in_comparison"`
	} `json:"summary"`
	Identical        []string `json:"identical_events"`
	Different        []string `json:"different_events"`
	OnlyInOriginal   []string `json:"only_in_original"`
	OnlyInComparison []string `json:"only_in_comparison"`
}

// NewComparisonSummary builds the summary document for res.
func NewComparisonSummary(res compare.Result) ComparisonSummary {
	s := ComparisonSummary{
		Original:         res.A,
		Comparison:       res.B,
		Identical:        res.Identical,
		Different:        res.DifferentKeys(),
		OnlyInOriginal:   res.OnlyInAKeys(),
		OnlyInComparison: res.OnlyInBKeys(),
	}
	s.Counts.Identical = len(s.Identical)
	s.Counts.Different = len(s.Different)
	s.Counts.OnlyInOriginal = len(s.OnlyInOriginal)
	s.Counts.OnlyInComparison = len(s.OnlyInComparison)
	return s
}

// WriteComparison writes the comparison summary, one diff file per differing
// key, and the records found on only one side.
func (w *Writer) WriteComparison(res compare.Result) error {
	if err := w.writeJSON(NewComparisonSummary(res), "comparison_summary.json"); err != nil {
		return err
	}
	for _, d := range res.Different {
		if err := w.writeJSON(d, "differences", SanitizeFilename(d.Key)+".json"); err != nil {
			return err
		}
	}
	for key, r := range res.OnlyInA {
		if err := w.writeJSON(r, "only_in_original", SanitizeFilename(key)+".json"); err != nil {
			return err
		}
	}
	for key, r := range res.OnlyInB {
		if err := w.writeJSON(r, "only_in_comparison", SanitizeFilename(key)+".json"); err != nil {
			return err
		}
	}

	w.logger.Info("comparison written",
		"dir", w.dir,
		"identical", len(res.Identical),
		"different", len(res.Different),
		"only_in_original", len(res.OnlyInA),
		"only_in_comparison", len(res.OnlyInB),
	)
	return nil
}
