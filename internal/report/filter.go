package report

import (
	"github.com/graaaaa/reconcile/internal/event"
	"github.com/graaaaa/reconcile/internal/filter"
)

// FilterSummary is the content of filter_summary.json.
type FilterSummary struct {
	Total       int    `json:"total_events"`
	Remaining   int    `json:"remaining_events"`
	Removed     int    `json:"removed_events"`
	Description string `json:"filter_description"`
}

type eventList struct {
	Count  int            `json:"count"`
	Events []event.Record `json:"events"`
}

// WriteFilter writes the filter summary and, for each non-empty side, the
// records as a JSON document and as JSON lines.
func (w *Writer) WriteFilter(res filter.Result) error {
	sum := FilterSummary{
		Total:       res.Total(),
		Remaining:   len(res.Kept),
		Removed:     len(res.Removed),
		Description: res.Description,
	}
	if err := w.writeJSON(sum, "filter_summary.json"); err != nil {
		return err
	}

	for _, side := range []struct {
		name    string
		records []event.Record
	}{
		{"remaining_events", res.Kept},
		{"removed_events", res.Removed},
	} {
		if len(side.records) == 0 {
			continue
		}
		if err := w.writeJSON(eventList{Count: len(side.records), Events: side.records}, side.name+".json"); err != nil {
			return err
		}
		if err := w.writeLines(side.records, side.name+".jsonl"); err != nil {
			return err
		}
	}

	w.logger.Info("filter output written",
		"dir", w.dir,
		"remaining", sum.Remaining,
		"removed", sum.Removed,
	)
	return nil
}
