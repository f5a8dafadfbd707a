package dedupe

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/graaaaa/reconcile/internal/diff"
	"github.com/graaaaa/reconcile/internal/event"
)

// Analysis is the full outcome for one group: what it is, what to keep, and
// the differences a reviewer needs to decide unresolved cases.
type Analysis struct {
	Key        string         `json:"insert_id"`
	Count      int            `json:"duplicate_count"`
	Type       DupeType       `json:"dupe_type"`
	Resolution Resolution     `json:"resolution"`
	Records    []event.Record `json:"events"`

	// FieldDiffs and PropertyDiffs compare the first two records in input
	// order. They are only set for UnknownPropDiff and Multi groups.
	FieldDiffs    diff.Changes `json:"field_differences,omitempty"`
	PropertyDiffs diff.Changes `json:"event_properties_differences,omitempty"`
}

// Analyzer classifies and resolves groups concurrently.
type Analyzer struct {
	classifier *Classifier
	resolver   *Resolver
	workers    int
	observer   func(Analysis)
	logger     *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClassifier sets the classifier.
func WithClassifier(c *Classifier) AnalyzerOption {
	return func(a *Analyzer) { a.classifier = c }
}

// WithResolver sets the resolver.
func WithResolver(r *Resolver) AnalyzerOption {
	return func(a *Analyzer) { a.resolver = r }
}

// WithWorkers bounds the number of groups processed at once.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithObserver registers fn to receive each Analysis as it completes.
// fn is called from worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(Analysis)) AnalyzerOption {
	return func(a *Analyzer) { a.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates an Analyzer using the default rule set unless
// overridden.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		classifier: defaultClassifier,
		resolver:   defaultResolver,
		workers:    runtime.NumCPU(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies and resolves a single group.
func (a *Analyzer) Analyze(g Group) Analysis {
	t := a.classifier.Classify(g)
	res := a.resolver.Resolve(g, t)

	out := Analysis{
		Key:        g.key,
		Count:      g.Len(),
		Type:       t,
		Resolution: res,
		Records:    g.Records(),
	}
	if t.Is(UnknownPropDiff) || t.Is(Multi) {
		out.FieldDiffs = diff.Records(g.First(), g.Second())
		out.PropertyDiffs = diff.Properties(g.First(), g.Second())
	}
	return out
}

// Run analyzes every group. Groups are independent and processed in no
// particular order; the result is sorted by key. Run stops early and returns
// the context error if ctx is cancelled.
func (a *Analyzer) Run(ctx context.Context, groups []Group) ([]Analysis, error) {
	results := make([]Analysis, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.workers)

	for i := range groups {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res := a.Analyze(groups[i])
			results[i] = res
			if a.observer != nil {
				a.observer(res)
			}
			a.logger.Debug("group analyzed",
				"insert_id", res.Key,
				"dupe_type", res.Type.String(),
				"resolution", res.Resolution.Kind.String(),
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(x, y Analysis) int {
		return cmp.Compare(x.Key, y.Key)
	})
	return results, nil
}
