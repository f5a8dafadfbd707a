package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/event"
	"github.com/graaaaa/reconcile/internal/summary"
)

func testAnalysis(key string, kind dedupe.Kind) dedupe.Analysis {
	t := dedupe.Single(kind)
	a := dedupe.Analysis{
		Key:   key,
		Count: 2,
		Type:  t,
		Records: []event.Record{
			{InsertID: event.StringPtr(key)},
			{InsertID: event.StringPtr(key)},
		},
	}
	if kind == dedupe.TrueDuplicate {
		a.Resolution = dedupe.Resolution{Kind: dedupe.KeepOne, Records: a.Records[:1]}
	} else {
		a.Resolution = dedupe.Resolution{Kind: dedupe.ResolveError, Unresolved: &t}
	}
	return a
}

func saveTestRun(t *testing.T, st *Store, finished time.Time, analyses []dedupe.Analysis) Run {
	t.Helper()
	r := Run{
		Source:     "exports/",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Summary:    summary.Report{TotalEvents: 2 * len(analyses), DupeTypeCounts: map[string]int{}},
	}
	if err := st.SaveRun(context.Background(), &r, analyses); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	return r
}

func TestLatestRun_Empty(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	_, err := st.LatestRun(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRun_LatestAndGet(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	older := saveTestRun(t, st, base, []dedupe.Analysis{testAnalysis("a", dedupe.TrueDuplicate)})
	newer := saveTestRun(t, st, base.Add(time.Hour), []dedupe.Analysis{testAnalysis("b", dedupe.TooMany)})

	if older.ID == "" || older.ID == newer.ID {
		t.Fatalf("run ids = %q, %q", older.ID, newer.ID)
	}

	latest, err := st.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.ID != newer.ID {
		t.Errorf("latest = %q, want %q", latest.ID, newer.ID)
	}
	if !latest.FinishedAt.Equal(newer.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", latest.FinishedAt, newer.FinishedAt)
	}
	if latest.Summary.TotalEvents != 2 {
		t.Errorf("Summary.TotalEvents = %d, want 2", latest.Summary.TotalEvents)
	}

	got, err := st.GetRun(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Source != "exports/" {
		t.Errorf("Source = %q", got.Source)
	}

	if _, err := st.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAnalysis(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	ctx := context.Background()
	run := saveTestRun(t, st, time.Now(), []dedupe.Analysis{
		testAnalysis("dup", dedupe.TrueDuplicate),
		testAnalysis("many", dedupe.TooMany),
	})

	a, err := st.GetAnalysis(ctx, "", "many")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if a.Type.Kind != dedupe.TooMany || a.Resolution.Kind != dedupe.ResolveError {
		t.Errorf("analysis = %v / %v", a.Type, a.Resolution.Kind)
	}
	if len(a.Records) != 2 {
		t.Errorf("records = %d, want 2", len(a.Records))
	}

	if _, err := st.GetAnalysis(ctx, run.ID, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryAnalyses_Pagination(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	ctx := context.Background()
	var analyses []dedupe.Analysis
	for i := 0; i < 5; i++ {
		kind := dedupe.TrueDuplicate
		if i%2 == 1 {
			kind = dedupe.TooMany
		}
		analyses = append(analyses, testAnalysis(fmt.Sprintf("key-%d", i), kind))
	}
	run := saveTestRun(t, st, time.Now(), analyses)

	var (
		keys   []string
		cursor *string
	)
	for page := 0; page < 10; page++ {
		res, err := st.QueryAnalyses(ctx, AnalysisFilter{RunID: run.ID, Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("QueryAnalyses: %v", err)
		}
		for _, a := range res.Items {
			keys = append(keys, a.Key)
		}
		if res.NextCursor == nil {
			break
		}
		cursor = res.NextCursor
	}

	want := "[key-0 key-1 key-2 key-3 key-4]"
	if fmt.Sprint(keys) != want {
		t.Errorf("keys = %v, want %s", keys, want)
	}
}

func TestQueryAnalyses_FilterByType(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	saveTestRun(t, st, time.Now(), []dedupe.Analysis{
		testAnalysis("a", dedupe.TrueDuplicate),
		testAnalysis("b", dedupe.TooMany),
		testAnalysis("c", dedupe.TooMany),
	})

	typ := "TooMany"
	res, err := st.QueryAnalyses(context.Background(), AnalysisFilter{DupeType: &typ})
	if err != nil {
		t.Fatalf("QueryAnalyses: %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("len = %d, want 2", len(res.Items))
	}
	if res.NextCursor != nil {
		t.Error("NextCursor should be nil on the last page")
	}
}

func TestQueryAnalyses_NoRun(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	_, err := st.QueryAnalyses(context.Background(), AnalysisFilter{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryAnalyses_InvalidCursor(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	run := saveTestRun(t, st, time.Now(), nil)
	bad := "!!!"
	_, err := st.QueryAnalyses(context.Background(), AnalysisFilter{RunID: run.ID, Cursor: &bad})
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}
