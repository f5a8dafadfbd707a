package dedupe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graaaaa/reconcile/internal/event"
)

const serverKey = "drop-42-Submitted"

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type recOpt func(*event.Record)

func withType(t string) recOpt {
	return func(r *event.Record) { r.EventType = event.StringPtr(t) }
}

func withProps(p map[string]any) recOpt {
	return func(r *event.Record) { r.EventProperties = p }
}

func uploadedAt(offset time.Duration) recOpt {
	return func(r *event.Record) { r.ClientUploadTime = event.NewTimestamp(base.Add(offset)) }
}

func withCity(c string) recOpt {
	return func(r *event.Record) { r.City = event.StringPtr(c) }
}

func rec(key string, opts ...recOpt) event.Record {
	r := event.Record{
		InsertID:        event.StringPtr(key),
		EventType:       event.StringPtr("Property Drop Purchased"),
		EventTime:       event.NewTimestamp(base),
		UserID:          event.StringPtr("user-1"),
		EventProperties: map[string]any{"Property": "12 Main St", "Drop Type": "Standard", "Price per Share": 10},
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func group(t *testing.T, records ...event.Record) Group {
	t.Helper()
	key, _ := records[0].Key()
	g, err := NewGroup(key, records)
	require.NoError(t, err)
	return g
}

func TestGroupRecords_PartitionsByKey(t *testing.T) {
	records := []event.Record{
		rec("a", uploadedAt(0)),
		rec("b"),
		rec("a", uploadedAt(time.Second)),
		{EventType: event.StringPtr("no key")},
		{InsertID: event.StringPtr("")},
		rec("c"),
		rec("c"),
		rec("c"),
	}

	p := GroupRecords(records)

	assert.Equal(t, 8, p.Total)
	assert.Len(t, p.Missing, 2)
	require.Len(t, p.Singletons, 1)
	key, _ := p.Singletons[0].Key()
	assert.Equal(t, "b", key)

	require.Len(t, p.Duplicates, 2)
	assert.Equal(t, "a", p.Duplicates[0].Key())
	assert.Equal(t, "c", p.Duplicates[1].Key())
	assert.Equal(t, 3, p.Duplicates[1].Len())
	assert.Equal(t, 3, p.UniqueKeys())
	assert.Equal(t, 5, p.DuplicateRecords())

	// Input order is preserved within a group.
	first := p.Duplicates[0].First()
	assert.True(t, first.ClientUploadTime.Equal(base))
}

func TestNewGroup_Validation(t *testing.T) {
	_, err := NewGroup("k", []event.Record{rec("k")})
	assert.ErrorIs(t, err, ErrGroupTooSmall)

	_, err = NewGroup("k", []event.Record{rec("k"), rec("other")})
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestClassify_PanicsOnUndersizedGroup(t *testing.T) {
	assert.Panics(t, func() { Classify(Group{key: "k", records: []event.Record{rec("k")}}) })
	assert.Panics(t, func() { Classify(Group{}) })
}

func TestClassify_TrueDuplicate(t *testing.T) {
	g := group(t,
		rec(serverKey, uploadedAt(2*time.Second), withCity("Austin")),
		rec(serverKey, uploadedAt(time.Second), withCity("Dallas")),
	)

	got := Classify(g)
	assert.Equal(t, Single(TrueDuplicate), got)

	res := Resolve(g, got)
	require.Equal(t, KeepOne, res.Kind)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Dallas", *res.Records[0].City, "keeps the earlier upload")
}

func TestResolve_TrueDuplicateTieKeepsInputOrder(t *testing.T) {
	g := group(t,
		rec(serverKey, uploadedAt(0), withCity("first")),
		rec(serverKey, uploadedAt(0), withCity("second")),
	)
	res := Resolve(g, Classify(g))
	require.Equal(t, KeepOne, res.Kind)
	assert.Equal(t, "first", *res.Records[0].City)
}

func TestClassify_TooMany(t *testing.T) {
	g := group(t, rec(serverKey), rec(serverKey), rec(serverKey))

	got := Classify(g)
	assert.Equal(t, Single(TooMany), got)

	res := Resolve(g, got)
	assert.Equal(t, ResolveError, res.Kind)
	require.NotNil(t, res.Unresolved)
	assert.Equal(t, TooMany, res.Unresolved.Kind)
	assert.Empty(t, res.Records)
}

func TestClassify_PropertyNameChange(t *testing.T) {
	a := rec(serverKey, uploadedAt(0), withCity("A"))
	b := rec(serverKey, uploadedAt(time.Minute), withCity("B"), withProps(map[string]any{
		"Property": "14 Main St", "Drop Type": "Standard", "Price per Share": 10,
	}))
	g := group(t, a, b)

	got := Classify(g)
	assert.Equal(t, Single(PropertyNameChange), got)

	res := Resolve(g, got)
	require.Equal(t, KeepOne, res.Kind)
	kept := res.Records[0]
	assert.Equal(t, "A", *kept.City, "metadata from the earlier record")
	assert.Equal(t, "14 Main St", kept.EventProperties["Property"], "properties from the later record")

	// Inputs are untouched.
	assert.Equal(t, "12 Main St", a.EventProperties["Property"])
	kept.EventProperties["Property"] = "mutated"
	assert.Equal(t, "14 Main St", b.EventProperties["Property"])
}

func TestClassify_PropertyChangeIsChronological(t *testing.T) {
	later := rec(serverKey, uploadedAt(time.Minute), withCity("later"), withProps(map[string]any{
		"Property": "new", "Drop Type": "Standard", "Price per Share": 10,
	}))
	earlier := rec(serverKey, uploadedAt(0), withCity("earlier"))
	g := group(t, later, earlier)

	res := Resolve(g, Classify(g))
	require.Equal(t, KeepOne, res.Kind)
	assert.Equal(t, "earlier", *res.Records[0].City)
	assert.Equal(t, "new", res.Records[0].EventProperties["Property"])
}

func TestClassify_RenamedKeyIsNotNameChange(t *testing.T) {
	a := rec(serverKey, uploadedAt(0))
	b := rec(serverKey, uploadedAt(time.Second), withProps(map[string]any{
		"PropertyName": "12 Main St", "Drop Type": "Standard", "Price per Share": 10,
	}))
	g := group(t, a, b)

	got := Classify(g)
	assert.NotEqual(t, PropertyNameChange, got.Kind)
	assert.Equal(t, Single(UnknownPropDiff), got)

	res := Resolve(g, got)
	assert.Equal(t, ResolveError, res.Kind)
	assert.Empty(t, res.Records)
}

func TestClassify_RuleKeyOnOneSideOnly(t *testing.T) {
	tests := []struct {
		name    string
		dropped string
	}{
		{"display name", "Property"},
		{"category", "Drop Type"},
		{"unit price", "Price per Share"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := map[string]any{"Property": "12 Main St", "Drop Type": "Standard", "Price per Share": 10}
			delete(props, tt.dropped)
			g := group(t, rec(serverKey, uploadedAt(0)), rec(serverKey, uploadedAt(time.Second), withProps(props)))

			got := Classify(g)
			assert.Equal(t, Single(UnknownPropDiff), got)
			assert.Equal(t, ResolveError, Resolve(g, got).Kind)
		})
	}
}

func TestClassify_MultipleProperties(t *testing.T) {
	a := rec(serverKey, uploadedAt(0))
	b := rec(serverKey, uploadedAt(time.Second), withProps(map[string]any{
		"Property": "other", "Drop Type": "Premium", "Price per Share": 10,
	}))
	g := group(t, a, b)

	got := Classify(g)
	assert.Equal(t, Composite(PropertyNameChange, DropTypeChange), got)
	assert.Equal(t, "Multi(PropertyNameChange, DropTypeChange)", got.String())

	res := Resolve(g, got)
	assert.Equal(t, ResolveError, res.Kind)
}

func TestClassify_PriceChange(t *testing.T) {
	a := rec(serverKey)
	b := rec(serverKey, withProps(map[string]any{
		"Property": "12 Main St", "Drop Type": "Standard", "Price per Share": 12.5,
	}))
	g := group(t, a, b)

	assert.Equal(t, Single(PropertyDropPriceChange), Classify(g))
}

func TestClassify_UUIDKeySkipsPropertyRules(t *testing.T) {
	const key = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	a := rec(key)
	b := rec(key, withProps(map[string]any{
		"Property": "other", "Drop Type": "Standard", "Price per Share": 10,
	}))
	g := group(t, a, b)

	got := Classify(g)
	assert.Equal(t, Single(UnknownPropDiff), got)
	assert.Equal(t, ResolveError, Resolve(g, got).Kind)
}

func TestClassify_PreOrderMistake(t *testing.T) {
	submitted := rec(serverKey, withType("Property Pre-Order Submitted"), withProps(nil))
	completed := rec(serverKey, withType("Property Pre-Order Completed"), withProps(nil), withCity("X"))
	g := group(t, completed, submitted)

	got := Classify(g)
	assert.Equal(t, Single(PreOrderDropCompletedMistake), got)

	res := Resolve(g, got)
	require.Equal(t, KeepMany, res.Kind)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Property Pre-Order Submitted", res.Records[0].Type())
	assert.Equal(t, serverKey, *res.Records[0].InsertID)
	assert.Equal(t, "Property Pre-Order Completed", res.Records[1].Type())
	assert.Equal(t, "drop-42-Completed", *res.Records[1].InsertID)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, serverKey, *completed.InsertID, "input key untouched")
}

func TestResolve_PreOrderWithoutMarkerWarns(t *testing.T) {
	g := group(t,
		rec("drop-42", withType("Property Pre-Order Submitted")),
		rec("drop-42", withType("Property Pre-Order Completed")),
	)
	res := Resolve(g, Single(PreOrderDropCompletedMistake))
	require.Equal(t, KeepMany, res.Kind)
	assert.Equal(t, "drop-42", *res.Records[1].InsertID)
	assert.Len(t, res.Warnings, 1)
}

func TestClassify_PreOrderWithPropertyDrift(t *testing.T) {
	submitted := rec(serverKey, withType("Property Pre-Order Submitted"))
	completed := rec(serverKey, withType("Property Pre-Order Completed"), withProps(map[string]any{
		"Property": "12 Main St", "Drop Type": "Standard", "Price per Share": 11,
	}))
	g := group(t, submitted, completed)

	assert.Equal(t, Composite(PreOrderDropCompletedMistake, PropertyDropPriceChange), Classify(g))
}

func TestClassify_EventPropsIncompatible(t *testing.T) {
	g := group(t, rec(serverKey, withProps(nil)), rec(serverKey))

	got := Classify(g)
	// The fallback still runs and the records differ.
	assert.Equal(t, Composite(EventPropsIncompatible, UnknownPropDiff), got)
	assert.Equal(t, ResolveError, Resolve(g, got).Kind)
}

func TestClassify_CustomRuleSet(t *testing.T) {
	rs := DefaultRuleSet()
	rs.SubmittedEventType = "Order Placed"
	rs.CompletedEventType = "Order Filled"
	rs.SubmittedKeyMarker = "placed"
	rs.CompletedKeyMarker = "filled"
	require.NoError(t, rs.Validate())

	c := NewClassifier(WithRuleSet(rs))
	g := group(t,
		rec("order-1-placed", withType("Order Placed")),
		rec("order-1-placed", withType("Order Filled")),
	)
	got := c.Classify(g)
	assert.Equal(t, Single(PreOrderDropCompletedMistake), got)

	res := NewResolver(rs).Resolve(g, got)
	assert.Equal(t, "order-1-filled", *res.Records[1].InsertID)
}

func TestClassify_ExtraRule(t *testing.T) {
	flagAll := RuleFunc{RuleName: "flag", Fn: func(g Group, v Verdict) Verdict {
		return v.Fire(Unknown).SuppressFallback()
	}}
	c := NewClassifier(WithRules(flagAll))
	g := group(t, rec(serverKey), rec(serverKey))

	assert.Equal(t, Single(Unknown), c.Classify(g))
	assert.Len(t, c.Rules(), 5)
}

func TestVerdict_IsImmutable(t *testing.T) {
	var v Verdict
	v1 := v.Fire(TrueDuplicate)
	v2 := v1.Fire(Unknown)
	v3 := v1.Fire(TooMany).SuppressFallback()

	assert.Empty(t, v.Fired())
	assert.Equal(t, []Kind{TrueDuplicate}, v1.Fired())
	assert.Equal(t, []Kind{TrueDuplicate, Unknown}, v2.Fired())
	assert.Equal(t, []Kind{TrueDuplicate, TooMany}, v3.Fired())
	assert.False(t, v1.FallbackSuppressed())
	assert.Equal(t, Single(Unknown), v.Result())
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("Bogus")
	assert.Error(t, err)
}

func TestAnalyzer_Run(t *testing.T) {
	p := GroupRecords([]event.Record{
		rec("b", uploadedAt(0)), rec("b", uploadedAt(time.Second)),
		rec("a"), rec("a", withProps(map[string]any{
			"Property": "12 Main St", "Drop Type": "Standard", "Price per Share": 10, "Other": 1,
		})),
		rec("c"), rec("c"), rec("c"),
	})

	var mu sync.Mutex
	seen := map[string]bool{}
	an := NewAnalyzer(WithWorkers(2), WithObserver(func(a Analysis) {
		mu.Lock()
		defer mu.Unlock()
		seen[a.Key] = true
	}))

	results, err := an.Run(context.Background(), p.Duplicates)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Key)
	assert.Equal(t, Single(UnknownPropDiff), results[0].Type)
	assert.Contains(t, results[0].PropertyDiffs.Keys(), "Other")
	assert.Contains(t, results[0].FieldDiffs.Keys(), "event_properties")

	assert.Equal(t, Single(TrueDuplicate), results[1].Type)
	assert.Nil(t, results[1].FieldDiffs)

	assert.Equal(t, 3, results[2].Count)
	assert.Equal(t, Single(TooMany), results[2].Type)

	assert.Len(t, seen, 3)
}

func TestAnalyzer_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := GroupRecords([]event.Record{rec("a"), rec("a")})
	_, err := NewAnalyzer().Run(ctx, p.Duplicates)
	assert.ErrorIs(t, err, context.Canceled)
}
