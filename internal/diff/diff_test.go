package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graaaaa/reconcile/internal/event"
)

func record(key string, props map[string]any) event.Record {
	return event.Record{
		InsertID:        event.StringPtr(key),
		EventType:       event.StringPtr("Property Viewed"),
		EventProperties: props,
	}
}

func TestProperties_OneSideAbsent(t *testing.T) {
	a := record("k", nil)
	b := record("k", map[string]any{"x": 1})

	got := Properties(a, b)
	assert.Equal(t, []string{"x"}, got.Keys())
	assert.True(t, got["x"].AMissing)
	assert.Equal(t, 1, got["x"].B)
}

func TestProperties_NeitherPresent(t *testing.T) {
	assert.Empty(t, Properties(record("k", nil), record("k", nil)))
}

func TestProperties_PerKey(t *testing.T) {
	a := record("k", map[string]any{"Property": "A", "Drop Type": "x", "same": 1})
	b := record("k", map[string]any{"Property": "B", "PropertyName": "A", "same": 1})

	got := Properties(a, b)
	assert.Equal(t, []string{"Drop Type", "Property", "PropertyName"}, got.Keys())
	assert.Equal(t, Change{A: "A", B: "B"}, got["Property"])
	assert.True(t, got["Drop Type"].BMissing)
	assert.True(t, got["PropertyName"].AMissing)
}

func TestProperties_ExplicitNullVersusAbsent(t *testing.T) {
	a := record("k", map[string]any{"x": nil})
	b := record("k", map[string]any{})

	got := Properties(a, b)
	assert.Equal(t, []string{"x"}, got.Keys())
}

func TestRecords_Symmetric(t *testing.T) {
	tests := []struct {
		name string
		a, b event.Record
	}{
		{"props", record("k", map[string]any{"a": 1}), record("k", map[string]any{"a": 2, "b": 3})},
		{"type", record("k", nil), event.Record{InsertID: event.StringPtr("k"), EventType: event.StringPtr("Other")}},
		{"equal", record("k", map[string]any{"a": 1}), record("k", map[string]any{"a": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := Records(tt.a, tt.b)
			ba := Records(tt.b, tt.a)
			assert.Equal(t, ab.Keys(), ba.Keys())
			assert.Equal(t, ab, ba.Swap())

			pab := Properties(tt.a, tt.b)
			pba := Properties(tt.b, tt.a)
			assert.Equal(t, pab.Keys(), pba.Keys())
		})
	}
}

func TestRecords_ReportsVolatileFields(t *testing.T) {
	a := record("k", nil)
	b := record("k", nil)
	b.City = event.StringPtr("Austin")

	got := Records(a, b)
	assert.Equal(t, []string{"city"}, got.Keys())
	assert.Empty(t, got.Without("city"))
}

func TestRecords_DoesNotMutateInputs(t *testing.T) {
	props := map[string]any{"a": 1}
	a := record("k", props)
	b := record("k", map[string]any{"a": 2})
	Records(a, b)
	Properties(a, b)
	assert.Equal(t, map[string]any{"a": 1}, props)
}
