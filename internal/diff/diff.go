// Package diff computes field-level differences between two records.
// Every function is pure, symmetric in the key sets it reports and
// deterministic in ordering.
package diff

import (
	"maps"
	"slices"

	"github.com/graaaaa/reconcile/internal/event"
)

// Change holds the two sides of a differing field. A side that lacks the
// key entirely is marked missing, which distinguishes it from an explicit null.
type Change struct {
	A        any  `json:"event1_value"`
	B        any  `json:"event2_value"`
	AMissing bool `json:"event1_missing,omitempty"`
	BMissing bool `json:"event2_missing,omitempty"`
}

// Changes maps a field name to its differing values.
type Changes map[string]Change

// Keys returns the changed field names in sorted order.
func (c Changes) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Without returns a copy of c minus the given keys.
func (c Changes) Without(keys ...string) Changes {
	out := make(Changes, len(c))
	for k, v := range c {
		if !slices.Contains(keys, k) {
			out[k] = v
		}
	}
	return out
}

// Swap returns c with the A and B sides exchanged.
func (c Changes) Swap() Changes {
	out := make(Changes, len(c))
	for k, v := range c {
		out[k] = Change{A: v.B, B: v.A, AMissing: v.BMissing, BMissing: v.AMissing}
	}
	return out
}

// Records diffs every top-level field of a and b, volatile fields included.
func Records(a, b event.Record) Changes {
	return Maps(a.Flatten(), b.Flatten())
}

// Properties diffs the event_properties maps of a and b.
// If only one side has a map every key of that map is reported; if neither
// has one the result is empty.
func Properties(a, b event.Record) Changes {
	return Maps(a.EventProperties, b.EventProperties)
}

// Maps diffs two JSON objects key by key. A nil map is treated as having
// no keys.
func Maps(a, b map[string]any) Changes {
	out := make(Changes)
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			out[k] = Change{A: va, BMissing: true}
			continue
		}
		if !event.SameValue(va, vb) {
			out[k] = Change{A: va, B: vb}
		}
	}
	for k, vb := range b {
		if _, ok := a[k]; !ok {
			out[k] = Change{B: vb, AMissing: true}
		}
	}
	return out
}
