// Package compare matches two exports of the same project by idempotency key.
package compare

import (
	"cmp"
	"slices"

	"github.com/graaaaa/reconcile/internal/diff"
	"github.com/graaaaa/reconcile/internal/event"
)

// Difference is a key present in both snapshots whose records differ.
type Difference struct {
	Key     string       `json:"insert_id"`
	A       event.Record `json:"original_event"`
	B       event.Record `json:"comparison_event"`
	Changes diff.Changes `json:"differences"`
}

// Counts describes one side of a comparison.
type Counts struct {
	Records  int `json:"total_events"`
	Keys     int `json:"unique_insert_ids"`
	Shadowed int `json:"shadowed_events"`
	Missing  int `json:"missing_insert_ids"`
}

// Result is the outcome of comparing snapshot A against snapshot B. Key
// lists are sorted.
type Result struct {
	A         Counts
	B         Counts
	Identical []string
	Different []Difference
	OnlyInA   map[string]event.Record
	OnlyInB   map[string]event.Record
}

// OnlyInAKeys returns the keys of OnlyInA in sorted order.
func (r Result) OnlyInAKeys() []string { return sortedKeys(r.OnlyInA) }

// OnlyInBKeys returns the keys of OnlyInB in sorted order.
func (r Result) OnlyInBKeys() []string { return sortedKeys(r.OnlyInB) }

// DifferentKeys returns the keys of Different in sorted order.
func (r Result) DifferentKeys() []string {
	out := make([]string, len(r.Different))
	for i, d := range r.Different {
		out[i] = d.Key
	}
	return out
}

// Snapshots compares a and b. Within a snapshot the last record for a key
// wins; earlier records are counted as shadowed. Records without a key are
// counted and otherwise ignored.
func Snapshots(a, b []event.Record) Result {
	ma, ca := index(a)
	mb, cb := index(b)

	res := Result{
		A:         ca,
		B:         cb,
		Identical: []string{},
		OnlyInA:   make(map[string]event.Record),
		OnlyInB:   make(map[string]event.Record),
	}

	for key, ra := range ma {
		rb, ok := mb[key]
		switch {
		case !ok:
			res.OnlyInA[key] = ra
		case event.Equal(ra, rb):
			res.Identical = append(res.Identical, key)
		default:
			res.Different = append(res.Different, Difference{
				Key:     key,
				A:       ra,
				B:       rb,
				Changes: diff.Records(ra, rb),
			})
		}
	}
	for key, rb := range mb {
		if _, ok := ma[key]; !ok {
			res.OnlyInB[key] = rb
		}
	}

	slices.Sort(res.Identical)
	slices.SortFunc(res.Different, func(x, y Difference) int {
		return cmp.Compare(x.Key, y.Key)
	})
	return res
}

func index(records []event.Record) (map[string]event.Record, Counts) {
	m := make(map[string]event.Record, len(records))
	c := Counts{Records: len(records)}
	for _, r := range records {
		key, ok := r.Key()
		if !ok {
			c.Missing++
			continue
		}
		if _, dup := m[key]; dup {
			c.Shadowed++
		}
		m[key] = r
	}
	c.Keys = len(m)
	return m, c
}

func sortedKeys(m map[string]event.Record) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
