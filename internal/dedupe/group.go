// Package dedupe classifies and resolves records that share an idempotency key.
//
// Records are first partitioned by key (GroupRecords). Every key with two or
// more records becomes a Group, which a Classifier tags with a DupeType and a
// Resolver turns into a Resolution. Grouping, classification and resolution
// are pure; Analyzer fans the per-group work out across goroutines.
package dedupe

import (
	"errors"
	"fmt"

	"github.com/graaaaa/reconcile/internal/event"
)

// Sentinel errors for the dedupe package.
var (
	// ErrGroupTooSmall is returned when a group is built from fewer than two records.
	ErrGroupTooSmall = errors.New("duplicate group needs at least two records")

	// ErrKeyMismatch is returned when a record does not carry the group's key.
	ErrKeyMismatch = errors.New("record key does not match group key")
)

// Group is two or more records sharing one idempotency key, in input order.
// Construct with NewGroup; the zero value is not a valid group.
type Group struct {
	key     string
	records []event.Record
}

// NewGroup validates and builds a Group.
func NewGroup(key string, records []event.Record) (Group, error) {
	if len(records) < 2 {
		return Group{}, fmt.Errorf("%w: key %q has %d", ErrGroupTooSmall, key, len(records))
	}
	for i, r := range records {
		if k, _ := r.Key(); k != key {
			return Group{}, fmt.Errorf("%w: record %d has %q, want %q", ErrKeyMismatch, i, k, key)
		}
	}
	return Group{key: key, records: records}, nil
}

// Key returns the shared idempotency key.
func (g Group) Key() string { return g.key }

// Len returns the number of records.
func (g Group) Len() int { return len(g.records) }

// Records returns the records in input order. The slice is a copy; the
// records must be treated as read-only.
func (g Group) Records() []event.Record {
	return append([]event.Record(nil), g.records...)
}

// First returns the first record in input order.
func (g Group) First() event.Record { return g.records[0] }

// Second returns the second record in input order.
func (g Group) Second() event.Record { return g.records[1] }

// Chronological returns the first two records ordered by client_upload_time.
// Ties keep input order.
func (g Group) Chronological() (earlier, later event.Record) {
	a, b := g.records[0], g.records[1]
	if event.CompareTimestamps(b.ClientUploadTime, a.ClientUploadTime) < 0 {
		return b, a
	}
	return a, b
}

// Earliest returns the record with the smallest client_upload_time across
// the whole group. Ties resolve to the earliest input position.
func (g Group) Earliest() event.Record {
	best := g.records[0]
	for _, r := range g.records[1:] {
		if event.CompareTimestamps(r.ClientUploadTime, best.ClientUploadTime) < 0 {
			best = r
		}
	}
	return best
}

// Partition is the result of grouping a record stream by idempotency key.
type Partition struct {
	// Total is the number of input records, Missing included.
	Total int
	// Singletons holds records whose key appears once, in input order.
	Singletons []event.Record
	// Duplicates holds one group per repeated key, ordered by first appearance.
	Duplicates []Group
	// Missing holds records without a usable key. They are skipped by
	// classification and must be reported by the caller.
	Missing []event.Record
}

// UniqueKeys returns the number of distinct idempotency keys.
func (p Partition) UniqueKeys() int {
	return len(p.Singletons) + len(p.Duplicates)
}

// DuplicateRecords returns the number of records that belong to a group.
func (p Partition) DuplicateRecords() int {
	n := 0
	for _, g := range p.Duplicates {
		n += g.Len()
	}
	return n
}

// GroupRecords partitions records by idempotency key in a single pass.
// Order within a key follows input order; keys are ordered by first appearance.
func GroupRecords(records []event.Record) Partition {
	p := Partition{Total: len(records)}

	index := make(map[string]int)
	var keys []string
	var buckets [][]event.Record

	for _, r := range records {
		key, ok := r.Key()
		if !ok {
			p.Missing = append(p.Missing, r)
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(keys)
			index[key] = i
			keys = append(keys, key)
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], r)
	}

	for i, key := range keys {
		if len(buckets[i]) == 1 {
			p.Singletons = append(p.Singletons, buckets[i][0])
			continue
		}
		// Keys come from the records themselves so NewGroup cannot fail here.
		p.Duplicates = append(p.Duplicates, Group{key: key, records: buckets[i]})
	}

	return p
}
