// Package filter selects records from an export before reconciliation.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/graaaaa/reconcile/internal/event"
)

// BoundLayout is the layout accepted for time bounds on the command line.
const BoundLayout = "2006-01-02 15:04:05"

// Filter decides whether a record stays in the output. Implementations may
// be stateful and are not safe for concurrent use.
type Filter interface {
	Include(r event.Record) bool
	Description() string
}

// Result is the outcome of applying a Filter to a record stream.
type Result struct {
	Description string
	Kept        []event.Record
	Removed     []event.Record
}

// Total returns the number of records the filter saw.
func (r Result) Total() int {
	return len(r.Kept) + len(r.Removed)
}

// Apply splits records in input order.
func Apply(records []event.Record, f Filter) Result {
	res := Result{Description: f.Description()}
	for _, r := range records {
		if f.Include(r) {
			res.Kept = append(res.Kept, r)
		} else {
			res.Removed = append(res.Removed, r)
		}
	}
	return res
}

// Criteria matches records where every set field is equal. Empty strings and
// zero times are unset. Time bounds are inclusive and a record without an
// event_time never matches a bound.
type Criteria struct {
	EventType string
	UserID    string
	DeviceID  string
	InsertID  string
	UUID      string
	Start     time.Time
	End       time.Time
	Invert    bool
}

// ParseBound parses a time bound in BoundLayout as UTC. An empty string
// returns the zero time.
func ParseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(BoundLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time bound %q: %w", s, err)
	}
	return t, nil
}

// Include implements Filter.
func (c Criteria) Include(r event.Record) bool {
	return c.matches(r) != c.Invert
}

func (c Criteria) matches(r event.Record) bool {
	if !fieldMatches(c.EventType, r.EventType) ||
		!fieldMatches(c.UserID, r.UserID) ||
		!fieldMatches(c.DeviceID, r.DeviceID) ||
		!fieldMatches(c.InsertID, r.InsertID) ||
		!fieldMatches(c.UUID, r.UUID) {
		return false
	}
	if !c.Start.IsZero() {
		if r.EventTime == nil || r.EventTime.Before(c.Start) {
			return false
		}
	}
	if !c.End.IsZero() {
		if r.EventTime == nil || r.EventTime.After(c.End) {
			return false
		}
	}
	return true
}

func fieldMatches(want string, got *string) bool {
	if want == "" {
		return true
	}
	return got != nil && *got == want
}

// Description implements Filter.
func (c Criteria) Description() string {
	var parts []string
	add := func(name, v string) {
		if v != "" {
			parts = append(parts, name+"="+v)
		}
	}
	add("event_type", c.EventType)
	add("user_id", c.UserID)
	add("device_id", c.DeviceID)
	add("insert_id", c.InsertID)
	add("uuid", c.UUID)
	if !c.Start.IsZero() {
		add("start", c.Start.Format(BoundLayout))
	}
	if !c.End.IsZero() {
		add("end", c.End.Format(BoundLayout))
	}

	desc := "multi-criteria filter"
	if len(parts) > 0 {
		desc += " (" + strings.Join(parts, ", ") + ")"
	}
	if c.Invert {
		desc += " inverted"
	}
	return desc
}

// FirstSeen keeps every record with a UUID key and only the first record of
// each non-UUID key. Records without a key are dropped.
type FirstSeen struct {
	seen map[string]int
}

// NewFirstSeen creates an empty FirstSeen filter.
func NewFirstSeen() *FirstSeen {
	return &FirstSeen{seen: make(map[string]int)}
}

// Include implements Filter.
func (f *FirstSeen) Include(r event.Record) bool {
	key, ok := r.Key()
	if !ok {
		return false
	}
	if event.IsUUIDKey(key) {
		return true
	}
	f.seen[key]++
	return f.seen[key] == 1
}

// Description implements Filter.
func (f *FirstSeen) Description() string {
	return "first-seen filter (UUID keys always kept)"
}

// Stats returns the number of non-UUID records seen and how many distinct
// keys they had.
func (f *FirstSeen) Stats() (records, keys int) {
	for _, n := range f.seen {
		records += n
	}
	return records, len(f.seen)
}
