// Package summary accumulates run-level statistics from per-group analyses.
// It tracks counts per dupe type and the union of fields that differed.
package summary

import (
	"maps"
	"slices"
	"sync"

	"github.com/graaaaa/reconcile/internal/dedupe"
)

// DefaultExcludedFields are left out of the all_diff_fields list because they
// differ on nearly every duplicate and say nothing about the cause.
var DefaultExcludedFields = []string{
	"city",
	"country",
	"device_carrier",
	"device_family",
	"device_type",
	"event_id",
	"ip_address",
	"os_name",
	"os_version",
	"platform",
	"client_upload_time",
	"processed_time",
	"server_received_time",
	"server_upload_time",
	"user_properties",
	"uuid",
	"language",
	"region",
	"dma",
	"data",
}

// Report is a point-in-time copy of a Summary, shaped for the summary file
// and the API.
type Report struct {
	TotalEvents                  int            `json:"total_events"`
	UniqueInsertIDs              int            `json:"unique_insert_ids"`
	DuplicateInsertIDsCount      int            `json:"duplicate_insert_ids_count"`
	MissingInsertIDs             int            `json:"missing_insert_ids"`
	Resolved                     int            `json:"resolved"`
	Unresolved                   int            `json:"unresolved"`
	DupeTypeCounts               map[string]int `json:"dupe_type_counts"`
	DuplicateInsertIDs           []string       `json:"duplicate_insert_ids"`
	AllDiffFields                []string       `json:"all_diff_fields"`
	AllEventPropertiesDiffFields []string       `json:"all_event_properties_diff_fields"`
}

// Summary accumulates analyses. It is safe for concurrent use.
type Summary struct {
	mu         sync.Mutex
	excluded   map[string]struct{}
	total      int
	unique     int
	missing    int
	resolved   int
	unresolved int
	counts     map[dedupe.Kind]int
	keys       []string
	diffFields map[string]struct{}
	propFields map[string]struct{}
}

// New creates a Summary. Fields in excluded never appear in AllDiffFields.
func New(excluded []string) *Summary {
	s := &Summary{
		excluded:   make(map[string]struct{}, len(excluded)),
		counts:     make(map[dedupe.Kind]int),
		diffFields: make(map[string]struct{}),
		propFields: make(map[string]struct{}),
	}
	for _, f := range excluded {
		s.excluded[f] = struct{}{}
	}
	return s
}

// SetPartition records the record-level totals of a grouping pass.
func (s *Summary) SetPartition(p dedupe.Partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = p.Total
	s.unique = p.UniqueKeys()
	s.missing = len(p.Missing)
}

// Observe adds one analysis. Diff fields are collected from UnknownPropDiff
// groups only, since every other tag already names its cause.
// Safe for concurrent use.
func (s *Summary) Observe(a dedupe.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[a.Type.Kind]++
	s.keys = append(s.keys, a.Key)
	if a.Resolution.Resolved() {
		s.resolved++
	} else {
		s.unresolved++
	}

	if !a.Type.Is(dedupe.UnknownPropDiff) {
		return
	}
	for field := range a.FieldDiffs {
		if _, skip := s.excluded[field]; !skip {
			s.diffFields[field] = struct{}{}
		}
	}
	for field := range a.PropertyDiffs {
		s.propFields[field] = struct{}{}
	}
}

// Unresolved returns the number of groups that need manual review.
// Safe for concurrent use.
func (s *Summary) Unresolved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unresolved
}

// Snapshot returns a copy of the current totals with sorted lists.
// Safe for concurrent use.
func (s *Summary) Snapshot() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.counts))
	for k, n := range s.counts {
		counts[k.String()] = n
	}

	keys := append([]string{}, s.keys...)
	slices.Sort(keys)

	return Report{
		TotalEvents:                  s.total,
		UniqueInsertIDs:              s.unique,
		DuplicateInsertIDsCount:      len(s.keys),
		MissingInsertIDs:             s.missing,
		Resolved:                     s.resolved,
		Unresolved:                   s.unresolved,
		DupeTypeCounts:               counts,
		DuplicateInsertIDs:           keys,
		AllDiffFields:                sortedSet(s.diffFields),
		AllEventPropertiesDiffFields: sortedSet(s.propFields),
	}
}

func sortedSet(m map[string]struct{}) []string {
	out := slices.Sorted(maps.Keys(m))
	if out == nil {
		return []string{}
	}
	return out
}
