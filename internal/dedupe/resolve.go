package dedupe

import (
	"fmt"
	"strings"

	"github.com/graaaaa/reconcile/internal/event"
)

// Resolver maps a classified group to its canonical records. It never
// modifies the group; returned records are deep copies.
type Resolver struct {
	rules RuleSet
}

// NewResolver creates a Resolver for the given rule set.
func NewResolver(rs RuleSet) *Resolver {
	return &Resolver{rules: rs}
}

var defaultResolver = NewResolver(DefaultRuleSet())

// Resolve resolves g with the default rule set.
func Resolve(g Group, t DupeType) Resolution {
	return defaultResolver.Resolve(g, t)
}

// Resolve returns the Resolution for g classified as t.
func (r *Resolver) Resolve(g Group, t DupeType) Resolution {
	switch t.Kind {
	case PreOrderDropCompletedMistake:
		return r.splitWorkflowSteps(g, t)
	case PropertyNameChange, DropTypeChange, PropertyDropPriceChange:
		return mergeLaterProperties(g)
	case TrueDuplicate:
		return keepOne(g.Earliest().Clone())
	case Unknown, UnknownPropDiff, TooMany, EventPropsIncompatible, Multi:
		return unresolved(t)
	default:
		panic(fmt.Sprintf("dedupe: resolve unhandled dupe type %v", t.Kind))
	}
}

// splitWorkflowSteps keeps both records: the submitted step unchanged and
// the completed step under a rewritten key.
func (r *Resolver) splitWorkflowSteps(g Group, t DupeType) Resolution {
	var submitted, completed *event.Record
	for i := range g.records {
		rec := &g.records[i]
		switch rec.Type() {
		case r.rules.SubmittedEventType:
			if submitted == nil {
				submitted = rec
			}
		case r.rules.CompletedEventType:
			if completed == nil {
				completed = rec
			}
		}
	}
	if submitted == nil || completed == nil {
		res := unresolved(t)
		res.Warnings = []string{"group does not contain both workflow steps"}
		return res
	}

	kept := completed.Clone()
	var warnings []string
	if key, ok := kept.Key(); ok {
		rewritten := strings.ReplaceAll(key, r.rules.SubmittedKeyMarker, r.rules.CompletedKeyMarker)
		if rewritten == key {
			warnings = append(warnings, fmt.Sprintf(
				"key %q has no %q marker; completed record kept under the same key",
				key, r.rules.SubmittedKeyMarker))
		}
		kept.InsertID = event.StringPtr(rewritten)
	}

	res := keepMany(submitted.Clone(), kept)
	res.Warnings = warnings
	return res
}

// mergeLaterProperties keeps the earlier record's metadata with the later
// record's event_properties.
func mergeLaterProperties(g Group) Resolution {
	earlier, later := g.Chronological()
	merged := earlier.Clone()
	merged.EventProperties = event.CloneMap(later.EventProperties)
	return keepOne(merged)
}
