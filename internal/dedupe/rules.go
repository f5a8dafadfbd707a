package dedupe

import (
	"github.com/graaaaa/reconcile/internal/event"
)

func builtinRules(rs RuleSet) []Rule {
	return []Rule{
		mixedEventTypeRule(rs),
		propertyDivergenceRule(rs),
		schemaIncompatibilityRule(),
	}
}

// mixedEventTypeRule fires when one record is the submitted step and the
// other the completed step of the same workflow. Such pairs are distinct
// events, so their differences are expected.
func mixedEventTypeRule(rs RuleSet) Rule {
	return RuleFunc{
		RuleName: "mixed-event-type",
		Fn: func(g Group, v Verdict) Verdict {
			var submitted, completed bool
			for _, r := range g.records {
				switch r.Type() {
				case rs.SubmittedEventType:
					submitted = true
				case rs.CompletedEventType:
					completed = true
				}
			}
			if submitted && completed {
				return v.Fire(PreOrderDropCompletedMistake).SuppressFallback()
			}
			return v
		},
	}
}

// propertyDivergenceRule explains a server-side re-send whose properties
// were edited before the backfill. UUID keys come from client SDKs where a
// divergence has no known cause, so they are left to the fallback.
func propertyDivergenceRule(rs RuleSet) Rule {
	checks := []struct {
		property string
		kind     Kind
	}{
		{rs.DisplayNameProperty, PropertyNameChange},
		{rs.CategoryProperty, DropTypeChange},
		{rs.UnitPriceProperty, PropertyDropPriceChange},
	}

	return RuleFunc{
		RuleName: "property-divergence",
		Fn: func(g Group, v Verdict) Verdict {
			earlier, later := g.Chronological()
			a, b := earlier.EventProperties, later.EventProperties
			if a == nil || b == nil || event.IsUUIDKey(g.key) {
				return v
			}
			if propsEqual(a, b) {
				return v
			}
			for _, c := range checks {
				if propertyChanged(a, b, c.property) {
					v = v.Fire(c.kind).SuppressFallback()
				}
			}
			return v
		},
	}
}

// schemaIncompatibilityRule fires when exactly one record carries an
// event_properties map. It does not explain the divergence, so the
// fallback still runs.
func schemaIncompatibilityRule() Rule {
	return RuleFunc{
		RuleName: "schema-incompatibility",
		Fn: func(g Group, v Verdict) Verdict {
			a, b := g.First().EventProperties, g.Second().EventProperties
			if (a == nil) != (b == nil) {
				return v.Fire(EventPropsIncompatible)
			}
			return v
		},
	}
}

// equalityFallback tags the pair by record equality when no rule has
// explained the difference.
func equalityFallback() Rule {
	return RuleFunc{
		RuleName: "equality-fallback",
		Fn: func(g Group, v Verdict) Verdict {
			if event.Equal(g.First(), g.Second()) {
				return v.Fire(TrueDuplicate)
			}
			return v.Fire(UnknownPropDiff)
		},
	}
}

// propertyChanged reports whether key is present in both maps with
// different values. A key present on only one side is a rename or a schema
// change, not an edit, and is left to the fallback.
func propertyChanged(a, b map[string]any, key string) bool {
	va, okA := a[key]
	vb, okB := b[key]
	return okA && okB && !event.SameValue(va, vb)
}

func propsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !event.SameValue(va, vb) {
			return false
		}
	}
	return true
}
