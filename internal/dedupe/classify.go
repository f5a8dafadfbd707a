package dedupe

import (
	"fmt"
)

// Verdict accumulates the outcome of the rule cascade. It is a value type:
// every method returns a new Verdict and never mutates the receiver.
type Verdict struct {
	fired    []Kind
	suppress bool
}

// Fire returns v with k appended to the fired tags.
func (v Verdict) Fire(k Kind) Verdict {
	fired := make([]Kind, len(v.fired), len(v.fired)+1)
	copy(fired, v.fired)
	v.fired = append(fired, k)
	return v
}

// SuppressFallback returns v with the equality fallback disabled.
func (v Verdict) SuppressFallback() Verdict {
	v.suppress = true
	return v
}

// Fired returns the tags fired so far, in rule order.
func (v Verdict) Fired() []Kind {
	return append([]Kind(nil), v.fired...)
}

// FallbackSuppressed reports whether a rule has explained the divergence.
func (v Verdict) FallbackSuppressed() bool { return v.suppress }

// Result collapses the verdict: no tags is Unknown, one tag is that tag,
// more is Multi in firing order.
func (v Verdict) Result() DupeType {
	switch len(v.fired) {
	case 0:
		return Single(Unknown)
	case 1:
		return Single(v.fired[0])
	default:
		return Composite(v.fired...)
	}
}

// Rule is one step of the classification cascade. Apply is only called on
// groups of exactly two records.
type Rule interface {
	Name() string
	Apply(g Group, v Verdict) Verdict
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(g Group, v Verdict) Verdict
}

// Name implements Rule.
func (r RuleFunc) Name() string { return r.RuleName }

// Apply implements Rule.
func (r RuleFunc) Apply(g Group, v Verdict) Verdict { return r.Fn(g, v) }

// RuleSet names the event types and property keys the built-in rules look at.
type RuleSet struct {
	// SubmittedEventType and CompletedEventType are the two steps of the
	// workflow whose records were emitted under one key by mistake.
	SubmittedEventType string
	CompletedEventType string

	// SubmittedKeyMarker is replaced by CompletedKeyMarker in the key of
	// the completed record when both are kept.
	SubmittedKeyMarker string
	CompletedKeyMarker string

	DisplayNameProperty string
	CategoryProperty    string
	UnitPriceProperty   string
}

// DefaultRuleSet returns the rule set for the property pre-order workflow.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		SubmittedEventType:  "Property Pre-Order Submitted",
		CompletedEventType:  "Property Pre-Order Completed",
		SubmittedKeyMarker:  "Submitted",
		CompletedKeyMarker:  "Completed",
		DisplayNameProperty: "Property",
		CategoryProperty:    "Drop Type",
		UnitPriceProperty:   "Price per Share",
	}
}

// Validate checks that every name is set.
func (rs RuleSet) Validate() error {
	fields := map[string]string{
		"submitted_event_type":  rs.SubmittedEventType,
		"completed_event_type":  rs.CompletedEventType,
		"submitted_key_marker":  rs.SubmittedKeyMarker,
		"completed_key_marker":  rs.CompletedKeyMarker,
		"display_name_property": rs.DisplayNameProperty,
		"category_property":     rs.CategoryProperty,
		"unit_price_property":   rs.UnitPriceProperty,
	}
	for name, v := range fields {
		if v == "" {
			return fmt.Errorf("rule set: %s is required", name)
		}
	}
	if rs.SubmittedEventType == rs.CompletedEventType {
		return fmt.Errorf("rule set: submitted and completed event types must differ")
	}
	return nil
}

// Classifier runs the rule cascade over duplicate groups. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	rules    RuleSet
	cascade  []Rule
	extra    []Rule
	fallback Rule
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRuleSet overrides the names used by the built-in rules.
func WithRuleSet(rs RuleSet) ClassifierOption {
	return func(c *Classifier) { c.rules = rs }
}

// WithRules appends rules after the built-in ones. The equality fallback
// always runs last.
func WithRules(rules ...Rule) ClassifierOption {
	return func(c *Classifier) { c.extra = append(c.extra, rules...) }
}

// NewClassifier creates a Classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{rules: DefaultRuleSet()}
	for _, opt := range opts {
		opt(c)
	}
	c.cascade = append(builtinRules(c.rules), c.extra...)
	c.fallback = equalityFallback()
	return c
}

// Rules returns the cascade in evaluation order, fallback included.
func (c *Classifier) Rules() []Rule {
	out := append([]Rule(nil), c.cascade...)
	return append(out, c.fallback)
}

// Classify tags a duplicate group. Groups larger than two are TooMany
// without running any rule.
//
// Classify panics if g has fewer than two records; NewGroup and
// GroupRecords never produce such a group.
func (c *Classifier) Classify(g Group) DupeType {
	if g.Len() < 2 {
		panic(fmt.Sprintf("dedupe: classify group %q of size %d", g.key, g.Len()))
	}
	if g.Len() > 2 {
		return Single(TooMany)
	}

	var v Verdict
	for _, r := range c.cascade {
		v = r.Apply(g, v)
	}
	if !v.FallbackSuppressed() {
		v = c.fallback.Apply(g, v)
	}
	return v.Result()
}

var defaultClassifier = NewClassifier()

// Classify tags g with the default rule set.
func Classify(g Group) DupeType {
	return defaultClassifier.Classify(g)
}
