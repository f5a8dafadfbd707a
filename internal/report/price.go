package report

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/graaaaa/reconcile/internal/dedupe"
	"github.com/graaaaa/reconcile/internal/event"
)

var decimalCtx = apd.BaseContext.WithPrecision(34)

// PriceDelta returns later minus earlier for the given property as an exact
// decimal string. ok is false when either side is missing or not numeric.
func PriceDelta(earlier, later event.Record, property string) (delta string, ok bool) {
	a, err := decimalProperty(earlier, property)
	if err != nil {
		return "", false
	}
	b, err := decimalProperty(later, property)
	if err != nil {
		return "", false
	}
	var out apd.Decimal
	if _, err := decimalCtx.Sub(&out, b, a); err != nil {
		return "", false
	}
	return out.String(), true
}

func decimalProperty(r event.Record, property string) (*apd.Decimal, error) {
	v, ok := r.EventProperties[property]
	if !ok || v == nil {
		return nil, fmt.Errorf("property %q not set", property)
	}

	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = n
	case float64:
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	default:
		return nil, fmt.Errorf("property %q has non-numeric type %T", property, v)
	}

	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// hasPriceChange reports whether t names a unit price change, alone or as
// part of Multi.
func hasPriceChange(t dedupe.DupeType) bool {
	if t.Is(dedupe.PropertyDropPriceChange) {
		return true
	}
	for _, s := range t.SubTypes {
		if s == dedupe.PropertyDropPriceChange {
			return true
		}
	}
	return false
}
