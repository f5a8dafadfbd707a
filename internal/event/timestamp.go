package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the export timestamp format: UTC, no zone, microseconds.
const TimeLayout = "2006-01-02 15:04:05.000000"

// parseLayout accepts any number of fractional digits, including none.
const parseLayout = "2006-01-02 15:04:05.999999999"

// Timestamp is an export timestamp. Optional record fields hold *Timestamp,
// so JSON null decodes to nil.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns a Timestamp for t converted to UTC.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses a timestamp in export format.
func ParseTimestamp(s string) (*Timestamp, error) {
	t, err := time.ParseInLocation(parseLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return &Timestamp{Time: t}, nil
}

// String formats the timestamp in export format.
func (t Timestamp) String() string {
	return t.UTC().Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// CompareTimestamps orders a before b. Unset sorts before any set value.
func CompareTimestamps(a, b *Timestamp) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(b.Time)
	}
}
