package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/graaaaa/reconcile/internal/store"
)

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultClock is used by the simple production API.
var DefaultClock Clock = realClock{}

// ToStaged converts a Line to a store record. Uses DefaultClock for
// IngestedAt.
func ToStaged(l Line) *store.StagedRecord {
	return ToStagedWithClock(l, DefaultClock)
}

// ToStagedWithClock allows deterministic tests by injecting a clock.
func ToStagedWithClock(l Line, clk Clock) *store.StagedRecord {
	return &store.StagedRecord{
		Record:     l.Record,
		Raw:        l.Raw,
		SourceFile: l.File,
		Line:       l.Number,
		DedupeKey:  DedupeKey(l.File, l.Number, l.Raw),
		IngestedAt: clk.Now(),
	}
}

// DedupeKey identifies an export line by position and content, so
// re-ingesting a file is a no-op while identical lines elsewhere are kept.
func DedupeKey(file string, line int, raw []byte) string {
	return SHA256Hex(fmt.Sprintf("%s\n%d\n%s", file, line, raw))
}

// SHA256Hex returns the SHA256 hash of the input string as a hex string.
func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
