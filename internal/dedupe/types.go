package dedupe

import (
	"fmt"
	"strings"

	"github.com/graaaaa/reconcile/internal/event"
)

// Kind is the tag of a DupeType.
type Kind int

// DupeType tags. The zero value is not a valid tag.
const (
	PreOrderDropCompletedMistake Kind = iota + 1
	PropertyNameChange
	DropTypeChange
	PropertyDropPriceChange
	TrueDuplicate
	UnknownPropDiff
	Unknown
	TooMany
	Multi
	EventPropsIncompatible
)

var kindNames = map[Kind]string{
	PreOrderDropCompletedMistake: "PreOrderDropCompletedMistake",
	PropertyNameChange:           "PropertyNameChange",
	DropTypeChange:               "DropTypeChange",
	PropertyDropPriceChange:      "PropertyDropPriceChange",
	TrueDuplicate:                "TrueDuplicate",
	UnknownPropDiff:              "UnknownPropDiff",
	Unknown:                      "Unknown",
	TooMany:                      "TooMany",
	Multi:                        "Multi",
	EventPropsIncompatible:       "EventPropsIncompatible",
}

// Kinds lists every tag in declaration order.
func Kinds() []Kind {
	return []Kind{
		PreOrderDropCompletedMistake, PropertyNameChange, DropTypeChange,
		PropertyDropPriceChange, TrueDuplicate, UnknownPropDiff, Unknown,
		TooMany, Multi, EventPropsIncompatible,
	}
}

// String returns the tag name used in reports and output directories.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown dupe type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("invalid dupe type %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DupeType is the classification of one group. SubTypes is set only when
// Kind is Multi and lists the fired tags in rule order.
type DupeType struct {
	Kind     Kind   `json:"type"`
	SubTypes []Kind `json:"sub_types,omitempty"`
}

// Single returns a DupeType with one tag.
func Single(k Kind) DupeType {
	return DupeType{Kind: k}
}

// Composite returns Multi(subs...).
func Composite(subs ...Kind) DupeType {
	return DupeType{Kind: Multi, SubTypes: append([]Kind(nil), subs...)}
}

// String returns the tag name, with sub-types for Multi.
func (t DupeType) String() string {
	if t.Kind != Multi {
		return t.Kind.String()
	}
	names := make([]string, len(t.SubTypes))
	for i, s := range t.SubTypes {
		names[i] = s.String()
	}
	return "Multi(" + strings.Join(names, ", ") + ")"
}

// Is reports whether t has the given tag.
func (t DupeType) Is(k Kind) bool { return t.Kind == k }

// ResolutionKind is the tag of a Resolution.
type ResolutionKind int

// Resolution tags.
const (
	KeepOne ResolutionKind = iota + 1
	KeepMany
	ResolveError
)

// String returns the tag name.
func (k ResolutionKind) String() string {
	switch k {
	case KeepOne:
		return "KeepOne"
	case KeepMany:
		return "KeepMany"
	case ResolveError:
		return "Error"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ResolutionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ResolutionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "KeepOne":
		*k = KeepOne
	case "KeepMany":
		*k = KeepMany
	case "Error":
		*k = ResolveError
	default:
		return fmt.Errorf("unknown resolution %q", text)
	}
	return nil
}

// Resolution is the canonical outcome for a group.
//   - KeepOne: Records has exactly one record.
//   - KeepMany: Records has every record to keep, in output order.
//   - ResolveError: Records is empty and Unresolved holds the DupeType that
//     needs manual review.
type Resolution struct {
	Kind       ResolutionKind `json:"type"`
	Records    []event.Record `json:"records,omitempty"`
	Unresolved *DupeType      `json:"error_type,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Resolved reports whether the resolution produced output records.
func (r Resolution) Resolved() bool {
	return r.Kind == KeepOne || r.Kind == KeepMany
}

func keepOne(r event.Record) Resolution {
	return Resolution{Kind: KeepOne, Records: []event.Record{r}}
}

func keepMany(rs ...event.Record) Resolution {
	return Resolution{Kind: KeepMany, Records: rs}
}

func unresolved(t DupeType) Resolution {
	return Resolution{Kind: ResolveError, Unresolved: &t}
}
