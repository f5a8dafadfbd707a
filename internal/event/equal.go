package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// VolatileFields are assigned by the platform or the export pipeline and
// legitimately differ between copies of the same logical event.
var VolatileFields = []string{
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
	"start_version",
	"version_name",
}

var volatileSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(VolatileFields))
	for _, f := range VolatileFields {
		m[f] = struct{}{}
	}
	return m
}()

// IsVolatile reports whether field is excluded from record equality.
func IsVolatile(field string) bool {
	_, ok := volatileSet[field]
	return ok
}

// Flatten returns the record as a map of top-level JSON field to decoded value.
// Numbers decode as json.Number.
func (r Record) Flatten() map[string]any {
	data, err := json.Marshal(r)
	if err != nil {
		// Every field type marshals; reaching here means the model is broken.
		panic(fmt.Sprintf("event: marshal record: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out := make(map[string]any)
	if err := dec.Decode(&out); err != nil {
		panic(fmt.Sprintf("event: decode flattened record: %v", err))
	}
	return out
}

// Equal reports whether a and b are the same logical event: every field
// matches except VolatileFields. Maps compare structurally.
func Equal(a, b Record) bool {
	fa, fb := a.Flatten(), b.Flatten()
	for _, k := range unionKeys(fa, fb) {
		if IsVolatile(k) {
			continue
		}
		if !reflect.DeepEqual(fa[k], fb[k]) {
			return false
		}
	}
	return true
}

// SameValue compares two JSON values after normalizing both through
// encoding/json, so 1, int64(1) and json.Number("1") are all equal.
func SameValue(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Clone returns a deep copy of r. Map- and JSON-valued fields are copied;
// pointer fields are shared since records are never written through.
func (r Record) Clone() Record {
	c := r
	c.InsertKey = cloneValue(r.InsertKey)
	c.Schema = cloneValue(r.Schema)
	c.AmplitudeAttributionIDs = cloneValue(r.AmplitudeAttributionIDs)
	c.AmplitudeEventType = cloneValue(r.AmplitudeEventType)
	c.Data = CloneMap(r.Data)
	c.EventProperties = CloneMap(r.EventProperties)
	c.GlobalUserProperties = cloneValue(r.GlobalUserProperties)
	c.GroupProperties = CloneMap(r.GroupProperties)
	c.Groups = CloneMap(r.Groups)
	c.IsAttributionEvent = cloneValue(r.IsAttributionEvent)
	c.PartnerID = cloneValue(r.PartnerID)
	c.Paying = cloneValue(r.Paying)
	c.Plan = CloneMap(r.Plan)
	c.SampleRate = cloneValue(r.SampleRate)
	c.SourceID = cloneValue(r.SourceID)
	c.StartVersion = cloneValue(r.StartVersion)
	c.UserCreationTime = cloneValue(r.UserCreationTime)
	c.UserProperties = CloneMap(r.UserProperties)
	c.VersionName = cloneValue(r.VersionName)
	return c
}

// CloneMap deep-copies a JSON object. nil stays nil so that an absent map
// is still distinguishable from an empty one.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
