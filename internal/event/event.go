// Package event provides the exported analytics record shared by every
// reconcile package. Field names match the export format exactly.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Record is one exported analytics event.
// Unset values decode to nil and encode back to null.
type Record struct {
	InsertID                *string        `json:"$insert_id"`
	InsertKey               any            `json:"$insert_key"`
	Schema                  any            `json:"$schema"`
	Adid                    *string        `json:"adid"`
	AmplitudeAttributionIDs any            `json:"amplitude_attribution_ids"`
	AmplitudeEventType      any            `json:"amplitude_event_type"`
	AmplitudeID             *int64         `json:"amplitude_id"`
	App                     *int64         `json:"app"`
	City                    *string        `json:"city"`
	ClientEventTime         *Timestamp     `json:"client_event_time"`
	ClientUploadTime        *Timestamp     `json:"client_upload_time"`
	Country                 *string        `json:"country"`
	Data                    map[string]any `json:"data"`
	DataType                *string        `json:"data_type"`
	DeviceBrand             *string        `json:"device_brand"`
	DeviceCarrier           *string        `json:"device_carrier"`
	DeviceFamily            *string        `json:"device_family"`
	DeviceID                *string        `json:"device_id"`
	DeviceManufacturer      *string        `json:"device_manufacturer"`
	DeviceModel             *string        `json:"device_model"`
	DeviceType              *string        `json:"device_type"`
	DMA                     *string        `json:"dma"`
	EventID                 *int64         `json:"event_id"`
	EventProperties         map[string]any `json:"event_properties"`
	EventTime               *Timestamp     `json:"event_time"`
	EventType               *string        `json:"event_type"`
	GlobalUserProperties    any            `json:"global_user_properties"`
	GroupProperties         map[string]any `json:"group_properties"`
	Groups                  map[string]any `json:"groups"`
	IDFA                    *string        `json:"idfa"`
	IPAddress               *string        `json:"ip_address"`
	IsAttributionEvent      any            `json:"is_attribution_event"`
	Language                *string        `json:"language"`
	Library                 *string        `json:"library"`
	LocationLat             *float64       `json:"location_lat"`
	LocationLng             *float64       `json:"location_lng"`
	OSName                  *string        `json:"os_name"`
	OSVersion               *string        `json:"os_version"`
	PartnerID               any            `json:"partner_id"`
	Paying                  any            `json:"paying"`
	Plan                    map[string]any `json:"plan"`
	Platform                *string        `json:"platform"`
	ProcessedTime           *string        `json:"processed_time"`
	Region                  *string        `json:"region"`
	SampleRate              any            `json:"sample_rate"`
	ServerReceivedTime      *Timestamp     `json:"server_received_time"`
	ServerUploadTime        *Timestamp     `json:"server_upload_time"`
	SessionID               *int64         `json:"session_id"`
	SourceID                any            `json:"source_id"`
	StartVersion            any            `json:"start_version"`
	UserCreationTime        any            `json:"user_creation_time"`
	UserID                  *string        `json:"user_id"`
	UserProperties          map[string]any `json:"user_properties"`
	UUID                    *string        `json:"uuid"`
	VersionName             any            `json:"version_name"`
}

// recordAlias strips Record's methods so Unmarshal can delegate to the
// default decoder without recursing.
type recordAlias Record

// UnmarshalJSON decodes a record, keeping numbers inside free-form values as
// json.Number so they survive a round trip unchanged.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var a recordAlias
	if err := dec.Decode(&a); err != nil {
		return err
	}
	*r = Record(a)
	return nil
}

// Parse decodes a single line of an export file.
func Parse(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// Key returns the idempotency key. ok is false when the key is absent or empty.
func (r Record) Key() (key string, ok bool) {
	if r.InsertID == nil || *r.InsertID == "" {
		return "", false
	}
	return *r.InsertID, true
}

// Type returns the event type or "" when unset.
func (r Record) Type() string {
	return deref(r.EventType)
}

// IsUUIDKey reports whether key parses as a UUID. UUID keys are generated by
// client SDKs; server-side senders use structured keys.
func IsUUIDKey(key string) bool {
	return uuid.Validate(key) == nil
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
