package qbo

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// PassthroughHeaders are the response headers copied into results when
// Config.ResponseHeaders is set.
var PassthroughHeaders = []string{"intuit_tid", "server", "qbo-version", "expires", "date"}

// EntityResult is a single entity returned by a read or write.
type EntityResult struct {
	Entity  EntityName
	Raw     json.RawMessage
	Time    string
	Headers map[string]string
}

// ID returns the entity's Id.
func (r *EntityResult) ID() string {
	return gjson.GetBytes(r.Raw, "Id").String()
}

// SyncToken returns the entity's SyncToken.
func (r *EntityResult) SyncToken() string {
	return gjson.GetBytes(r.Raw, "SyncToken").String()
}

// Get returns a field of the entity by gjson path, e.g. "CustomerRef.value".
func (r *EntityResult) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Decode unmarshals the entity into v.
func (r *EntityResult) Decode(v any) error {
	err := json.Unmarshal(r.Raw, v)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", r.Entity, err)
	}

	return nil
}

// ReportResult is a report body.
type ReportResult struct {
	Report  ReportName
	Raw     json.RawMessage
	Headers map[string]string
}

// Name returns the report's header name.
func (r *ReportResult) Name() string {
	return gjson.GetBytes(r.Raw, "Header.ReportName").String()
}

// EntityRef points at another entity.
type EntityRef struct {
	Type  EntityName `json:"type"`
	Value string     `json:"value"`
}

// AttachableRef links an uploaded file to an entity.
type AttachableRef struct {
	EntityRef     EntityRef `json:"EntityRef"`
	IncludeOnSend bool      `json:"IncludeOnSend,omitempty"`
}
