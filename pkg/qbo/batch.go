package qbo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Static errors for err113 compliance.
var (
	ErrBatchItemEntity   = errors.New("batch item needs an entity and data, or a query")
	ErrBatchItemNotFound = errors.New("no batch response for item")
)

// BatchOperation is the write operation of a batch item.
type BatchOperation string

// Batch operations.
const (
	BatchCreate BatchOperation = "create"
	BatchUpdate BatchOperation = "update"
	BatchDelete BatchOperation = "delete"
)

// BatchItem is one request of a batch. Either Entity and Data, or Query, is
// set. BID identifies the item in the response and is generated when empty.
type BatchItem struct {
	BID         string
	Operation   BatchOperation
	OptionsData string
	Entity      EntityName
	Data        any
	Query       string
}

// MarshalJSON renders the item with the entity payload under its own name.
func (b BatchItem) MarshalJSON() ([]byte, error) {
	out := map[string]any{"bId": b.BID}

	switch {
	case b.Query != "":
		out["Query"] = b.Query
	case b.Entity != "" && b.Data != nil:
		out[string(b.Entity)] = b.Data

		if b.Operation != "" {
			out["operation"] = b.Operation
		}

		if b.OptionsData != "" {
			out["optionsData"] = b.OptionsData
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrBatchItemEntity, b.BID)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch item %s: %w", b.BID, err)
	}

	return data, nil
}

// BatchItemResponse is the result of one batch item.
type BatchItemResponse struct {
	BID   string
	Fault *Fault
	Raw   json.RawMessage
}

// UnmarshalJSON keeps the raw item for entity lookup.
func (r *BatchItemResponse) UnmarshalJSON(data []byte) error {
	var head struct {
		BID   string `json:"bId"`
		Fault *Fault `json:"Fault"`
	}

	err := json.Unmarshal(data, &head)
	if err != nil {
		return fmt.Errorf("unmarshaling batch item response: %w", err)
	}

	r.BID = head.BID
	r.Fault = head.Fault
	r.Raw = append(json.RawMessage(nil), data...)

	return nil
}

// MarshalJSON returns the raw item.
func (r BatchItemResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}

	return r.Raw, nil
}

// Err returns the item's fault as a *FaultError, or nil.
func (r *BatchItemResponse) Err() error {
	if r.Fault == nil {
		return nil
	}

	return &FaultError{Type: r.Fault.Type, Errors: r.Fault.Errors}
}

// Entity returns the payload stored under name.
func (r *BatchItemResponse) Entity(name EntityName) (json.RawMessage, bool) {
	result := gjson.GetBytes(r.Raw, string(name))
	if !result.Exists() {
		return nil, false
	}

	return json.RawMessage(result.Raw), true
}

// QueryResponse returns the item's QueryResponse object.
func (r *BatchItemResponse) QueryResponse() (json.RawMessage, bool) {
	result := gjson.GetBytes(r.Raw, "QueryResponse")
	if !result.Exists() {
		return nil, false
	}

	return json.RawMessage(result.Raw), true
}

// BatchResponse holds the merged results of a batch, in request order.
type BatchResponse struct {
	Items []BatchItemResponse `json:"BatchItemResponse"`
	Time  string              `json:"time,omitempty"`
}

// Item returns the response for bID.
func (b *BatchResponse) Item(bID string) (*BatchItemResponse, error) {
	for i := range b.Items {
		if b.Items[i].BID == bID {
			return &b.Items[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrBatchItemNotFound, bID)
}

// ChangeSet is the change data capture result: entities changed since a
// point in time, grouped by entity name. Deleted entities carry
// status "Deleted".
type ChangeSet struct {
	Changes map[EntityName][]json.RawMessage
	Time    string
}

// QueryResult is a parsed query response. Rows are the raw entities; pages
// fetched by continuation are concatenated.
type QueryResult struct {
	Entity        EntityName
	Rows          []json.RawMessage
	StartPosition int
	MaxResults    int
	TotalCount    int
	Count         *int
	Time          string
	Headers       map[string]string
}

// DecodeRows decodes the rows of a query result into T.
func DecodeRows[T any](r *QueryResult) ([]T, error) {
	out := make([]T, 0, len(r.Rows))

	for i, row := range r.Rows {
		var item T

		err := json.Unmarshal(row, &item)
		if err != nil {
			return nil, fmt.Errorf("decoding %s row %d: %w", r.Entity, i, err)
		}

		out = append(out, item)
	}

	return out, nil
}

// ParseTime parses an API timestamp such as the response "time" field.
func ParseTime(s string) (time.Time, error) {
	return ChangedEntity{LastUpdated: s}.LastUpdatedTime()
}
