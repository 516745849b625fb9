package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/tidwall/gjson"
)

// ChangeDataCapture returns the entities of the given types changed since
// the given time. The API only looks back 30 days.
func (c *Client) ChangeDataCapture(ctx context.Context, entities []qbo.EntityName, since time.Time) (*qbo.ChangeSet, error) {
	if len(entities) == 0 {
		return nil, &qbo.ValidationError{Field: "entities", Reason: "at least one entity is required"}
	}

	if since.IsZero() {
		return nil, &qbo.ValidationError{Field: "changedSince", Reason: "is required"}
	}

	names := make([]string, 0, len(entities))
	for _, entity := range entities {
		err := entity.Validate()
		if err != nil {
			return nil, err
		}

		names = append(names, string(entity))
	}

	resp, err := c.http.Get(ctx, "cdc", url.Values{
		"entities":     {strings.Join(names, ",")},
		"changedSince": {since.Format(time.RFC3339)},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching changes: %w", err)
	}

	cdc := gjson.GetBytes(resp.Body, "CDCResponse")
	if !cdc.IsArray() {
		return nil, fmt.Errorf("%w: no CDCResponse", qbo.ErrUnexpectedResponse)
	}

	changes := &qbo.ChangeSet{
		Changes: make(map[qbo.EntityName][]json.RawMessage, len(entities)),
		Time:    gjson.GetBytes(resp.Body, "time").String(),
	}

	for _, entity := range entities {
		changes.Changes[entity] = []json.RawMessage{}
	}

	for _, block := range cdc.Array() {
		for _, queryResponse := range block.Get("QueryResponse").Array() {
			for _, entity := range entities {
				for _, row := range queryResponse.Get(string(entity)).Array() {
					changes.Changes[entity] = append(changes.Changes[entity], json.RawMessage(row.Raw))
				}
			}
		}
	}

	return changes, nil
}
