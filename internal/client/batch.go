package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"golang.org/x/sync/errgroup"
)

// Batch sends items in chunks of constants.MaxBatchItems. Chunks run
// concurrently and their responses are merged in input order. Items
// without a BID are numbered "bid1", "bid2", and so on by position.
//
// A fault on one item does not fail the batch; check each item's Err.
func (c *Client) Batch(ctx context.Context, items []qbo.BatchItem) (*qbo.BatchResponse, error) {
	prepared, err := prepareBatch(items)
	if err != nil {
		return nil, err
	}

	chunks := chunkBatch(prepared, constants.MaxBatchItems)
	responses := make([]qbo.BatchResponse, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.batchLimit)

	for i, chunk := range chunks {
		group.Go(func() error {
			resp, err := c.http.Post(groupCtx, "batch", map[string]any{"BatchItemRequest": chunk})
			if err != nil {
				return fmt.Errorf("sending batch chunk %d: %w", i, err)
			}

			err = json.Unmarshal(resp.Body, &responses[i])
			if err != nil {
				return fmt.Errorf("%w: batch chunk %d: %w", qbo.ErrUnexpectedResponse, i, err)
			}

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	merged := &qbo.BatchResponse{Items: make([]qbo.BatchItemResponse, 0, len(prepared))}
	for _, resp := range responses {
		merged.Items = append(merged.Items, resp.Items...)

		if resp.Time != "" {
			merged.Time = resp.Time
		}
	}

	c.logger.Debug("Batch completed", map[string]interface{}{
		"items":  len(prepared),
		"chunks": len(chunks),
	})

	return merged, nil
}

func prepareBatch(items []qbo.BatchItem) ([]qbo.BatchItem, error) {
	if len(items) == 0 {
		return nil, &qbo.ValidationError{Field: "items", Reason: "batch needs at least one item"}
	}

	prepared := make([]qbo.BatchItem, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		if item.BID == "" {
			item.BID = "bid" + strconv.Itoa(i+1)
		}

		if _, dup := seen[item.BID]; dup {
			return nil, &qbo.ValidationError{Field: "bId", Reason: fmt.Sprintf("duplicate batch id %q", item.BID)}
		}

		if item.Query == "" {
			err := item.Entity.Validate()
			if err != nil {
				return nil, err
			}

			if item.Data == nil {
				return nil, &qbo.ValidationError{Field: item.BID, Reason: qbo.ErrBatchItemEntity.Error()}
			}
		}

		seen[item.BID] = struct{}{}
		prepared[i] = item
	}

	return prepared, nil
}

func chunkBatch(items []qbo.BatchItem, size int) [][]qbo.BatchItem {
	chunks := make([][]qbo.BatchItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}

	return chunks
}
