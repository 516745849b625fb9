package client

import (
	"context"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// EntityClient runs the primitives for one entity type.
type EntityClient struct {
	client *Client
	entity qbo.EntityName
}

// Name returns the entity the facade is bound to.
func (e *EntityClient) Name() qbo.EntityName {
	return e.entity
}

// Create creates an entity.
func (e *EntityClient) Create(ctx context.Context, data any) (*qbo.EntityResult, error) {
	return e.client.Create(ctx, e.entity, data)
}

// Get reads an entity by id.
func (e *EntityClient) Get(ctx context.Context, id string) (*qbo.EntityResult, error) {
	return e.client.Read(ctx, e.entity, id)
}

// Update sparse-updates an entity.
func (e *EntityClient) Update(ctx context.Context, data any) (*qbo.EntityResult, error) {
	return e.client.Update(ctx, e.entity, data)
}

// Delete deletes an entity.
func (e *EntityClient) Delete(ctx context.Context, id, syncToken string) (*qbo.EntityResult, error) {
	return e.client.Delete(ctx, e.entity, id, syncToken)
}

// Void voids a transaction.
func (e *EntityClient) Void(ctx context.Context, id, syncToken string) (*qbo.EntityResult, error) {
	return e.client.Void(ctx, e.entity, id, syncToken)
}

// Find queries entities; see Client.Query for the accepted input.
func (e *EntityClient) Find(ctx context.Context, input any) (*qbo.QueryResult, error) {
	return e.client.Query(ctx, e.entity, input)
}

// FindAll queries entities, following every page.
func (e *EntityClient) FindAll(ctx context.Context, input any) (*qbo.QueryResult, error) {
	return e.client.QueryAll(ctx, e.entity, input)
}

// Count counts entities.
func (e *EntityClient) Count(ctx context.Context, input any) (int, error) {
	return e.client.Count(ctx, e.entity, input)
}

// PDF downloads the printable form of an entity.
func (e *EntityClient) PDF(ctx context.Context, id string) ([]byte, error) {
	return e.client.PDF(ctx, e.entity, id)
}

// SendEmail emails an entity.
func (e *EntityClient) SendEmail(ctx context.Context, id, sendTo string) (*qbo.EntityResult, error) {
	return e.client.SendEmail(ctx, e.entity, id, sendTo)
}
