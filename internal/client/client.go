// Package client implements the API primitives every entity operation is
// built on, and the generic per-entity facade.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	qbohttp "github.com/fivetwenty-io/qbo-client/internal/http"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/tidwall/gjson"
)

// Client sends entity, query and report requests for one company.
type Client struct {
	http            *qbohttp.Client
	logger          qbo.Logger
	maxQueryPages   int
	responseHeaders bool
	batchLimit      int
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger qbo.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxQueryPages bounds fetch-all continuation.
func WithMaxQueryPages(pages int) Option {
	return func(c *Client) {
		if pages > 0 {
			c.maxQueryPages = pages
		}
	}
}

// WithResponseHeaders copies qbo.PassthroughHeaders into results.
func WithResponseHeaders(enabled bool) Option {
	return func(c *Client) {
		c.responseHeaders = enabled
	}
}

// WithBatchConcurrency limits how many batch chunks are in flight.
func WithBatchConcurrency(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.batchLimit = limit
		}
	}
}

// New creates a client on top of a company-scoped transport.
func New(httpClient *qbohttp.Client, opts ...Option) *Client {
	client := &Client{
		http:          httpClient,
		logger:        qbo.NopLogger{},
		maxQueryPages: constants.DefaultMaxQueryPages,
		batchLimit:    constants.DefaultConcurrencyLimit,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Entity returns the facade for one entity type.
func (c *Client) Entity(name qbo.EntityName) *EntityClient {
	return &EntityClient{client: c, entity: name}
}

// Create creates an entity from data.
func (c *Client) Create(ctx context.Context, entity qbo.EntityName, data any) (*qbo.EntityResult, error) {
	err := entity.Validate()
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, &qbo.ValidationError{Field: string(entity), Reason: "entity data is required"}
	}

	resp, err := c.http.Post(ctx, entity.Path(), data)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", entity, err)
	}

	return c.entityResult(entity, resp)
}

// Read fetches an entity by id.
func (c *Client) Read(ctx context.Context, entity qbo.EntityName, id string) (*qbo.EntityResult, error) {
	err := entity.Validate()
	if err != nil {
		return nil, err
	}

	if id == "" {
		return nil, idRequired(entity)
	}

	resp, err := c.http.Get(ctx, entity.Path()+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", entity, id, err)
	}

	return c.entityResult(entity, resp)
}

// Update sends a sparse update unless data sets "sparse" itself. Data must
// carry Id and SyncToken.
func (c *Client) Update(ctx context.Context, entity qbo.EntityName, data any) (*qbo.EntityResult, error) {
	err := entity.Validate()
	if err != nil {
		return nil, err
	}

	body, err := toObject(entity, data)
	if err != nil {
		return nil, err
	}

	for _, field := range []string{"Id", "SyncToken"} {
		if value, ok := body[field]; !ok || value == nil || value == "" {
			return nil, &qbo.ValidationError{Field: field, Reason: fmt.Sprintf("%s update requires %s", entity, field)}
		}
	}

	if _, ok := body["sparse"]; !ok {
		body["sparse"] = true
	}

	resp, err := c.http.Post(ctx, entity.Path(), body)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", entity, err)
	}

	return c.entityResult(entity, resp)
}

// Delete deletes an entity. An empty syncToken is looked up with a read.
func (c *Client) Delete(ctx context.Context, entity qbo.EntityName, id, syncToken string) (*qbo.EntityResult, error) {
	if !entity.Deletable() {
		return nil, unsupported(entity, constants.OperationDelete)
	}

	return c.writeOperation(ctx, entity, id, syncToken, url.Values{constants.ParamOperation: {constants.OperationDelete}})
}

// Void voids a transaction. Payments are voided through a sparse update.
func (c *Client) Void(ctx context.Context, entity qbo.EntityName, id, syncToken string) (*qbo.EntityResult, error) {
	if !entity.Voidable() {
		return nil, unsupported(entity, constants.OperationVoid)
	}

	query := url.Values{constants.ParamOperation: {constants.OperationVoid}}
	if entity == qbo.EntityPayment {
		query = url.Values{
			constants.ParamOperation: {constants.OperationUpdate},
			"include":                {constants.OperationVoid},
		}
	}

	return c.writeOperation(ctx, entity, id, syncToken, query)
}

func (c *Client) writeOperation(ctx context.Context, entity qbo.EntityName, id, syncToken string, query url.Values) (*qbo.EntityResult, error) {
	if id == "" {
		return nil, idRequired(entity)
	}

	operation := query.Get(constants.ParamOperation)

	if syncToken == "" {
		current, err := c.Read(ctx, entity, id)
		if err != nil {
			return nil, err
		}

		syncToken = current.SyncToken()
	}

	body := map[string]any{"Id": id, "SyncToken": syncToken}
	if operation == constants.OperationUpdate {
		body["sparse"] = true
	}

	resp, err := c.http.Do(ctx, &qbohttp.Request{
		Method: http.MethodPost,
		Path:   entity.Path(),
		Query:  query,
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", operation, entity, id, err)
	}

	return c.entityResult(entity, resp)
}

// Report runs a report with the given parameters.
func (c *Client) Report(ctx context.Context, report qbo.ReportName, params url.Values) (*qbo.ReportResult, error) {
	if report == "" {
		return nil, &qbo.ValidationError{Field: "report", Reason: "report name is required"}
	}

	resp, err := c.http.Get(ctx, report.Path(), params)
	if err != nil {
		return nil, fmt.Errorf("running report %s: %w", report, err)
	}

	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("%w: report %s body is not JSON", qbo.ErrUnexpectedResponse, report)
	}

	return &qbo.ReportResult{
		Report:  report,
		Raw:     json.RawMessage(resp.Body),
		Headers: c.passthrough(resp),
	}, nil
}

// PDF downloads the printable form of an entity.
func (c *Client) PDF(ctx context.Context, entity qbo.EntityName, id string) ([]byte, error) {
	if !entity.Printable() {
		return nil, unsupported(entity, "pdf")
	}

	if id == "" {
		return nil, idRequired(entity)
	}

	resp, err := c.http.Do(ctx, &qbohttp.Request{
		Method: http.MethodGet,
		Path:   entity.Path() + "/" + url.PathEscape(id) + "/pdf",
		Accept: constants.ContentTypePDF,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s %s pdf: %w", entity, id, err)
	}

	return resp.Body, nil
}

// SendEmail emails an entity. An empty sendTo uses the address on file.
func (c *Client) SendEmail(ctx context.Context, entity qbo.EntityName, id, sendTo string) (*qbo.EntityResult, error) {
	if !entity.Emailable() {
		return nil, unsupported(entity, "send")
	}

	if id == "" {
		return nil, idRequired(entity)
	}

	query := url.Values{}
	if sendTo != "" {
		query.Set("sendTo", sendTo)
	}

	resp, err := c.http.Do(ctx, &qbohttp.Request{
		Method:      http.MethodPost,
		Path:        entity.Path() + "/" + url.PathEscape(id) + "/send",
		Query:       query,
		Body:        []byte{},
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return nil, fmt.Errorf("sending %s %s: %w", entity, id, err)
	}

	return c.entityResult(entity, resp)
}

// entityResult unwraps {"<Entity>": {...}, "time": "..."}.
func (c *Client) entityResult(entity qbo.EntityName, resp *qbohttp.Response) (*qbo.EntityResult, error) {
	payload := gjson.GetBytes(resp.Body, string(entity))
	if !payload.Exists() || !payload.IsObject() {
		return nil, fmt.Errorf("%w: no %s in response", qbo.ErrUnexpectedResponse, entity)
	}

	return &qbo.EntityResult{
		Entity:  entity,
		Raw:     json.RawMessage(payload.Raw),
		Time:    gjson.GetBytes(resp.Body, "time").String(),
		Headers: c.passthrough(resp),
	}, nil
}

func (c *Client) passthrough(resp *qbohttp.Response) map[string]string {
	if !c.responseHeaders || resp == nil {
		return nil
	}

	headers := make(map[string]string, len(qbo.PassthroughHeaders))
	for _, name := range qbo.PassthroughHeaders {
		headers[name] = resp.Headers.Get(name)
	}

	return headers
}

func toObject(entity qbo.EntityName, data any) (map[string]any, error) {
	if data == nil {
		return nil, &qbo.ValidationError{Field: string(entity), Reason: "entity data is required"}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", entity, err)
	}

	var body map[string]any

	err = json.Unmarshal(raw, &body)
	if err != nil || body == nil {
		return nil, &qbo.ValidationError{Field: string(entity), Reason: "entity data must be a JSON object"}
	}

	return body, nil
}

func idRequired(entity qbo.EntityName) error {
	return &qbo.ValidationError{Field: "Id", Reason: fmt.Sprintf("%v for %s", qbo.ErrEntityIDRequired, entity)}
}

func unsupported(entity qbo.EntityName, operation string) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	return &qbo.ValidationError{Field: "entity", Reason: fmt.Sprintf("%s does not support %s", entity, operation)}
}
