package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/tidwall/gjson"
)

// Query compiles input and runs it. When the compiled query asks for
// fetchAll, pages are fetched until one comes back short.
func (c *Client) Query(ctx context.Context, entity qbo.EntityName, input any) (*qbo.QueryResult, error) {
	return c.query(ctx, entity, input, false)
}

// QueryAll is Query with fetchAll forced on. Raw query strings cannot be
// continued and return a single page.
func (c *Client) QueryAll(ctx context.Context, entity qbo.EntityName, input any) (*qbo.QueryResult, error) {
	return c.query(ctx, entity, input, true)
}

// Count returns the number of entities matching input.
func (c *Client) Count(ctx context.Context, entity qbo.EntityName, input any) (int, error) {
	err := entity.Validate()
	if err != nil {
		return 0, err
	}

	query, _, err := qbo.CompileCount(string(entity), input)
	if err != nil {
		return 0, err
	}

	result, err := c.queryPage(ctx, entity, query)
	if err != nil {
		return 0, err
	}

	return result.TotalCount, nil
}

func (c *Client) query(ctx context.Context, entity qbo.EntityName, input any, forceAll bool) (*qbo.QueryResult, error) {
	err := entity.Validate()
	if err != nil {
		return nil, err
	}

	query, data, err := qbo.Compile(string(entity), input)
	if err != nil {
		return nil, err
	}

	result, err := c.queryPage(ctx, entity, query)
	if err != nil {
		return nil, err
	}

	if data == nil || !(forceAll || data.WantsFetchAll()) {
		return result, nil
	}

	limit := data.EffectiveLimit()
	next := data.Clone()
	pageRows := len(result.Rows)

	for pages := 1; pageRows == limit; pages++ {
		if pages >= c.maxQueryPages {
			c.logger.Warn("Query page limit reached", map[string]interface{}{
				"entity":    string(entity),
				"pages":     pages,
				"rows":      len(result.Rows),
				"max_pages": c.maxQueryPages,
			})

			break
		}

		next.Offset = qbo.Int(next.EffectiveOffset() + limit)

		query, _, err = qbo.Compile(string(entity), next)
		if err != nil {
			return nil, err
		}

		page, err := c.queryPage(ctx, entity, query)
		if err != nil {
			return nil, err
		}

		pageRows = len(page.Rows)
		mergePage(result, page)
	}

	return result, nil
}

func mergePage(result, page *qbo.QueryResult) {
	result.Rows = append(result.Rows, page.Rows...)
	result.MaxResults += page.MaxResults
	result.TotalCount += page.TotalCount

	if page.Time != "" {
		result.Time = page.Time
	}

	if page.Headers != nil {
		result.Headers = page.Headers
	}
}

func (c *Client) queryPage(ctx context.Context, entity qbo.EntityName, query string) (*qbo.QueryResult, error) {
	resp, err := c.http.Get(ctx, "query", url.Values{"query": {query}})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", entity, err)
	}

	result, err := parseQueryResponse(entity, resp.Body)
	if err != nil {
		return nil, err
	}

	result.Headers = c.passthrough(resp)

	if isCountQuery(query) {
		count := result.TotalCount
		result.Count = &count
	}

	return result, nil
}

func parseQueryResponse(entity qbo.EntityName, body []byte) (*qbo.QueryResult, error) {
	queryResponse := gjson.GetBytes(body, "QueryResponse")
	if !queryResponse.Exists() {
		return nil, fmt.Errorf("%w: no QueryResponse for %s", qbo.ErrUnexpectedResponse, entity)
	}

	result := &qbo.QueryResult{
		Entity:        entity,
		StartPosition: int(queryResponse.Get("startPosition").Int()),
		MaxResults:    int(queryResponse.Get("maxResults").Int()),
		TotalCount:    int(queryResponse.Get("totalCount").Int()),
		Time:          gjson.GetBytes(body, "time").String(),
	}

	for _, row := range queryResponse.Get(string(entity)).Array() {
		result.Rows = append(result.Rows, json.RawMessage(row.Raw))
	}

	return result, nil
}

func isCountQuery(query string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "select count(")
}
