package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// TokenProvider supplies the bearer token for each call.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Request is one API call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is a []byte or io.Reader, which are
	// sent as-is with ContentType.
	Body        interface{}
	ContentType string
	// Accept defaults to application/json.
	Accept  string
	Headers map[string]string
}

// Response is a completed API call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client sends authenticated requests to one company's API base.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokens       TokenProvider
	minorVersion string
	userAgent    string
	logger       qbo.Logger
	debug        bool
	interceptors *qbo.InterceptorChain
	requestID    func() string
}

// Option configures the client.
type Option func(*Client)

// NewClient creates a client for baseURL. A nil tokens sends no
// Authorization header.
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.ExtendedRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: retryClient,
		tokens:     tokens,
		userAgent:  constants.DefaultUserAgent,
		logger:     qbo.NopLogger{},
		requestID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithLogger sets the logger. Retry attempts are logged through it too.
func WithLogger(logger qbo.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			return
		}

		c.logger = logger
		c.httpClient.Logger = leveledLogger{logger: logger}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig enables retries of 429, 5xx and connection failures.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries

		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithMinorVersion adds the minorversion parameter to every request.
func WithMinorVersion(version string) Option {
	return func(c *Client) {
		c.minorVersion = version
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *qbo.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithRequestIDGenerator replaces the request id source.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// BaseURL returns the company base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req. A non-2xx response, or a 2xx JSON body carrying a fault
// envelope, is returned together with a *qbo.FaultError when the body parses
// as a fault and a *qbo.TransportError otherwise.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	accept := req.Accept
	if accept == "" {
		accept = constants.ContentTypeJSON
	}

	headers := make(http.Header)
	headers.Set(constants.HeaderAccept, accept)
	headers.Set(constants.HeaderUserAgent, c.userAgent)

	if contentType != "" {
		headers.Set(constants.HeaderContentType, contentType)
	}

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting access token: %w", err)
		}

		headers.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	intercepted := &qbo.Request{
		Method:   req.Method,
		Path:     fullURL,
		Headers:  headers,
		Body:     body,
		Metadata: make(map[string]interface{}),
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	resp, err := c.send(ctx, intercepted)

	result := &qbo.Response{Error: err}
	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.Headers = resp.Headers
		result.Body = resp.Body
	}

	if c.debug && resp != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"intuit_tid":  resp.Headers.Get("intuit_tid"),
			"body_size":   len(resp.Body),
		})
	}

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, result)
	if err != nil {
		return resp, err
	}

	if interceptErr != nil {
		return resp, interceptErr
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req *qbo.Request) (*Response, error) {
	var body interface{}
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header = req.Headers

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	return resp, checkResponse(httpResp, respBody)
}

// checkResponse maps failed responses onto the error taxonomy.
func checkResponse(httpResp *http.Response, body []byte) error {
	success := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300
	if success && !hasFault(body) {
		return nil
	}

	if fault, ok := qbo.ParseFault(body); ok {
		return &qbo.FaultError{
			StatusCode: httpResp.StatusCode,
			Type:       fault.Type,
			Errors:     fault.Errors,
			IntuitTID:  httpResp.Header.Get("intuit_tid"),
			Time:       gjson.GetBytes(body, "time").String(),
		}
	}

	if success {
		return nil
	}

	return &qbo.TransportError{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       body,
	}
}

func hasFault(body []byte) bool {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return false
	}

	return gjson.GetBytes(body, "Fault").Exists() || gjson.GetBytes(body, "fault").Exists()
}

func (c *Client) buildURL(req *Request) (string, error) {
	path := strings.TrimPrefix(req.Path, "/")

	u, err := url.Parse(c.baseURL + "/" + path)
	if err != nil {
		return "", fmt.Errorf("parsing request URL: %w", err)
	}

	query := u.Query()

	for key, values := range req.Query {
		for _, value := range values {
			query.Add(key, value)
		}
	}

	if c.minorVersion != "" && query.Get(constants.ParamMinorVersion) == "" {
		query.Set(constants.ParamMinorVersion, c.minorVersion)
	}

	if req.Method == http.MethodPost && query.Get(constants.ParamRequestID) == "" {
		query.Set(constants.ParamRequestID, c.requestID())
	}

	u.RawQuery = query.Encode()

	return u.String(), nil
}

func encodeBody(req *Request) ([]byte, string, error) {
	switch body := req.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return body, valueOr(req.ContentType, constants.ContentTypeJSON), nil
	case io.Reader:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", fmt.Errorf("reading request body: %w", err)
		}

		return data, valueOr(req.ContentType, constants.ContentTypeJSON), nil
	default:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)

		err := enc.Encode(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}

		return bytes.TrimRight(buf.Bytes(), "\n"), constants.ContentTypeJSON, nil
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// leveledLogger adapts qbo.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger qbo.Logger
}

func (l leveledLogger) fields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, l.fields(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, l.fields(keysAndValues))
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, l.fields(keysAndValues))
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, l.fields(keysAndValues))
}
