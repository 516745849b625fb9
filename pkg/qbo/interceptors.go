package qbo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Request is the outgoing API call as seen by interceptors. Path is the full
// request URL. Interceptors may rewrite Headers.
type Request struct {
	Method   string
	Path     string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is what came back. Error is set when the transport failed or the
// body carried a fault.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain runs interceptors in registration order. A nil chain is
// empty.
type InterceptorChain struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
}

func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.before = append(c.before, interceptor)
}

func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.after = append(c.after, interceptor)
}

// Len counts interceptors of both kinds.
func (c *InterceptorChain) Len() int {
	if c == nil {
		return 0
	}

	return len(c.before) + len(c.after)
}

// ExecuteRequestInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	if c == nil {
		return nil
	}

	for i, intercept := range c.before {
		if err := intercept(ctx, req); err != nil {
			return fmt.Errorf("request interceptor %d: %w", i, err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	if c == nil {
		return nil
	}

	for i, intercept := range c.after {
		if err := intercept(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor %d: %w", i, err)
		}
	}

	return nil
}

// FaultLogger logs failed calls with the intuit_tid needed to trace them with
// Intuit support. Successful calls are logged at debug.
func FaultLogger(logger Logger) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method":      req.Method,
			"endpoint":    EndpointLabel(req.Path),
			"status_code": resp.StatusCode,
		}

		if tid := resp.Headers.Get("intuit_tid"); tid != "" {
			fields["intuit_tid"] = tid
		}

		switch {
		case resp.Error != nil:
			fields["error"] = resp.Error.Error()
			logger.Warn("API call failed", fields)
		case resp.StatusCode >= http.StatusBadRequest:
			logger.Warn("API call failed", fields)
		default:
			logger.Debug("API call", fields)
		}

		return nil
	}
}

// RateLimitInterceptor waits on a token bucket. Intuit throttles each realm at
// roughly 500 requests per minute.
func RateLimitInterceptor(requestsPerSecond float64, burst int) RequestInterceptor {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1))

	return func(ctx context.Context, _ *Request) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		return nil
	}
}

// HeaderInterceptor sets fixed headers, overriding the client's own.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header, len(headers))
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// EndpointLabel reduces a request URL to the resource it addresses, such as
// "query", "invoice" or "reports", so metrics stay low-cardinality. Entity ids
// and realm ids are dropped.
func EndpointLabel(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "other"
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "company" && i+2 < len(segments) {
			return strings.ToLower(segments[i+2])
		}
	}

	return "other"
}

const metadataStartTime = "start_time"

// Metrics holds the prometheus collectors fed by the metrics interceptors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	faults   *prometheus.CounterVec
}

// NewMetrics creates the API client collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"method", "endpoint", "status"}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qbo_client_requests_total",
			Help: "Accounting API requests by endpoint and status.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qbo_client_request_duration_seconds",
			Help:    "Accounting API request latency.",
			Buckets: prometheus.DefBuckets,
		}, labels),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qbo_client_faults_total",
			Help: "Accounting API calls that failed or returned a fault.",
		}, []string{"method", "endpoint"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, collector := range m.Collectors() {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	return m, nil
}

// Collectors returns requests, duration and faults, in that order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration, m.faults}
}

func MetricsRequestInterceptor(_ *Metrics) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metadataStartTime] = time.Now()

		return nil
	}
}

func MetricsResponseInterceptor(metrics *Metrics) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		endpoint := EndpointLabel(req.Path)

		status := "error"
		if resp.StatusCode != 0 {
			status = strconv.Itoa(resp.StatusCode)
		}

		metrics.requests.WithLabelValues(req.Method, endpoint, status).Inc()

		if started, ok := req.Metadata[metadataStartTime].(time.Time); ok {
			metrics.duration.WithLabelValues(req.Method, endpoint, status).Observe(time.Since(started).Seconds())
		}

		if resp.Error != nil || resp.StatusCode >= http.StatusBadRequest {
			metrics.faults.WithLabelValues(req.Method, endpoint).Inc()
		}

		return nil
	}
}
