// Package client provides a client for the streamscope HTTP query surface.
//
// Every call takes a context and returns the decoded api document. Error
// answers are returned as *Error, which unwraps to the matching sentinel of
// the errors package so callers can test with errors.Is.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/errors"
)

// ErrClientClosed is returned by calls on a closed client.
var ErrClientClosed = errors.New("client is closed")

// Config holds client configuration.
type Config struct {
	// Addr is host:port or a base URL.
	Addr           string
	Token          string
	TLS            bool
	TLSSkipVerify  bool
	RequestTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "localhost:8080",
		RequestTimeout: 30 * time.Second,
	}
}

// Client talks to one streamscope server. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	token   atomic.Pointer[string]
	http    *http.Client
	timeout time.Duration
	closed  atomic.Bool
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base, err := baseURL(cfg.Addr, cfg.TLS)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}
	}

	c := &Client{
		base:    base,
		http:    &http.Client{Transport: transport},
		timeout: cfg.RequestTimeout,
	}
	c.SetToken(cfg.Token)
	return c, nil
}

func baseURL(addr string, useTLS bool) (*url.URL, error) {
	if addr == "" {
		return nil, errors.NewMissingField("addr")
	}
	if !strings.Contains(addr, "://") {
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		addr = scheme + "://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, errors.NewInvalidValue("addr", addr, err.Error())
	}
	if u.Host == "" {
		return nil, errors.NewInvalidValue("addr", addr, "missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// SetToken replaces the bearer token sent on every request.
func (c *Client) SetToken(token string) {
	c.token.Store(&token)
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Close releases idle connections. Later calls fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.http.CloseIdleConnections()
	}
	return nil
}

// IsClosed returns true after Close.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// =============================================================================
// Errors
// =============================================================================

// Error is a non-2xx answer of the server.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("server returned %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code back to the sentinel the server derived it
// from.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return errors.ErrInvalidRequest
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case http.StatusServiceUnavailable:
		return errors.ErrNotRunning
	case http.StatusGatewayTimeout:
		return errors.ErrTimeout
	default:
		return errors.ErrInternal
	}
}

// =============================================================================
// Request/Response
// =============================================================================

// Do sends method path?query and returns the raw body of a 2xx answer.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(api.HeaderRequestID, uuid.NewString())
	if token := *c.token.Load(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %v: %w", method, path, ctx.Err(), errors.ErrTimeout)
		}
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, errors.ErrConnectionFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, RequestID: resp.Header.Get(api.HeaderRequestID)}
		var doc api.ErrorResponse
		if json.Unmarshal(body, &doc) == nil && doc.Error != "" {
			apiErr.Message = doc.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}

	return body, nil
}

func call[T any](ctx context.Context, c *Client, method, path string, query url.Values) (T, error) {
	var v T
	body, err := c.Do(ctx, method, path, query)
	if err != nil {
		return v, err
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// =============================================================================
// Queries
// =============================================================================

// Filter narrows queries. Zero fields do not restrict.
type Filter struct {
	Categories []string
	Min, Max   *float64
	Start, End *int64
}

func (f Filter) encode(q url.Values) {
	if len(f.Categories) > 0 {
		q.Set("category", strings.Join(f.Categories, ","))
	}
	if f.Min != nil {
		q.Set("min", strconv.FormatFloat(*f.Min, 'g', -1, 64))
	}
	if f.Max != nil {
		q.Set("max", strconv.FormatFloat(*f.Max, 'g', -1, 64))
	}
	if f.Start != nil {
		q.Set("start", strconv.FormatInt(*f.Start, 10))
	}
	if f.End != nil {
		q.Set("end", strconv.FormatInt(*f.End, 10))
	}
}

// Health returns the liveness document.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	return call[api.HealthResponse](ctx, c, http.MethodGet, api.PathHealth, nil)
}

// Batch returns the newest count buffered samples, optionally for one
// category.
func (c *Client) Batch(ctx context.Context, count int, category string) (api.BatchResponse, error) {
	q := url.Values{"count": {strconv.Itoa(count)}}
	if category != "" {
		q.Set("category", category)
	}
	return call[api.BatchResponse](ctx, c, http.MethodGet, api.PathBatch, q)
}

// Next returns the synthetic sample following last.
func (c *Client) Next(ctx context.Context, last int64) (api.Sample, error) {
	q := url.Values{"last": {strconv.FormatInt(last, 10)}}
	return call[api.Sample](ctx, c, http.MethodGet, api.PathNext, q)
}

// Generate returns count synthetic samples starting at start, or at the
// server's now when start is nil.
func (c *Client) Generate(ctx context.Context, count int, start *int64) (api.BatchResponse, error) {
	q := url.Values{"count": {strconv.Itoa(count)}}
	if start != nil {
		q.Set("start", strconv.FormatInt(*start, 10))
	}
	return call[api.BatchResponse](ctx, c, http.MethodGet, api.PathGenerate, q)
}

// Aggregate buckets the filtered buffer. A positive widthMs takes
// precedence over period; both empty use the server default.
func (c *Client) Aggregate(ctx context.Context, f Filter, period string, widthMs int64) (api.AggregateResponse, error) {
	q := url.Values{}
	f.encode(q)
	switch {
	case widthMs > 0:
		q.Set("width", strconv.FormatInt(widthMs, 10))
	case period != "":
		q.Set("period", period)
	}
	return call[api.AggregateResponse](ctx, c, http.MethodGet, api.PathAggregate, q)
}

// Window returns the virtualization window at the given scroll offset.
func (c *Client) Window(ctx context.Context, offset float64) (api.WindowResponse, error) {
	q := url.Values{"offset": {strconv.FormatFloat(offset, 'g', -1, 64)}}
	return call[api.WindowResponse](ctx, c, http.MethodGet, api.PathWindow, q)
}

// Frame returns the latest rendered frame.
func (c *Client) Frame(ctx context.Context) (api.FrameResponse, error) {
	return call[api.FrameResponse](ctx, c, http.MethodGet, api.PathFrame, nil)
}

// Metrics returns the latest performance snapshot.
func (c *Client) Metrics(ctx context.Context) (api.MetricsSnapshot, error) {
	return call[api.MetricsSnapshot](ctx, c, http.MethodGet, api.PathMetrics, nil)
}

// Categories returns the most frequent recent categories.
func (c *Client) Categories(ctx context.Context) (api.CategoriesResponse, error) {
	return call[api.CategoriesResponse](ctx, c, http.MethodGet, api.PathCategories, nil)
}

// Stats returns engine statistics.
func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	return call[api.StatsResponse](ctx, c, http.MethodGet, api.PathStats, nil)
}

// Exports lists export files matching pattern. An empty pattern lists all.
func (c *Client) Exports(ctx context.Context, pattern string) (api.ExportsResponse, error) {
	q := url.Values{}
	if pattern != "" {
		q.Set("pattern", pattern)
	}
	return call[api.ExportsResponse](ctx, c, http.MethodGet, api.PathExports, q)
}

// =============================================================================
// Commands
// =============================================================================

// View changes the presentation. Empty Mode keeps the mode; nil Categories
// keeps the filter and an empty non-nil slice clears it.
type View struct {
	Mode       string
	Categories []string
}

// SetView applies v and returns the view now in effect.
func (c *Client) SetView(ctx context.Context, v View) (api.ViewResponse, error) {
	q := url.Values{}
	if v.Mode != "" {
		q.Set("mode", v.Mode)
	}
	if v.Categories != nil {
		q.Set("category", strings.Join(v.Categories, ","))
	}
	return call[api.ViewResponse](ctx, c, http.MethodPost, api.PathView, q)
}

// ExportRequest selects what to export. Kind is samples or buckets;
// Period only applies to buckets.
type ExportRequest struct {
	Kind   string
	Format string
	Period string
	Filter Filter
}

// Export writes a snapshot export on the server.
func (c *Client) Export(ctx context.Context, r ExportRequest) (api.ExportResult, error) {
	q := url.Values{}
	r.Filter.encode(q)
	if r.Kind != "" {
		q.Set("kind", r.Kind)
	}
	if r.Format != "" {
		q.Set("format", r.Format)
	}
	if r.Period != "" {
		q.Set("period", r.Period)
	}
	return call[api.ExportResult](ctx, c, http.MethodPost, api.PathExport, q)
}

// Reset empties the server buffer.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, api.PathReset, nil)
	return err
}

// =============================================================================
// Follow
// =============================================================================

// Follow polls the newest count samples every interval and calls fn with
// those newer than any seen before, oldest first. It returns when ctx is
// done; errors other than cancellation end the loop.
func (c *Client) Follow(ctx context.Context, interval time.Duration, count int, category string, fn func([]api.Sample)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := int64(-1 << 63)
	for {
		resp, err := c.Batch(ctx, count, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		fresh := newerThan(resp.Samples, last)
		if len(fresh) > 0 {
			last = fresh[len(fresh)-1].TimestampMs
			fn(fresh)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// newerThan returns the suffix of samples after timestamp last. Samples
// are oldest first.
func newerThan(samples []api.Sample, last int64) []api.Sample {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].TimestampMs <= last {
			return samples[i+1:]
		}
	}
	return samples
}
