package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher defines the REST surface used by the stores and the connection
// manager. It is implemented by *Client and can be replaced in tests.
type Fetcher interface {
	FetchEmailStats(ctx context.Context) (json.RawMessage, error)
	FetchNetworkStats(ctx context.Context) (json.RawMessage, error)
	FetchEmails(ctx context.Context, query PageQuery) (PageResponse[EmailRow], error)
	FetchPackets(ctx context.Context, query PageQuery) (PageResponse[PacketRow], error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// Observer receives the outcome of every request.
type Observer interface {
	ObserveRequest(endpoint string, elapsed time.Duration, err error)
}

// Endpoint paths served by the backend.
const (
	PathEmailStats       = "/api/email-stats"
	PathNetworkStats     = "/api/network-stats"
	PathEmails           = "/api/emails"
	PathNetworkPackets   = "/api/network-packets"
	PathMaliciousPackets = "/api/malicious-packets"
)

const (
	DefaultBaseURL   = "http://localhost:8080"
	defaultUserAgent = "sentinel/0.1"
	requestTimeout   = 5 * time.Second

	// Paging keys can be held down; keep bursts bounded.
	defaultRateLimit = 10
	defaultRateBurst = 10
)

// Client talks to the monitoring backend's REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	observer  Observer
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit bounds requests per second. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(defaultRateLimit, defaultRateBurst),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns a copy of the normalized base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// FetchEmailStats retrieves the email dashboard stats as raw JSON.
func (c *Client) FetchEmailStats(ctx context.Context) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.getRaw(ctx, &url.URL{Path: PathEmailStats})
}

// FetchNetworkStats retrieves the network dashboard stats as raw JSON.
func (c *Client) FetchNetworkStats(ctx context.Context) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.getRaw(ctx, &url.URL{Path: PathNetworkStats})
}

// PageQuery configures paginated table requests.
type PageQuery struct {
	Page          int
	PageSize      int
	MaliciousOnly bool // packets only
}

func (q PageQuery) values() url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	return values
}

// FetchEmails retrieves one page of the email table.
func (c *Client) FetchEmails(ctx context.Context, query PageQuery) (PageResponse[EmailRow], error) {
	if c == nil {
		return PageResponse[EmailRow]{}, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: PathEmails, RawQuery: query.values().Encode()}
	body, err := c.getRaw(ctx, rel)
	if err != nil {
		return PageResponse[EmailRow]{}, err
	}
	page, err := decodePage[EmailRow](body, "emails")
	if err != nil {
		return PageResponse[EmailRow]{}, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return page, nil
}

// FetchPackets retrieves one page of captured flows, optionally only the
// malicious ones.
func (c *Client) FetchPackets(ctx context.Context, query PageQuery) (PageResponse[PacketRow], error) {
	if c == nil {
		return PageResponse[PacketRow]{}, fmt.Errorf("client is nil")
	}
	path := PathNetworkPackets
	if query.MaliciousOnly {
		path = PathMaliciousPackets
	}
	rel := &url.URL{Path: path, RawQuery: query.values().Encode()}
	body, err := c.getRaw(ctx, rel)
	if err != nil {
		return PageResponse[PacketRow]{}, err
	}
	page, err := decodePage[PacketRow](body, "packets")
	if err != nil {
		return PageResponse[PacketRow]{}, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return page, nil
}

func (c *Client) getRaw(ctx context.Context, rel *url.URL) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.doURL(ctx, http.MethodGet, rel)
	if c.observer != nil {
		c.observer.ObserveRequest(rel.Path, time.Since(start), err)
	}
	if err != nil {
		c.logger.Debug("api request failed", "endpoint", rel.Path, "error", err)
		return nil, err
	}
	return body, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &RequestError{
			Endpoint:   rel.Path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("read response: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &RequestError{Endpoint: rel.Path, Err: fmt.Errorf("decode response: invalid JSON")}
	}
	return json.RawMessage(body), nil
}

// ParseBaseURL normalizes a backend address. Bare host:port values get an
// http scheme; path, query and fragment are dropped.
func ParseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("parse base url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
