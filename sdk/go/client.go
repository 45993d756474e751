package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hotboard/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the hotboard HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// RecordSearch counts one search for term.
func (c *Client) RecordSearch(ctx context.Context, term string) error {
	if strings.TrimSpace(term) == "" {
		return ErrEmptyTerm
	}
	return c.post(ctx, "/hot-searches", map[string]string{"term": term}, nil)
}

// HotSearches returns the top entries, highest score first. A limit of zero
// lets the server pick its default.
func (c *Client) HotSearches(ctx context.Context, limit int) ([]HotSearch, error) {
	path := "/hot-searches"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var body struct {
		HotSearches []HotSearch `json:"hotSearches"`
	}
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.HotSearches, nil
}

// ClearSearches empties the leaderboard. It needs the server's admin password.
func (c *Client) ClearSearches(ctx context.Context, password string) error {
	return c.post(ctx, "/hot-searches/clear", map[string]string{"password": password}, nil)
}

// DeleteSearch removes one term. A missing term fails with an error for which IsNotFound is true.
func (c *Client) DeleteSearch(ctx context.Context, password, term string) error {
	if strings.TrimSpace(term) == "" {
		return ErrEmptyTerm
	}
	return c.post(ctx, "/hot-searches/delete", map[string]string{"password": password, "term": term}, nil)
}

// MarkInvalid reports resourceURL as broken.
func (c *Client) MarkInvalid(ctx context.Context, resourceURL string) error {
	if strings.TrimSpace(resourceURL) == "" {
		return ErrEmptyURL
	}
	return c.post(ctx, "/resources/invalid", map[string]string{"url": resourceURL}, nil)
}

// InvalidStatus returns the subset of urls that are considered invalid.
func (c *Client) InvalidStatus(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return nil, ErrEmptyURL
	}
	var body struct {
		InvalidStatus map[string]bool `json:"invalidStatus"`
	}
	if err := c.post(ctx, "/resources/invalid-status", map[string][]string{"urls": urls}, &body); err != nil {
		return nil, err
	}
	if body.InvalidStatus == nil {
		body.InvalidStatus = map[string]bool{}
	}
	return body.InvalidStatus, nil
}

// AllViews returns every view counter keyed by id.
func (c *Client) AllViews(ctx context.Context) (map[string]int64, error) {
	views := map[string]int64{}
	if err := c.get(ctx, "/views", &views); err != nil {
		return nil, err
	}
	return views, nil
}

// CountView adds one view to id and returns the new count.
func (c *Client) CountView(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, ErrEmptyID
	}
	var body struct {
		Views int64 `json:"views"`
	}
	if err := c.post(ctx, "/views/"+url.PathEscape(id), nil, &body); err != nil {
		return 0, err
	}
	return body.Views, nil
}

// Health calls /healthz and returns status + storage check. An unhealthy
// server still yields its status document alongside the error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return hs, &APIError{StatusCode: resp.StatusCode, Code: hs.Status}
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally narrowed to the given types.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		target += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.applyHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
