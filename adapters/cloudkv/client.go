// Package cloudkv is a backend for managed key-value services that speak the
// Redis command set over HTTPS (Upstash and Vercel KV REST APIs).
//
// Each command is POSTed to the base URL as a JSON array of strings with a
// bearer token; the reply is {"result": ...} or {"error": "..."}.
package cloudkv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hotboard/core"
)

const kind = "cloudkv"

var errMalformedScan = errors.New("malformed SCAN reply")

// Config locates the REST endpoint.
type Config struct {
	URL     string        `json:"url" koanf:"url" env:"KV_REST_API_URL"`
	Token   string        `json:"token" koanf:"token" env:"KV_REST_API_TOKEN"`
	Timeout time.Duration `json:"timeout" koanf:"timeout" env:"HOTBOARD_CLOUDKV_TIMEOUT"`
}

// DefaultConfig returns a config with a sane request timeout.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// Client implements engine.Backend over the REST protocol. It holds no
// connection state beyond the HTTP client's pool.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New validates cfg and builds a client. It does not contact the service.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil, core.NewOpError(kind, "connect", "", core.ErrInvalidArgument,
			errors.New("rest url and token are required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Kind names the backend.
func (c *Client) Kind() string { return kind }

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type reply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// replyError is an error reply from the service for a well-formed request.
type replyError struct {
	status int
	msg    string
}

func (e *replyError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("http status %d", e.status)
	}
	return e.msg
}

// do sends one command and decodes its result into out (which may be nil).
func (c *Client) do(ctx context.Context, op, key string, out any, args ...string) error {
	body, err := json.Marshal(args)
	if err != nil {
		return core.NewOpError(kind, op, key, core.ErrInvalidArgument, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return core.NewOpError(kind, op, key, core.ErrInvalidArgument, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable, err)
	}
	var r reply
	decodeErr := json.Unmarshal(raw, &r)

	switch {
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable,
			&replyError{status: resp.StatusCode, msg: r.Error})
	case decodeErr != nil:
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable,
			fmt.Errorf("decode reply: %w", decodeErr))
	case r.Error != "":
		return core.NewOpError(kind, op, key, core.ReplyKind(r.Error),
			&replyError{status: resp.StatusCode, msg: r.Error})
	case resp.StatusCode >= 400:
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable,
			&replyError{status: resp.StatusCode})
	}

	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return core.NewOpError(kind, op, key, core.ErrBackendUnavailable, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

// Ping checks that the service answers and accepts the token.
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	return c.do(ctx, "ping", "", &pong, "PING")
}
