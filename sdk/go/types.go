package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HotSearch is one leaderboard entry as served by the API.
type HotSearch struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status  string         `json:"status"`
	Backend string         `json:"backend"`
	Checks  map[string]any `json:"checks"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsUnavailable reports whether the server said its storage backend is down.
func IsUnavailable(err error) bool { return hasStatus(err, http.StatusServiceUnavailable) }

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

var (
	// ErrEmptyTerm is returned when a search term is blank.
	ErrEmptyTerm = errors.New("search term is required")
	// ErrEmptyURL is returned when a resource url is blank.
	ErrEmptyURL = errors.New("resource url is required")
	// ErrEmptyID is returned when a view counter id is blank.
	ErrEmptyID = errors.New("counter id is required")
)
