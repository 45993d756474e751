package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	wsadapter "hotboard/adapters/websocket"
	"hotboard/core"
	"hotboard/engine"
	"hotboard/realtime"
)

const maxBodyBytes = 1 << 20

// HTTPObserver receives one call per served request.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup is how often idle client buckets are dropped.
	RateLimitCleanup time.Duration
	// ClearPassword guards the clear and delete routes. When empty those
	// routes answer 500 because the server is not configured for them.
	ClearPassword string
	// TopN is the leaderboard size returned when the caller gives no limit.
	TopN int
	// RealtimePath is where the websocket stream is mounted; defaults to /ws.
	RealtimePath string

	Observer HTTPObserver
	Logger   *slog.Logger
}

type api struct {
	svc  *engine.HotboardService
	opts Options
	log  *slog.Logger
}

// NewMux builds an http.Handler exposing the hot-search, demerit and view
// counter API plus the WebSocket event stream.
// Routes:
//   - GET  {prefix}/hot-searches?limit=30
//   - POST {prefix}/hot-searches          {"term": "..."}
//   - POST {prefix}/hot-searches/clear    {"password": "..."}
//   - POST {prefix}/hot-searches/delete   {"password": "...", "term": "..."}
//   - POST {prefix}/resources/invalid     {"url": "..."}
//   - POST {prefix}/resources/invalid-status {"urls": ["..."]}
//   - GET  {prefix}/views
//   - POST {prefix}/views/{id}
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.HotboardService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.TopN <= 0 {
		opts.TopN = core.DefaultTopN
	}
	if opts.RealtimePath == "" {
		opts.RealtimePath = "/ws"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &api{svc: svc, opts: opts, log: opts.Logger}
	mux := http.NewServeMux()

	route := func(method, path string, h http.HandlerFunc) {
		full := withPrefix(opts.PathPrefix, path)
		mux.Handle(method+" "+full, a.observe(full, h))
	}
	route(http.MethodGet, "/healthz", a.healthCheck)
	route(http.MethodGet, "/hot-searches", a.hotSearches)
	route(http.MethodPost, "/hot-searches", a.recordSearch)
	route(http.MethodPost, "/hot-searches/clear", a.clearSearches)
	route(http.MethodPost, "/hot-searches/delete", a.deleteSearch)
	route(http.MethodPost, "/resources/invalid", a.markInvalid)
	route(http.MethodPost, "/resources/invalid-status", a.invalidStatus)
	route(http.MethodGet, "/views", a.allViews)
	route(http.MethodPost, "/views/{id}", a.countView)

	// WebSocket events; not observed since the recorder cannot hijack
	if hub != nil {
		mux.Handle(http.MethodGet+" "+withPrefix(opts.PathPrefix, opts.RealtimePath), wsadapter.Handler(hub, opts.Logger, wsadapter.WithAllowedOrigin(opts.AllowCORSOrigin)))
	}

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys, withPrefix(opts.PathPrefix, "/healthz"))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)
	}
	return handler
}

// Handlers

// healthCheck pings the backend.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "healthy",
		"backend": a.svc.BackendKind(),
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	code := http.StatusOK
	if err := a.svc.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSONStatus(w, code, status)
}

type hotSearch struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

func (a *api) hotSearches(w http.ResponseWriter, r *http.Request) {
	n := a.opts.TopN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		n = v
	}
	entries, err := a.svc.HotSearches(r.Context(), n)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]hotSearch, len(entries))
	for i, e := range entries {
		out[i] = hotSearch{Term: e.Member, Score: e.Score}
	}
	writeJSON(w, map[string]any{"hotSearches": out})
}

func (a *api) recordSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Term string `json:"term"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := a.svc.RecordSearch(r.Context(), body.Term); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"message": "Search term recorded."})
}

func (a *api) clearSearches(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) || !a.authorizeAdmin(w, body.Password) {
		return
	}
	if err := a.svc.ClearSearches(r.Context()); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"message": "Hot searches cleared."})
}

func (a *api) deleteSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
		Term     string `json:"term"`
	}
	if !decodeBody(w, r, &body) || !a.authorizeAdmin(w, body.Password) {
		return
	}
	if err := a.svc.DeleteSearch(r.Context(), body.Term); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"message": fmt.Sprintf("Hot search term %q deleted.", strings.TrimSpace(body.Term))})
}

func (a *api) markInvalid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := a.svc.MarkInvalid(r.Context(), body.URL); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "Resource marked as invalid."})
}

func (a *api) invalidStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	status, err := a.svc.InvalidStatus(r.Context(), body.URLs)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "invalidStatus": status})
}

func (a *api) allViews(w http.ResponseWriter, r *http.Request) {
	views, err := a.svc.AllViews(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, views)
}

func (a *api) countView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := a.svc.CountView(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"id": strings.TrimSpace(id), "views": n})
}

// authorizeAdmin checks the shared admin password and writes the failure response.
func (a *api) authorizeAdmin(w http.ResponseWriter, password string) bool {
	if a.opts.ClearPassword == "" {
		writeError(w, http.StatusInternalServerError, "not_configured", "password not configured on server", nil)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.opts.ClearPassword)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid_password", "invalid password", nil)
		return false
	}
	return true
}

// writeServiceError maps error kinds to status codes.
func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, core.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", "storage backend unavailable", nil)
	default:
		a.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
	}
}

// Helpers

func (a *api) observe(route string, next http.HandlerFunc) http.Handler {
	if a.opts.Observer == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		a.opts.Observer.ObserveHTTP(route, r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be a JSON object", nil)
		return false
	}
	return true
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
