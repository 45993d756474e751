package websocket

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"hotboard/core"
	"hotboard/realtime"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	bufferSize   = 256
)

// Option configures the stream handler.
type Option func(*gorillaws.Upgrader)

// WithAllowedOrigin sets which browser origin may open the stream: "*" for
// any, a single origin, or "" for same-origin only. Requests without an
// Origin header come from non-browser clients and are always accepted.
func WithAllowedOrigin(origin string) Option {
	return func(u *gorillaws.Upgrader) { u.CheckOrigin = checkOrigin(origin) }
}

func checkOrigin(allowed string) func(*http.Request) bool {
	switch allowed {
	case "":
		// the upgrader's default same-origin check
		return nil
	case "*":
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.EqualFold(origin, allowed)
	}
}

// Handler returns an http.Handler that upgrades to WebSocket and streams events from the hub.
// Clients may narrow the stream with ?types=term_recorded,view_counted.
// Without WithAllowedOrigin only same-origin browsers may connect.
func Handler(hub *realtime.Hub, logger *slog.Logger, opts ...Option) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{}
	for _, opt := range opts {
		opt(&upgrader)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wanted, err := parseTypes(r.URL.Query().Get("types"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(bufferSize)
		defer hub.Unsubscribe(id)

		// the read side only watches for the peer going away
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if len(wanted) > 0 {
					if _, keep := wanted[ev.Type]; !keep {
						continue
					}
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}

func parseTypes(raw string) (map[core.EventType]struct{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := map[core.EventType]struct{}{}
	for _, name := range strings.Split(raw, ",") {
		typ := core.EventType(strings.TrimSpace(name))
		if typ == "" {
			continue
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("unknown event type %q", typ)
		}
		out[typ] = struct{}{}
	}
	return out, nil
}
