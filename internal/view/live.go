package view

import (
	"log/slog"
	"net/http"
	"time"

	"trending-coordinator/internal/trending"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// LiveConfig holds WebSocket keepalive settings.
type LiveConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period; must be less than PongWait
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultLiveConfig returns the default keepalive settings.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 512,
	}
}

// Live handles GET /trending/ws. Every view change is pushed as a JSON text
// frame; the first frame is the current view. Client messages are ignored.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	views, unsubscribe := h.coord.Subscribe()
	defer unsubscribe()

	h.metrics.AddSubscribers(1)
	defer h.metrics.AddSubscribers(-1)
	h.log.Debug("live view connected", slog.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, views, done)

	h.log.Debug("live view disconnected", slog.String("remote", r.RemoteAddr))
}

// readPump drains the connection so control frames (pong, close) are
// processed, and closes done when the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(h.live.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.live.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.live.PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, views <-chan trending.View, done <-chan struct{}) {
	ticker := time.NewTicker(h.live.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-views:
			_ = conn.SetWriteDeadline(time.Now().Add(h.live.WriteWait))
			if !ok {
				// Coordinator disposed.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			b, err := json.Marshal(toResponse(v))
			if err != nil {
				h.log.Error("encode live view failed", slog.String("error", err.Error()))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.live.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
