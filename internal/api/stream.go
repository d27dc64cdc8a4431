package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/flowforge/internal/events"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamRuns транслирует события run по websocket.
// GET /api/v1/runs/stream?run_id=...
//
// Каждое сообщение — events.Envelope в JSON. Без run_id приходят события
// всех run. Клиент ничего не отправляет, кроме pong.
func (h *Handler) StreamRuns(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		Unavailable(w, "event stream is not configured")
		return
	}
	runID := r.URL.Query().Get("run_id")

	// Подписка до upgrade: события после handshake не теряются.
	ch, unsubscribe := h.stream.Subscribe(streamBuffer)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.logger.Debug("stream client connected", "remote_addr", r.RemoteAddr, "run_id", runID)
	defer h.logger.Debug("stream client disconnected", "remote_addr", r.RemoteAddr)

	// Чтение нужно для обработки pong и close.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if runID != "" && ev.Run() != runID {
				continue
			}
			data, err := events.Marshal(ev)
			if err != nil {
				h.logger.Error("marshal stream event", "kind", ev.Kind(), "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			h.reportDrops()
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return

		case <-h.baseCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		}
	}
}

// reportDrops переносит прирост Broadcaster.Dropped в метрику.
func (h *Handler) reportDrops() {
	cur := h.stream.Dropped()
	prev := h.reportedDrops.Swap(cur)
	h.metrics.EventsDroppedAdd(cur - prev)
}
