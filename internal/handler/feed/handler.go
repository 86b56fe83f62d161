package feed

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-blog/backend/internal/feed"
	"github.com/zhouzirui/z-blog/backend/pkg/utils"
)

const writeWait = 10 * time.Second

// Handler 帖子变更推送的HTTP处理器 (WebSocket 与 SSE)
type Handler struct {
	hub       *feed.Hub
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// New 创建推送处理器
func New(hub *feed.Hub, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{
		hub:       hub,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册推送相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/posts/events", h.handleWebSocket)
	r.Get("/posts/stream", h.handleStream)
}

// handleWebSocket 以 JSON 文本帧推送变更事件
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub, err := h.hub.Subscribe()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Clients only listen; reading is needed to notice close frames.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("[feed] websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleStream 以 Server-Sent Events 推送变更事件，并定期发送心跳
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.hub.Subscribe()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	if err := utils.SendSSEEvent(w, flusher, "status", map[string]any{
		"message": "stream established",
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]any{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, event.Type, event); err != nil {
				log.Printf("[feed] sse write failed: %v", err)
				return
			}
		}
	}
}

func (h *Handler) respondUnavailable(w http.ResponseWriter, err error) {
	if errors.Is(err, feed.ErrClosed) {
		utils.RespondError(w, http.StatusServiceUnavailable, "feed unavailable")
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
