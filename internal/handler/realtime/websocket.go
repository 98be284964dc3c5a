package realtime

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Subscriber is the hub side of the connection.
type Subscriber interface {
	Subscribe(userID string) (<-chan realtime.Event, func())
}

// WebSocketHandler 将情绪识别结果实时推送给浏览器
type WebSocketHandler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWebSocketHandler 创建WebSocket处理器。allowedOrigins 为空时只接受同源请求。
func NewWebSocketHandler(hub Subscriber, allowedOrigins []string) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return &WebSocketHandler{hub: hub, upgrader: upgrader, log: logger.Component("realtime")}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/emotions", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string          `json:"type"`
	Data      *realtime.Event `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancelSub := h.hub.Subscribe(userID)
	defer cancelSub()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(cancel, conn)

	h.log.Debug().Str("user_id", userID).Msg("websocket connected")
	if err := h.write(conn, outgoingMessage{Type: "connected", Timestamp: time.Now().UnixMilli()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, outgoingMessage{Type: ev.Type, Data: &ev, Timestamp: ev.At.UnixMilli()}); err != nil {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 只处理控制帧，客户端断开时取消连接上下文
func (h *WebSocketHandler) readLoop(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
