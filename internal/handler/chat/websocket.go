package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler 页面使用的实时对话通道
type WebSocketHandler struct {
	chatSvc     *chatService.Service
	turnSvc     TurnService
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, turnSvc TurnService) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:     chatSvc,
		turnSvc:     turnSvc,
		readTimeout: wsReadTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接；一个连接上的对话轮次按顺序执行
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, sessionID, "connected", map[string]any{
		"settings": NewSettingsView(session.Settings),
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.sendError(conn, sessionID, "invalid message", "")
			continue
		}

		h.handleMessage(ctx, conn, sessionID, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "turn":
		var payload struct {
			Text string `json:"text"`
		}
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(conn, sessionID, "invalid turn payload", "")
			return
		}
		h.runTurn(ctx, conn, sessionID, payload.Text)

	case "settings":
		var update chat.SettingsUpdate
		if err := decodeData(msg.Data, &update); err != nil {
			h.sendError(conn, sessionID, "invalid settings payload", "")
			return
		}
		settings, err := h.chatSvc.UpdateSettings(ctx, sessionID, update)
		if err != nil {
			h.sendError(conn, sessionID, err.Error(), "settings")
			return
		}
		h.send(conn, sessionID, "settings", NewSettingsView(settings))

	case "clear":
		if err := h.chatSvc.ClearTranscript(ctx, sessionID); err != nil {
			h.sendError(conn, sessionID, err.Error(), "")
			return
		}
		h.send(conn, sessionID, "cleared", nil)

	case "ping":
		h.send(conn, sessionID, "pong", nil)

	default:
		h.sendError(conn, sessionID, "unknown message type: "+msg.Type, "")
	}
}

// runTurn blocks the read loop until the turn finishes, so a connection never
// has two turns in flight. Every turn event also extends the read deadline,
// since pongs are not processed while the loop is blocked.
func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	observer := func(ev turn.Event) {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if ev.Message != nil {
			h.send(conn, sessionID, "message", ev.Message)
			return
		}
		h.send(conn, sessionID, "state", map[string]string{"state": string(ev.State)})
	}

	result, err := h.turnSvc.Submit(ctx, sessionID, text, observer)
	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	if err != nil {
		_, code := TurnErrorStatus(err)
		h.sendError(conn, sessionID, turn.UserMessage(err), code)
		return
	}

	if result.Err != nil {
		h.sendError(conn, sessionID, turn.UserMessage(result.Err), "synthesis_failed")
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, sessionID, msgType string, data interface{}) {
	payload, err := sonic.Marshal(outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[websocket] marshal %s failed: %v", msgType, err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, sessionID, message, code string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message, "code": code})
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return sonic.Unmarshal(raw, v)
}
