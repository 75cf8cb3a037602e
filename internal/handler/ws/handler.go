// Package ws exposes a conversation over a WebSocket so the widget gets
// pending and message updates pushed as they happen.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nutrigraph/nutribot/backend/internal/logger"
	chatService "github.com/nutrigraph/nutribot/backend/internal/service/chat"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
	"github.com/nutrigraph/nutribot/backend/pkg/utils"
)

// Frame types.
const (
	TypeText      = "text"
	TypeConnected = "connected"
	TypeMessage   = "message"
	TypePending   = "pending"
	TypeError     = "error"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler WebSocket会话处理器
type Handler struct {
	chatSvc  *chatService.Service
	conns    *ConnectionManager
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New 创建WebSocket处理器。checkOrigin 为 nil 时接受所有来源。
func New(chatSvc *chatService.Service, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		chatSvc: chatSvc,
		conns:   NewConnectionManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.For("websocket"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// Connections exposes the registry so the server can close peers on shutdown.
func (h *Handler) Connections() *ConnectionManager {
	return h.conns
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	client, err := h.chatSvc.Client(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("upgrade failed")
		return
	}

	p := newPeer(sessionID, conn)
	h.conns.add(p)
	defer func() {
		h.conns.remove(p)
		_ = p.close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go h.pingLoop(ctx, p)

	// Subscribe before the snapshot so nothing recorded in between is lost.
	// Holding the write lock keeps callbacks behind the connected frame; the
	// browser drops messages it already has by ID.
	p.mu.Lock()
	unsubscribe := client.Subscribe(p)
	err = p.write(TypeConnected, map[string]any{
		"persona":    session.PersonaID,
		"pending":    client.Pending(),
		"transcript": client.Transcript(),
	})
	p.mu.Unlock()
	defer unsubscribe()
	if err != nil {
		return
	}

	h.log.Info().Str("session", sessionID).Msg("connection opened")
	defer h.log.Info().Str("session", sessionID).Msg("connection closed")

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("session", sessionID).Msg("read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			_ = p.send(TypeError, map[string]string{"message": "session mismatch"})
			continue
		}
		h.handleMessage(ctx, p, client, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, p *peer, client *conversation.Client, msg *inboundMessage) {
	switch msg.Type {
	case TypeText:
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			_ = p.send(TypeError, map[string]string{"message": "invalid text payload"})
			return
		}
		// Submit runs off the read loop so a second message can queue.
		go h.submit(ctx, p, client, text.Text)
	default:
		_ = p.send(TypeError, map[string]string{"message": "unsupported message type: " + msg.Type})
	}
}

func (h *Handler) submit(ctx context.Context, p *peer, client *conversation.Client, text string) {
	_, err := client.Submit(ctx, text)
	switch {
	case err == nil, errors.Is(err, conversation.ErrEmptyInput):
	case errors.Is(err, context.Canceled):
	default:
		h.log.Warn().Err(err).Str("session", p.sessionID).Msg("submission rejected")
		_ = p.send(TypeError, map[string]string{"message": err.Error()})
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}
