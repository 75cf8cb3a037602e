// Package stream serves a submission over Server-Sent Events so a browser
// widget can show the pending indicator while the remote call runs.
package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatHandler "github.com/nutrigraph/nutribot/backend/internal/handler/chat"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
	chatService "github.com/nutrigraph/nutribot/backend/internal/service/chat"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
	"github.com/nutrigraph/nutribot/backend/pkg/utils"
)

// SSE event names, in the order a submission produces them.
const (
	EventMessage = "message"
	EventPending = "pending"
	EventIdle    = "idle"
	EventEnd     = "end"
	EventError   = "error"
)

const eventBuffer = 32

// Handler manages submissions streamed via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
	log     zerolog.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, log: logger.For("stream")}
}

// StreamResponse is the data payload of every event.
type StreamResponse struct {
	SessionID string              `json:"sessionId"`
	Message   *chat.Message       `json:"message,omitempty"`
	Pending   *bool               `json:"pending,omitempty"`
	Reply     *conversation.Reply `json:"reply,omitempty"`
	Error     string              `json:"error,omitempty"`
	Status    int                 `json:"status,omitempty"`
}

type event struct {
	name string
	data StreamResponse
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")

	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	client, err := h.chatSvc.Client(sessionID)
	if err != nil {
		utils.RespondError(w, chatHandler.ErrorStatus(err), err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan event, eventBuffer)
	push := func(ev event) {
		select {
		case events <- ev:
		default:
			h.log.Warn().Str("session", sessionID).Str("event", ev.name).Msg("dropping sse event, buffer full")
		}
	}
	own := conversation.SurfaceFuncs{
		OnMessage: func(msg chat.Message) {
			push(event{name: EventMessage, data: StreamResponse{SessionID: sessionID, Message: &msg}})
		},
		OnPending: func(pending bool) {
			name := EventIdle
			if pending {
				name = EventPending
			}
			push(event{name: name, data: StreamResponse{SessionID: sessionID, Pending: &pending}})
		},
	}

	type result struct {
		reply conversation.Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := client.SubmitTo(r.Context(), message, own)
		done <- result{reply: reply, err: err}
	}()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev := <-events:
			if err := utils.SendSSEEvent(w, flusher, ev.name, ev.data); err != nil {
				h.log.Debug().Err(err).Str("session", sessionID).Msg("sse client went away")
				return
			}
		case res := <-done:
			h.drain(w, flusher, events)
			if res.err != nil {
				_ = utils.SendSSEEvent(w, flusher, EventError, StreamResponse{
					SessionID: sessionID,
					Error:     res.err.Error(),
					Status:    chatHandler.ErrorStatus(res.err),
				})
				if !errors.Is(res.err, conversation.ErrBusy) {
					h.log.Warn().Err(res.err).Str("session", sessionID).Msg("stream submission rejected")
				}
				return
			}
			_ = utils.SendSSEEvent(w, flusher, EventEnd, StreamResponse{SessionID: sessionID, Reply: &res.reply})
			h.log.Info().
				Str("session", sessionID).
				Bool("fallback", res.reply.Fallback).
				Dur("elapsed", res.reply.Elapsed).
				Msg("stream completed")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// drain writes events that were queued before the submission finished.
func (h *Handler) drain(w http.ResponseWriter, flusher http.Flusher, events <-chan event) {
	for {
		select {
		case ev := <-events:
			if err := utils.SendSSEEvent(w, flusher, ev.name, ev.data); err != nil {
				return
			}
		default:
			return
		}
	}
}
