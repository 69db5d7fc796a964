package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
	"github.com/zhouzirui/voicebot/backend/pkg/utils"
)

// TurnService runs a single turn and reports state transitions.
type TurnService interface {
	Submit(ctx context.Context, sessionID, text string, observer turn.Observer) (*turn.Result, error)
}

// Handler streams turn progress via Server-Sent Events
type Handler struct {
	turnSvc TurnService
}

// New creates a new stream handler
func New(turnSvc TurnService) *Handler {
	return &Handler{turnSvc: turnSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string        `json:"event"`
	SessionID string        `json:"sessionId,omitempty"`
	State     string        `json:"state,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Error     string        `json:"error,omitempty"`
	Code      string        `json:"code,omitempty"`
}

// HandleStreamRequest runs one turn and pushes the user message, every state
// transition, the reply and a final done event to the client as they happen.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	observer := func(ev turn.Event) {
		if ev.Message != nil {
			h.sendSSE(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Message: ev.Message})
			return
		}
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "state",
			SessionID: sessionID,
			State:     string(ev.State),
		})
	}

	result, err := h.turnSvc.Submit(ctx, sessionID, userMessage, observer)
	if err != nil {
		h.sendSSEError(w, flusher, sessionID, err)
		h.sendDone(w, flusher, sessionID)
		log.Printf("[stream] turn failed for session=%s: %v", sessionID, err)
		return nil
	}

	if result.Err != nil {
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     turn.UserMessage(result.Err),
			Code:      "synthesis_failed",
		})
	}

	h.sendDone(w, flusher, sessionID)
	log.Printf("[stream] completed turn for session=%s", sessionID)
	return nil
}

// sendSSE sends a named Server-Sent Event; the event name mirrors response.Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEEvent(w, flusher, response.Event, response)
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, sessionID string, err error) {
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     turn.UserMessage(err),
		Code:      errorCode(err),
	})
}

func (h *Handler) sendDone(w http.ResponseWriter, flusher http.Flusher, sessionID string) {
	h.sendSSE(w, flusher, StreamResponse{Event: "done", SessionID: sessionID, Finished: true})
}

func errorCode(err error) string {
	var turnErr *turn.Error
	switch {
	case errors.Is(err, turn.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, turn.ErrCredentialRequired):
		return "credential_required"
	case errors.Is(err, chatService.ErrSessionNotFound):
		return "session_not_found"
	case errors.As(err, &turnErr):
		return string(turnErr.Kind) + "_failed"
	default:
		return "internal_error"
	}
}
