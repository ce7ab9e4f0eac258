package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/middleware"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/internal/service"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

// ChatHandler handles the streamed completion endpoint.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/v1/chat
//
// The response is an SSE stream: `token` events carry generated text as it
// arrives, `message_complete` carries the persisted assistant message (only
// when the request named a conversation), `done` closes a successful stream
// and `error` a failed one. Failures before the first token are returned as
// plain JSON with the mapped status; the stream is only committed once a
// token is ready to send.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages are required")
		return
	}
	if req.Messages[len(req.Messages)-1].Role != model.RoleUser {
		writeBadRequest(w, "last message must have role user")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperr.ErrUpstream.WithMessage("streaming not supported"))
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	streamed := false
	assistantMsg, err := h.service.Stream(ctx, userID, &req, func(token string, index int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !streamed {
			streamed = true
			setSSEHeaders(w)
		}
		return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
			Token: token,
			Index: index,
		})
	})
	if err != nil {
		if !streamed {
			writeError(w, err)
			return
		}
		h.sendEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    apperr.CodeOf(err),
			Message: apperr.PublicMessage(err),
		})
		return
	}

	if !streamed {
		setSSEHeaders(w)
	}
	if assistantMsg != nil {
		h.sendEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
			Message: *assistantMsg,
		})
	}

	h.sendEvent(w, flusher, "done", map[string]bool{"success": true})
}

// Regenerate handles POST /api/v1/messages/{id}/regenerate
//
// Rewrites the addressed user message, discards the turns that followed it
// and streams a fresh reply. Same SSE protocol and error handling as Chat.
func (h *ChatHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")

	var req model.RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		writeBadRequest(w, "conversationId is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperr.ErrUpstream.WithMessage("streaming not supported"))
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	streamed := false
	assistantMsg, err := h.service.EditAndRegenerate(ctx, userID, req.ConversationID, messageID, req.Content, func(token string, index int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !streamed {
			streamed = true
			setSSEHeaders(w)
		}
		return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
			Token: token,
			Index: index,
		})
	})
	if err != nil {
		if !streamed {
			writeError(w, err)
			return
		}
		h.sendEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    apperr.CodeOf(err),
			Message: apperr.PublicMessage(err),
		})
		return
	}

	if !streamed {
		setSSEHeaders(w)
	}
	if assistantMsg != nil {
		h.sendEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
			Message: *assistantMsg,
		})
	}

	h.sendEvent(w, flusher, "done", map[string]bool{"success": true})
}

// setSSEHeaders marks the response as an event stream. Headers stay buffered
// until the first body write, so this is deferred until a token is ready and
// pre-stream failures can still carry a real status code.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// sendEvent writes an event after the stream is committed. There is no way
// to re-report a failed write to the client at that point, so it is logged.
func (h *ChatHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	if err := sendSSEEvent(w, flusher, event, data); err != nil {
		h.logger.Warn("failed to write stream event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
