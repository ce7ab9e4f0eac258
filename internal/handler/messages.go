package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline-ai/chat-platform/internal/middleware"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/internal/service"
	"github.com/threadline-ai/chat-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/messages?conversationId=...
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := r.URL.Query().Get("conversationId")

	msgs, err := h.service.List(ctx, userID, conversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// Create handles POST /api/v1/messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	msg, err := h.service.Append(ctx, userID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateMessageResponse{MessageID: msg.ID})
}

// Update handles PUT /api/v1/messages/{id}
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")

	var req model.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := h.service.Edit(ctx, userID, messageID, req.Content); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// Delete handles DELETE /api/v1/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")

	if err := h.service.Delete(ctx, userID, messageID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// DeleteTail handles DELETE /api/v1/messages/{id}/after?conversationId=...
// Removes every message created at or after the anchor, keeping the anchor.
func (h *MessageHandler) DeleteTail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")
	conversationID := r.URL.Query().Get("conversationId")

	if conversationID == "" {
		writeBadRequest(w, "conversationId is required")
		return
	}

	if err := h.service.DeleteTail(ctx, userID, conversationID, messageID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}
