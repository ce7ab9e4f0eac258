package handler

import (
	"net/http"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/middleware"
	"github.com/threadline-ai/chat-platform/internal/storage"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

// UploadHandler handles attachment uploads.
type UploadHandler struct {
	storage storage.ObjectStorage
	logger  *logger.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(st storage.ObjectStorage, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		storage: st,
		logger:  log,
	}
}

// UploadResponse carries the stored object's public URL.
type UploadResponse struct {
	URL string `json:"url"`
}

// Upload handles POST /api/v1/upload
//
// Accepts a single multipart file field named "file", capped at 10 MiB. The
// object key is namespaced by user so uploads never collide across callers.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if h.storage == nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		writeBadRequest(w, "uploads are not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxFileSize+4096)
	if err := r.ParseMultipartForm(storage.MaxFileSize); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeBadRequest(w, "file exceeds maximum size of 10 MiB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > storage.MaxFileSize {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeBadRequest(w, "file exceeds maximum size of 10 MiB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := userID + "/" + uuid.NewString() + path.Ext(header.Filename)
	url, err := h.storage.Upload(ctx, key, file, header.Size, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		h.logger.Error("upload failed",
			zap.String("user_id", userID),
			zap.String("key", key),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store file",
			"code":  "upstream_failure",
		})
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, UploadResponse{URL: url})
}
