package service

import (
	"strings"
	"unicode/utf8"

	"github.com/threadline-ai/chat-platform/internal/apperr"
)

const (
	maxTitleLength   = 256
	maxContentLength = 100_000 // ~100KB
)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.ErrInvalidInput.WithMessage("title is required")
	}
	if len(title) > maxTitleLength {
		return apperr.ErrInvalidInput.WithMessage("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return apperr.ErrInvalidInput.WithMessage("title must be valid UTF-8")
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.ErrInvalidInput.WithMessage("content is required")
	}
	if len(content) > maxContentLength {
		return apperr.ErrInvalidInput.WithMessage("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return apperr.ErrInvalidInput.WithMessage("content must be valid UTF-8")
	}
	return nil
}
