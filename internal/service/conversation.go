// Package service implements the business logic over the stores. The
// ownership guard lives here: store operations check nothing, so every
// entry point that reaches a conversation or message by id authorizes first.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/events"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/internal/store"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	convs  store.ConversationStore
	events *events.Publisher
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(convs store.ConversationStore, pub *events.Publisher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		convs:  convs,
		events: pub,
		logger: log,
	}
}

// Authorize loads the conversation and checks ownership: not-found if the id
// is absent, forbidden if it belongs to someone else. Used by every service
// that addresses a conversation by id.
func (s *ConversationService) Authorize(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return conv, nil
}

// Create creates a conversation owned by userID.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	conv, err := s.convs.Create(ctx, userID, title)
	if err != nil {
		return nil, err
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
	)
	return conv, nil
}

// List returns the caller's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs, err := s.convs.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, nil
}

// Get returns a single conversation after the ownership check.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	return s.Authorize(ctx, userID, conversationID)
}

// Rename updates the conversation title.
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID, title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	if _, err := s.Authorize(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.convs.Rename(ctx, conversationID, title)
}

// Delete removes the conversation and all of its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := s.Authorize(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.convs.Delete(ctx, conversationID); err != nil {
		return err
	}

	s.events.Publish(ctx, &model.ConversationEvent{
		ConversationID: conversationID,
		UserID:         userID,
		Type:           model.EventConversationDeleted,
	})
	s.logger.Info("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
	)
	return nil
}

// IsNotFound reports whether err is the not-found error. Convenience for
// handlers that fold store misses into other statuses.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
