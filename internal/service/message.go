package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/events"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/internal/store"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

// MessageService handles message operations.
type MessageService struct {
	msgs          store.MessageStore
	conversations *ConversationService
	events        *events.Publisher
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(msgs store.MessageStore, convs *ConversationService, pub *events.Publisher, log *logger.Logger) *MessageService {
	return &MessageService{
		msgs:          msgs,
		conversations: convs,
		events:        pub,
		logger:        log,
	}
}

// authorizeMessage resolves the message and checks that the caller owns the
// conversation it belongs to.
func (s *MessageService) authorizeMessage(ctx context.Context, userID, messageID string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.conversations.Authorize(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns the conversation transcript in chronological order.
func (s *MessageService) List(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("conversationId is required")
	}
	if _, err := s.conversations.Authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// Append records a new turn in the conversation.
func (s *MessageService) Append(ctx context.Context, userID string, req *model.CreateMessageRequest) (*model.Message, error) {
	if req.ConversationID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("conversationId is required")
	}
	if !req.Role.Valid() {
		return nil, apperr.ErrInvalidInput.WithMessage("role must be user, assistant or system")
	}
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}
	if _, err := s.conversations.Authorize(ctx, userID, req.ConversationID); err != nil {
		return nil, err
	}

	msg, err := s.msgs.Append(ctx, req.ConversationID, req.Role, req.Content, req.FileURLs)
	if err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(req.Role)).Inc()
	s.events.Publish(ctx, &model.ConversationEvent{
		ConversationID: req.ConversationID,
		UserID:         userID,
		Type:           model.EventMessageAppended,
		MessageID:      msg.ID,
	})
	return msg, nil
}

// Edit rewrites a message's content. The edited flag and UpdatedAt are set
// even when the new content equals the old; callers rely on the flag to
// show the "edited" marker.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, content string) error {
	if err := validateContent(content); err != nil {
		return err
	}
	if _, err := s.authorizeMessage(ctx, userID, messageID); err != nil {
		return err
	}
	return s.msgs.Edit(ctx, messageID, content)
}

// Delete removes a single message.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	if _, err := s.authorizeMessage(ctx, userID, messageID); err != nil {
		return err
	}
	return s.msgs.Delete(ctx, messageID)
}

// DeleteTail removes every message created at or after the anchor, keeping
// the anchor itself. Used when an edited turn invalidates what followed it.
func (s *MessageService) DeleteTail(ctx context.Context, userID, conversationID, anchorID string) error {
	if conversationID == "" {
		return apperr.ErrInvalidInput.WithMessage("conversationId is required")
	}
	msg, err := s.authorizeMessage(ctx, userID, anchorID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return apperr.ErrNotFound
	}
	if err := s.msgs.DeleteTailFrom(ctx, conversationID, anchorID); err != nil {
		return err
	}

	s.events.Publish(ctx, &model.ConversationEvent{
		ConversationID: conversationID,
		UserID:         userID,
		Type:           model.EventTailDeleted,
		MessageID:      anchorID,
	})
	s.logger.Info("message tail deleted",
		zap.String("conversation_id", conversationID),
		zap.String("anchor_id", anchorID),
	)
	return nil
}
