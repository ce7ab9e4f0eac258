package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/events"
	"github.com/threadline-ai/chat-platform/internal/llm"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/internal/store"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

const (
	systemPrompt = "You are a helpful, friendly, and knowledgeable AI assistant. " +
		"Provide clear, accurate, and engaging responses. " +
		"Format your responses using markdown when appropriate."

	// contextWindowSize is a hard cutoff: only the most recent turns are
	// sent to the provider, earlier turns are dropped without summarization.
	contextWindowSize = 20

	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// TokenCallback is called for each generated token. Returning an error
// cancels generation.
type TokenCallback func(token string, index int) error

// ChatService orchestrates completion: it assembles bounded context from the
// transcript, streams the provider's reply to the caller, and persists the
// assistant turn only once the stream completes.
type ChatService struct {
	msgs          store.MessageStore
	conversations *ConversationService
	provider      llm.Client
	model         string
	events        *events.Publisher
	logger        *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(msgs store.MessageStore, convs *ConversationService, provider llm.Client, modelName string, pub *events.Publisher, log *logger.Logger) *ChatService {
	return &ChatService{
		msgs:          msgs,
		conversations: convs,
		provider:      provider,
		model:         modelName,
		events:        pub,
		logger:        log,
	}
}

// Stream generates an assistant reply for req, forwarding tokens to onToken
// as they arrive. When req.ConversationID is set, the durable transcript is
// used as context and the full reply is persisted as an assistant message
// after the stream finishes; the persisted message is returned. Without a
// conversation the completion is stateless and the returned message is nil.
//
// Failure semantics: an error before the first token leaves no state behind.
// A mid-stream error (including caller disconnect) surfaces as a broken
// stream and nothing is persisted; the transcript may then show a user turn
// with no reply, which is accepted rather than rolled back.
func (s *ChatService) Stream(ctx context.Context, userID string, req *model.ChatRequest, onToken TokenCallback) (*model.Message, error) {
	if s.provider == nil {
		return nil, apperr.ErrUpstream.WithMessage("no completion provider configured")
	}
	if len(req.Messages) == 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("messages are required")
	}
	latest := req.Messages[len(req.Messages)-1]
	if latest.Role != model.RoleUser {
		return nil, apperr.ErrInvalidInput.WithMessage("last message must have role user")
	}
	if err := validateContent(latest.Content); err != nil {
		return nil, err
	}

	transcript := req.Messages
	if req.ConversationID != "" {
		if _, err := s.conversations.Authorize(ctx, userID, req.ConversationID); err != nil {
			return nil, err
		}
		durable, err := s.msgs.ListByConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		transcript = make([]model.ChatMessage, 0, len(durable)+1)
		for _, m := range durable {
			transcript = append(transcript, model.ChatMessage{Role: m.Role, Content: m.Content})
		}
		// The just-sent message may or may not already be durable. Append
		// it only when it is not the stored tail, so neither path counts
		// it twice or drops it.
		if n := len(transcript); n == 0 || transcript[n-1].Role != latest.Role || transcript[n-1].Content != latest.Content {
			transcript = append(transcript, latest)
		}
	}

	// Hard sliding window, oldest turns dropped.
	if len(transcript) > contextWindowSize {
		transcript = transcript[len(transcript)-contextWindowSize:]
	}

	chatMessages := make([]llm.ChatMessage, len(transcript))
	for i, m := range transcript {
		chatMessages[i] = llm.ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	start := time.Now()
	forwarded := false
	resp, err := s.provider.CompleteStream(ctx, &llm.CompletionRequest{
		Model:       s.model,
		System:      systemPrompt,
		Messages:    chatMessages,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}, func(token string, index int) error {
		forwarded = true
		return onToken(token, index)
	})
	if err != nil {
		metrics.RecordLLMStream(s.model, "error", time.Since(start).Seconds(), 0, 0)
		s.events.Publish(ctx, &model.ConversationEvent{
			ConversationID: req.ConversationID,
			UserID:         userID,
			Type:           model.EventStreamError,
			Reason:         err.Error(),
		})
		s.logger.Error("completion stream failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Bool("partial", forwarded),
			zap.Error(err),
		)
		if forwarded {
			return nil, apperr.Wrap(apperr.ErrPartialCompletion, err)
		}
		return nil, apperr.Wrap(apperr.ErrUpstream, err)
	}

	metrics.RecordLLMStream(s.model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	if req.ConversationID == "" {
		return nil, nil
	}

	assistant, err := s.msgs.Append(ctx, req.ConversationID, model.RoleAssistant, resp.Content, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err)
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	s.events.Publish(ctx, &model.ConversationEvent{
		ConversationID: req.ConversationID,
		UserID:         userID,
		Type:           model.EventMessageAppended,
		MessageID:      assistant.ID,
	})
	return assistant, nil
}

// EditAndRegenerate rewrites a past user turn, discards everything that
// followed it, and re-generates from the edited point. The three steps are
// not atomic: if regeneration fails after the tail delete, the conversation
// is left with the edited message and no reply, recoverable by re-sending.
func (s *ChatService) EditAndRegenerate(ctx context.Context, userID, conversationID, messageID, content string, onToken TokenCallback) (*model.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if _, err := s.conversations.Authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID {
		return nil, apperr.ErrNotFound
	}
	if msg.Role != model.RoleUser {
		return nil, apperr.ErrInvalidInput.WithMessage("only user messages can be edited")
	}

	if err := s.msgs.Edit(ctx, messageID, content); err != nil {
		return nil, err
	}
	if err := s.msgs.DeleteTailFrom(ctx, conversationID, messageID); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, &model.ConversationEvent{
		ConversationID: conversationID,
		UserID:         userID,
		Type:           model.EventTailDeleted,
		MessageID:      messageID,
	})

	return s.Stream(ctx, userID, &model.ChatRequest{
		ConversationID: conversationID,
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: content}},
	}, onToken)
}
