package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/model"
)

// Memory is an in-process implementation of both stores. It backs tests and
// local development without a database; semantics match the Mongo store,
// including the append-time referential check and inclusive tail deletes.
type Memory struct {
	mu    sync.RWMutex
	seq   uint64
	convs map[string]*model.Conversation
	msgs  map[string]*memMessage
}

// memMessage carries the insertion sequence used to break CreatedAt ties.
type memMessage struct {
	model.Message
	seq uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		convs: make(map[string]*model.Conversation),
		msgs:  make(map[string]*memMessage),
	}
}

// Conversations returns the conversation half of the store.
func (m *Memory) Conversations() ConversationStore { return &memoryConversations{m} }

// Messages returns the message half of the store.
func (m *Memory) Messages() MessageStore { return &memoryMessages{m} }

type memoryConversations struct{ *Memory }

var _ ConversationStore = (*memoryConversations)(nil)

func (s *memoryConversations) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	s.convs[conv.ID] = conv
	out := *conv
	return &out, nil
}

func (s *memoryConversations) ListByOwner(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, c := range s.convs {
		if c.UserID == userID {
			convs = append(convs, *c)
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})
	return convs, nil
}

func (s *memoryConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *memoryConversations) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryConversations) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.convs, id)
	for mid, msg := range s.msgs {
		if msg.ConversationID == id {
			delete(s.msgs, mid)
		}
	}
	return nil
}

func (s *memoryConversations) TouchLastMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(id)
}

func (m *Memory) touchLocked(id string) error {
	c, ok := m.convs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	now := time.Now().UTC()
	c.LastMessageAt = now
	c.UpdatedAt = now
	return nil
}

type memoryMessages struct{ *Memory }

var _ MessageStore = (*memoryMessages)(nil)

func (s *memoryMessages) Append(ctx context.Context, conversationID string, role model.Role, content string, fileURLs []string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[conversationID]; !ok {
		return nil, apperr.ErrNotFound
	}
	now := time.Now().UTC()
	s.seq++
	msg := &memMessage{
		Message: model.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
			FileURLs:       fileURLs,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		seq: s.seq,
	}
	s.msgs[msg.ID] = msg
	if err := s.touchLocked(conversationID); err != nil {
		return nil, err
	}
	out := msg.Message
	return &out, nil
}

func (s *memoryMessages) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*memMessage
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	msgs := make([]model.Message, len(out))
	for i, msg := range out {
		msgs[i] = msg.Message
	}
	return msgs, nil
}

func (s *memoryMessages) Get(ctx context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.msgs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := msg.Message
	return &out, nil
}

func (s *memoryMessages) Edit(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	msg.Content = content
	msg.UpdatedAt = time.Now().UTC()
	msg.IsEdited = true
	return nil
}

func (s *memoryMessages) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.msgs, id)
	return nil
}

func (s *memoryMessages) DeleteTailFrom(ctx context.Context, conversationID, anchorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.msgs[anchorID]
	if !ok || anchor.ConversationID != conversationID {
		return apperr.ErrNotFound
	}
	for id, msg := range s.msgs {
		if id == anchorID || msg.ConversationID != conversationID {
			continue
		}
		if !msg.CreatedAt.Before(anchor.CreatedAt) {
			delete(s.msgs, id)
		}
	}
	return nil
}
