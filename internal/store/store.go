// Package store persists conversations and messages in a document database.
//
// Store operations perform no ownership checks; every entry point that can
// reach a mutation by id goes through the service-layer guard first. The one
// referential rule enforced here is that Append rejects messages for a
// conversation that does not exist, so the only path that can remove messages
// without their conversation is the sanctioned cascade in Delete.
package store

import (
	"context"

	"github.com/threadline-ai/chat-platform/internal/model"
)

// ConversationStore holds durable conversation metadata.
type ConversationStore interface {
	// Create inserts a conversation with all timestamps set to now.
	Create(ctx context.Context, userID, title string) (*model.Conversation, error)

	// ListByOwner returns the owner's conversations, most recently active
	// first (LastMessageAt descending). No conversations is not an error.
	ListByOwner(ctx context.Context, userID string) ([]model.Conversation, error)

	// Get returns the conversation or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// Rename updates the title and UpdatedAt. apperr.ErrNotFound if absent.
	Rename(ctx context.Context, id, title string) error

	// Delete removes the conversation and cascades to all of its messages.
	// Deleting an absent id is not an error at this level.
	Delete(ctx context.Context, id string) error

	// TouchLastMessage bumps LastMessageAt and UpdatedAt to now. Called
	// exactly once per message append and by no other path.
	TouchLastMessage(ctx context.Context, id string) error
}

// MessageStore holds durable conversation turns.
type MessageStore interface {
	// Append inserts a message and touches the owning conversation's
	// LastMessageAt, for every role. apperr.ErrNotFound if the conversation
	// does not exist.
	Append(ctx context.Context, conversationID string, role model.Role, content string, fileURLs []string) (*model.Message, error)

	// ListByConversation returns the transcript in ascending CreatedAt
	// order, insertion order breaking ties.
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)

	// Get returns the message or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Message, error)

	// Edit rewrites content, bumps UpdatedAt and sets the edited flag,
	// also when the new content equals the old.
	Edit(ctx context.Context, id, content string) error

	// Delete removes a single message. Absent id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteTailFrom removes every message in the conversation created at
	// or after the anchor's CreatedAt, except the anchor record itself.
	// Same-timestamp successors of an edited turn are purged with the rest.
	DeleteTailFrom(ctx context.Context, conversationID, anchorID string) error
}
