// Package model defines data structures for the chat platform.
package model

import (
	"time"
)

// Conversation is a titled, owned container for an ordered sequence of
// messages. UserID is immutable after creation; LastMessageAt is bumped
// exactly once per message append and drives recency ordering.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversationResponse carries the id of a freshly created conversation.
type CreateConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

// RenameConversationRequest is the request to rename a conversation.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// SuccessResponse acknowledges a mutation with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}
