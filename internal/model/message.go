package model

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn in a conversation. Messages in a conversation form
// a total order by CreatedAt, with store-level insertion order breaking ties.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	FileURLs       []string  `json:"fileUrls,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	IsEdited       bool      `json:"isEdited,omitempty"`
}

// CreateMessageRequest is the request to append a message to a conversation.
type CreateMessageRequest struct {
	ConversationID string   `json:"conversationId"`
	Role           Role     `json:"role"`
	Content        string   `json:"content"`
	FileURLs       []string `json:"fileUrls,omitempty"`
}

// CreateMessageResponse carries the id of an appended message.
type CreateMessageResponse struct {
	MessageID string `json:"messageId"`
}

// EditMessageRequest is the request to rewrite a message's content.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ChatMessage is one turn as sent to or received from the completion provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for a streamed completion. When
// ConversationID is set the durable transcript is used as context and the
// assistant reply is persisted on completion.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// RegenerateRequest is the request to rewrite a user message and stream a
// fresh reply from that point.
type RegenerateRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// TokenEvent is a single streamed completion token.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// MessageCompleteEvent signals that the assistant reply was persisted.
type MessageCompleteEvent struct {
	Message Message `json:"message"`
}

// ErrorEvent is a terminal stream error.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
