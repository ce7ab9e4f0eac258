package model

import (
	"time"
)

// EventType classifies a conversation lifecycle event.
type EventType string

const (
	EventMessageAppended     EventType = "message_appended"
	EventConversationDeleted EventType = "conversation_deleted"
	EventTailDeleted         EventType = "tail_deleted"
	EventStreamError         EventType = "stream_error"
)

// ConversationEvent is published to the event stream on lifecycle changes.
// Consumers are downstream (audit, fan-out); the document store remains the
// system of record.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Type           EventType `json:"type"`
	MessageID      string    `json:"message_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
