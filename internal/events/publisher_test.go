package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threadline-ai/chat-platform/internal/model"
)

func TestEventSubject(t *testing.T) {
	subject := EventSubject("alice", "conv-1", model.EventMessageAppended)
	assert.Equal(t, "chat.alice.conv-1.message_appended", subject)
}

func TestNilPublisherIsNoOp(t *testing.T) {
	var p *Publisher

	// Must not panic; services publish unconditionally.
	p.Publish(context.Background(), &model.ConversationEvent{
		ConversationID: "conv-1",
		UserID:         "alice",
		Type:           model.EventConversationDeleted,
	})
	assert.NoError(t, p.EnsureStream(context.Background()))
}
