package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/chat-platform/internal/model"
)

func eventNames(events []sseEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}
	return names
}

func TestChatStreamsTokensAndPersists(t *testing.T) {
	ts := newTestServer(t)

	conv, err := ts.convSvc.Create(context.Background(), "alice", "chat")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{
		ConversationID: conv.ID,
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "say something"}},
	})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"token", "token", "message_complete", "done"}, eventNames(events))

	var tok model.TokenEvent
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &tok))
	assert.Equal(t, "streamed ", tok.Token)
	assert.Equal(t, 0, tok.Index)

	var complete model.MessageCompleteEvent
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &complete))
	assert.Equal(t, "streamed reply", complete.Message.Content)
	assert.Equal(t, model.RoleAssistant, complete.Message.Role)

	// The reply is durable.
	list, err := ts.msgSvc.List(context.Background(), "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "streamed reply", list[0].Content)
}

func TestChatStatelessOmitsMessageComplete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "no conversation"}},
	})
	requireStatus(t, rec, http.StatusOK)

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"token", "token", "done"}, eventNames(events))
}

func TestChatForbiddenConversationReturnsStatus(t *testing.T) {
	ts := newTestServer(t)

	conv, err := ts.convSvc.Create(context.Background(), "alice", "private")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "mallory", model.ChatRequest{
		ConversationID: conv.ID,
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})
	// The guard fires before any token, so the stream was never committed
	// and the refusal carries its real status code.
	requireStatus(t, rec, http.StatusForbidden)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "forbidden", body["code"])
}

func TestChatUpstreamFailureBeforeFirstTokenReturnsStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.Tokens = nil
	ts.fake.Err = errors.New("provider down")

	conv, err := ts.convSvc.Create(context.Background(), "alice", "chat")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{
		ConversationID: conv.ID,
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})
	requireStatus(t, rec, http.StatusInternalServerError)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "upstream_failure", body["code"])

	// Nothing was persisted.
	list, err := ts.msgSvc.List(context.Background(), "alice", conv.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatMidStreamFailureEvent(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.Tokens = []string{"partial ", "never done"}
	ts.fake.Err = errors.New("stream reset")
	ts.fake.FailAfter = 1

	conv, err := ts.convSvc.Create(context.Background(), "alice", "chat")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{
		ConversationID: conv.ID,
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})
	// A token already went out, so the stream is committed and the failure
	// arrives in-stream.
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "token", events[0].Event)
	assert.Equal(t, "error", events[1].Event)

	var errEvent model.ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &errEvent))
	assert.Equal(t, "partial_completion", errEvent.Code)
}

func TestRegenerateForbiddenReturnsStatus(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	conv, err := ts.convSvc.Create(ctx, "alice", "private")
	require.NoError(t, err)
	msg, err := ts.msgSvc.Append(ctx, "alice", &model.CreateMessageRequest{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        "question",
	})
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/regenerate", "mallory", model.RegenerateRequest{
		ConversationID: conv.ID,
		Content:        "rewrite",
	})
	requireStatus(t, rec, http.StatusForbidden)

	// The message was not touched.
	list, err := ts.msgSvc.List(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "question", list[0].Content)
	assert.False(t, list[0].IsEdited)
}

func TestRegenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	conv, err := ts.convSvc.Create(ctx, "alice", "chat")
	require.NoError(t, err)
	edited, err := ts.msgSvc.Append(ctx, "alice", &model.CreateMessageRequest{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        "flawed question",
	})
	require.NoError(t, err)
	_, err = ts.msgSvc.Append(ctx, "alice", &model.CreateMessageRequest{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        "stale answer",
	})
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/messages/"+edited.ID+"/regenerate", "alice", model.RegenerateRequest{
		ConversationID: conv.ID,
		Content:        "better question",
	})
	requireStatus(t, rec, http.StatusOK)

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"token", "token", "message_complete", "done"}, eventNames(events))

	list, err := ts.msgSvc.List(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "better question", list[0].Content)
	assert.True(t, list[0].IsEdited)
	assert.Equal(t, "streamed reply", list[1].Content)
}

func TestChatRejectsMalformedRequestBeforeStreaming(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = ts.doJSON(t, http.MethodPost, "/api/v1/chat", "alice", model.ChatRequest{
		Messages: []model.ChatMessage{{Role: model.RoleAssistant, Content: "I go first"}},
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestRegenerateRequiresConversationID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/messages/some-id/regenerate", "alice", model.RegenerateRequest{
		Content: "better question",
	})
	requireStatus(t, rec, http.StatusBadRequest)
}
