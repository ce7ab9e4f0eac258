package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/chat-platform/internal/model"
)

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodGet, "/api/v1/conversations", "", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestConversationCreateAndFetch(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{Title: "my chat"})
	requireStatus(t, rec, http.StatusCreated)

	var created model.CreateConversationResponse
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ConversationID)

	rec = ts.doJSON(t, http.MethodGet, "/api/v1/conversations/"+created.ConversationID, "alice", nil)
	requireStatus(t, rec, http.StatusOK)

	var conv model.Conversation
	decodeBody(t, rec, &conv)
	assert.Equal(t, "my chat", conv.Title)
	assert.Equal(t, "alice", conv.UserID)
}

func TestConversationCreateEmptyTitle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{Title: ""})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestConversationListScopedToCaller(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.convSvc.Create(ctx, "alice", "mine")
	require.NoError(t, err)
	_, err = ts.convSvc.Create(ctx, "bob", "not mine")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodGet, "/api/v1/conversations", "alice", nil)
	requireStatus(t, rec, http.StatusOK)

	var list []model.Conversation
	decodeBody(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Title)

	// Asking for someone else's listing by query param is refused outright.
	rec = ts.doJSON(t, http.MethodGet, "/api/v1/conversations?userId=bob", "alice", nil)
	requireStatus(t, rec, http.StatusForbidden)
}

func TestConversationAccessControl(t *testing.T) {
	ts := newTestServer(t)

	conv, err := ts.convSvc.Create(context.Background(), "alice", "private")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, "mallory", nil)
	requireStatus(t, rec, http.StatusForbidden)

	rec = ts.doJSON(t, http.MethodGet, "/api/v1/conversations/missing", "alice", nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestConversationRenameAndDelete(t *testing.T) {
	ts := newTestServer(t)

	conv, err := ts.convSvc.Create(context.Background(), "alice", "old")
	require.NoError(t, err)

	rec := ts.doJSON(t, http.MethodPut, "/api/v1/conversations/"+conv.ID, "alice", model.RenameConversationRequest{Title: "new"})
	requireStatus(t, rec, http.StatusOK)

	var ok model.SuccessResponse
	decodeBody(t, rec, &ok)
	assert.True(t, ok.Success)

	rec = ts.doJSON(t, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "alice", nil)
	requireStatus(t, rec, http.StatusOK)

	rec = ts.doJSON(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, "alice", nil)
	requireStatus(t, rec, http.StatusNotFound)
}
