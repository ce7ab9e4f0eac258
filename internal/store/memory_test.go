package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/model"
)

func newTestStore() (ConversationStore, MessageStore) {
	m := NewMemory()
	return m.Conversations(), m.Messages()
}

func TestConversationCreateAndGet(t *testing.T) {
	convs, _ := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "first chat")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "alice", conv.UserID)
	assert.Equal(t, "first chat", conv.Title)
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = convs.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConversationListOrderedByRecency(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	first, err := convs.Create(ctx, "alice", "first")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := convs.Create(ctx, "alice", "second")
	require.NoError(t, err)
	_, err = convs.Create(ctx, "bob", "not alices")
	require.NoError(t, err)

	list, err := convs.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	// A new message in the older conversation moves it to the front.
	time.Sleep(time.Millisecond)
	_, err = msgs.Append(ctx, first.ID, model.RoleUser, "hello", nil)
	require.NoError(t, err)

	list, err = convs.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestConversationRename(t *testing.T) {
	convs, _ := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "old title")
	require.NoError(t, err)

	require.NoError(t, convs.Rename(ctx, conv.ID, "new title"))
	got, err := convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)

	assert.ErrorIs(t, convs.Rename(ctx, "missing", "x"), apperr.ErrNotFound)
}

func TestConversationDeleteCascades(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "doomed")
	require.NoError(t, err)
	other, err := convs.Create(ctx, "alice", "survivor")
	require.NoError(t, err)

	m1, err := msgs.Append(ctx, conv.ID, model.RoleUser, "hi", nil)
	require.NoError(t, err)
	_, err = msgs.Append(ctx, conv.ID, model.RoleAssistant, "hello", nil)
	require.NoError(t, err)
	kept, err := msgs.Append(ctx, other.ID, model.RoleUser, "untouched", nil)
	require.NoError(t, err)

	require.NoError(t, convs.Delete(ctx, conv.ID))

	_, err = convs.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = msgs.Get(ctx, m1.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Messages in other conversations are untouched.
	_, err = msgs.Get(ctx, kept.ID)
	assert.NoError(t, err)

	// Deleting again is a no-op, not an error.
	assert.NoError(t, convs.Delete(ctx, conv.ID))
}

func TestMessageAppendRequiresConversation(t *testing.T) {
	_, msgs := newTestStore()

	_, err := msgs.Append(context.Background(), "missing", model.RoleUser, "orphan", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMessageAppendBumpsLastMessageAt(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "chat")
	require.NoError(t, err)
	before := conv.LastMessageAt

	// Both user and assistant appends bump recency.
	for _, role := range []model.Role{model.RoleUser, model.RoleAssistant} {
		time.Sleep(time.Millisecond)
		_, err = msgs.Append(ctx, conv.ID, role, "turn", nil)
		require.NoError(t, err)

		got, err := convs.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.True(t, got.LastMessageAt.After(before), "append as %s should bump lastMessageAt", role)
		before = got.LastMessageAt
	}
}

func TestMessageListChronological(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "chat")
	require.NoError(t, err)

	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		_, err = msgs.Append(ctx, conv.ID, role, c, nil)
		require.NoError(t, err)
	}

	list, err := msgs.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, c := range contents {
		assert.Equal(t, c, list[i].Content)
	}
}

func TestMessageEditSetsFlag(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "chat")
	require.NoError(t, err)
	msg, err := msgs.Append(ctx, conv.ID, model.RoleUser, "original", nil)
	require.NoError(t, err)

	// Editing to identical content still marks the message edited.
	require.NoError(t, msgs.Edit(ctx, msg.ID, "original"))
	got, err := msgs.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEdited)
	assert.Equal(t, "original", got.Content)

	require.NoError(t, msgs.Edit(ctx, msg.ID, "revised"))
	got, err = msgs.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEdited)
	assert.Equal(t, "revised", got.Content)
}

func TestMessageDeleteTailKeepsAnchor(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "chat")
	require.NoError(t, err)
	other, err := convs.Create(ctx, "alice", "other")
	require.NoError(t, err)

	add := func(cid string, role model.Role, content string) *model.Message {
		time.Sleep(time.Millisecond)
		m, err := msgs.Append(ctx, cid, role, content, nil)
		require.NoError(t, err)
		return m
	}

	before := add(conv.ID, model.RoleUser, "before")
	add(conv.ID, model.RoleAssistant, "reply before")
	anchor := add(conv.ID, model.RoleUser, "anchor")
	add(conv.ID, model.RoleAssistant, "reply after")
	add(conv.ID, model.RoleUser, "after")
	unrelated := add(other.ID, model.RoleUser, "same era, other conversation")

	require.NoError(t, msgs.DeleteTailFrom(ctx, conv.ID, anchor.ID))

	list, err := msgs.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, before.ID, list[0].ID)
	assert.Equal(t, anchor.ID, list[2].ID)

	// Other conversations keep their contemporaneous messages.
	_, err = msgs.Get(ctx, unrelated.ID)
	assert.NoError(t, err)
}

func TestMessageDeleteTailAnchorMustMatchConversation(t *testing.T) {
	convs, msgs := newTestStore()
	ctx := context.Background()

	conv, err := convs.Create(ctx, "alice", "chat")
	require.NoError(t, err)
	other, err := convs.Create(ctx, "alice", "other")
	require.NoError(t, err)
	msg, err := msgs.Append(ctx, other.ID, model.RoleUser, "elsewhere", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, msgs.DeleteTailFrom(ctx, conv.ID, msg.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, msgs.DeleteTailFrom(ctx, conv.ID, "missing"), apperr.ErrNotFound)
}
