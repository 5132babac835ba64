package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessage(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)

	msg, err := f.messageStore.CreateMessage(f.ctx, MessageCreateInput{
		ChatID:      chat.ID,
		Sender:      alice.Username,
		Content:     "hello",
		Attachments: []Attachment{{URL: "https://example.com/a.png", Name: "a.png", Type: "image/png", Size: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, msg.Status())
	require.Len(t, msg.DeliveredTo, 1)
	assert.Equal(t, alice.Username, msg.DeliveredTo[0].Username)

	stored, err := f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "hello", stored.Content)
	assert.Equal(t, msg.Attachments, stored.Attachments)
	assert.Equal(t, alice.Username, stored.Sender)
	assert.Empty(t, stored.ReadBy)
}

func TestGetChatMessages(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	for i := 1; i <= 5; i++ {
		f.message(chat, alice, fmt.Sprintf("m%d", i))
	}

	t.Run("newest page in chronological order", func(t *testing.T) {
		messages, total, err := f.messageStore.GetChatMessages(f.ctx, chat.ID, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, messages, 2)
		assert.Equal(t, "m4", messages[0].Content)
		assert.Equal(t, "m5", messages[1].Content)
	})

	t.Run("older page", func(t *testing.T) {
		messages, _, err := f.messageStore.GetChatMessages(f.ctx, chat.ID, 4, 2)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "m1", messages[0].Content)
	})

	t.Run("empty chat", func(t *testing.T) {
		messages, total, err := f.messageStore.GetChatMessages(f.ctx, "other", 0, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, messages)
	})
}

func TestAddReceipt(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "hello")

	added, err := f.messageStore.AddReceipt(f.ctx, msg.ID, bob.Username, Delivered, time.Now())
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.messageStore.AddReceipt(f.ctx, msg.ID, bob.Username, Delivered, time.Now())
	require.NoError(t, err)
	assert.False(t, added, "a receipt is written once")

	stored, err := f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Status())

	added, err = f.messageStore.AddReceipt(f.ctx, msg.ID, bob.Username, Read, time.Now())
	require.NoError(t, err)
	assert.True(t, added)

	stored, err = f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, stored.Status())
	require.Len(t, stored.ReadBy, 1)
	assert.Equal(t, bob.Username, stored.ReadBy[0].Username)
}

func TestToggleReaction(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "hello")

	added, err := f.messageStore.ToggleReaction(f.ctx, msg.ID, bob.Username, "👍")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = f.messageStore.ToggleReaction(f.ctx, msg.ID, alice.Username, "👍")
	require.NoError(t, err)

	reactions, err := f.messageStore.Reactions(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []Reaction{{Username: bob.Username, Emoji: "👍"}, {Username: alice.Username, Emoji: "👍"}}, reactions)

	added, err = f.messageStore.ToggleReaction(f.ctx, msg.ID, bob.Username, "👍")
	require.NoError(t, err)
	assert.False(t, added)

	reactions, err = f.messageStore.Reactions(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []Reaction{{Username: alice.Username, Emoji: "👍"}}, reactions)
}

func TestEditMessage(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "first")

	require.NoError(t, f.messageStore.EditMessage(f.ctx, msg.ID, "second", time.Now()))
	require.NoError(t, f.messageStore.EditMessage(f.ctx, msg.ID, "third", time.Now()))

	stored, err := f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "third", stored.Content)
	assert.True(t, stored.Edited)
	require.Len(t, stored.EditHistory, 2)
	assert.Equal(t, "first", stored.EditHistory[0].Content)
	assert.Equal(t, "second", stored.EditHistory[1].Content)

	assert.ErrorIs(t, f.messageStore.EditMessage(f.ctx, "missing", "x", time.Now()), ErrMessageNotFound)
}

func TestSoftDeleteMessage(t *testing.T) {
	f := NewStoreFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "secret")
	_, err := f.messageStore.ToggleReaction(f.ctx, msg.ID, bob.Username, "😮")
	require.NoError(t, err)

	require.NoError(t, f.messageStore.SoftDeleteMessage(f.ctx, msg.ID, time.Now()))

	stored, err := f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Deleted)
	assert.Empty(t, stored.Content)
	assert.Empty(t, stored.Attachments)
	assert.Empty(t, stored.Reactions)

	assert.ErrorIs(t, f.messageStore.SoftDeleteMessage(f.ctx, "missing", time.Now()), ErrMessageNotFound)
}
