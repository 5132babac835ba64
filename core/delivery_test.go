package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/putto11262002/parley/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPipeline_Send(t *testing.T) {
	t.Run("fans out to the chat room and updates every member", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob, carol)
		chat := f.group(alice, "team", bob)
		a, b, c := f.connect(alice), f.connect(bob), f.connect(carol)

		msg, err := f.pipeline.Send(f.ctx, alice.Username, MessageCreateInput{ChatID: chat.ID, Content: "hello"})
		require.NoError(t, err)
		assert.Equal(t, alice.Username, msg.Sender)
		assert.Equal(t, StatusSent, msg.Status())

		for _, conn := range []*Conn{a, b} {
			events := drain(conn)
			require.Len(t, events, 2)
			assert.Equal(t, MessageReceivedEvent, events[0].Type)
			assert.Equal(t, msg.ID, decodeAs[Message](t, events[0]).ID)
			assert.Equal(t, ChatUpdatedEvent, events[1].Type)
			updated := decodeAs[Chat](t, events[1])
			require.NotNil(t, updated.LastMessage)
			assert.Equal(t, msg.ID, updated.LastMessage.ID)
		}
		assert.Empty(t, drain(c))
	})

	t.Run("chat_updated reaches members without the chat open", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob)
		chat := f.direct(alice, bob)
		f.connect(alice)
		b := newTestConn(bob.Username)
		f.registry.Register(b)

		_, err := f.pipeline.Send(f.ctx, alice.Username, MessageCreateInput{ChatID: chat.ID, Content: "hi"})
		require.NoError(t, err)

		events := drain(b)
		require.Len(t, events, 1)
		assert.Equal(t, ChatUpdatedEvent, events[0].Type)
	})

	t.Run("unread counters", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob)
		chat := f.direct(alice, bob)

		for i := 0; i < 3; i++ {
			_, err := f.pipeline.Send(f.ctx, alice.Username, MessageCreateInput{ChatID: chat.ID, Content: "ping"})
			require.NoError(t, err)
		}

		stored, err := f.chatStore.GetChatByID(f.ctx, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Unread[bob.Username])
		assert.Zero(t, stored.Unread[alice.Username])

		_, err = f.pipeline.History(f.ctx, bob.Username, chat.ID, 1, 10)
		require.NoError(t, err)
		stored, err = f.chatStore.GetChatByID(f.ctx, chat.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.Unread[bob.Username])
	})

	t.Run("non member", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob, carol)
		chat := f.direct(alice, bob)
		b := f.connect(bob)

		_, err := f.pipeline.Send(f.ctx, carol.Username, MessageCreateInput{ChatID: chat.ID, Content: "intruder"})
		assert.ErrorIs(t, err, ErrNotChatMember)
		assert.Empty(t, drain(b))

		_, err = f.pipeline.Send(f.ctx, carol.Username, MessageCreateInput{ChatID: "missing", Content: "hi"})
		assert.ErrorIs(t, err, ErrNotChatMember)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob)
		chat := f.direct(alice, bob)

		_, err := f.pipeline.Send(f.ctx, alice.Username, MessageCreateInput{ChatID: chat.ID})
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = f.pipeline.Send(f.ctx, alice.Username, MessageCreateInput{
			ChatID: chat.ID, Content: "file", Attachments: []Attachment{{URL: "not a url"}},
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("concurrent sends arrive in persisted order", func(t *testing.T) {
		f := NewServiceFixture(t, alice, bob)
		chat := f.direct(alice, bob)
		b := f.connect(bob)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := alice.Username
				if i%2 == 0 {
					sender = bob.Username
				}
				_, err := f.pipeline.Send(f.ctx, sender, MessageCreateInput{ChatID: chat.ID, Content: fmt.Sprint(i)})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		var received []string
		for _, e := range eventsOfType(b, MessageReceivedEvent) {
			received = append(received, decodeAs[Message](t, e).ID)
		}

		page, err := f.pipeline.History(f.ctx, bob.Username, chat.ID, 1, n)
		require.NoError(t, err)
		var persisted []string
		for _, m := range page.Messages {
			persisted = append(persisted, m.ID)
		}
		assert.Equal(t, persisted, received)
	})
}

func TestPipeline_SendStoreFailure(t *testing.T) {
	f := NewServiceFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	b := f.connect(bob)

	ctrl := gomock.NewController(t)
	chats := NewMockChatStore(ctrl)
	chats.EXPECT().ChatMembers(gomock.Any(), chat.ID).Return(chat.Members, nil)
	chats.EXPECT().SetLastMessage(gomock.Any(), chat.ID, gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	chats.EXPECT().IncrementUnread(gomock.Any(), chat.ID, alice.Username).Return(nil)
	chats.EXPECT().GetChatByID(gomock.Any(), chat.ID).Return(chat, nil)

	membership := NewMembershipResolver(chats, nil, logger.Discard())
	pipeline := NewPipeline(chats, f.messageStore, membership, f.rooms, f.registry, f.locks, logger.Discard())

	msg, err := pipeline.Send(f.ctx, alice.Username, MessageCreateInput{ChatID: chat.ID, Content: "still here"})
	require.NoError(t, err)

	received := eventsOfType(b, MessageReceivedEvent)
	require.Len(t, received, 1)
	assert.Equal(t, msg.ID, decodeAs[Message](t, received[0]).ID)
}

func TestPipeline_Edit(t *testing.T) {
	f := NewServiceFixture(t, alice, bob, carol)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "helo")
	b := f.connect(bob)

	t.Run("sender edits", func(t *testing.T) {
		updated, err := f.pipeline.Edit(f.ctx, alice.Username, msg.ID, EditMessageInput{Content: "hello"})
		require.NoError(t, err)
		assert.True(t, updated.Edited)
		assert.Equal(t, "hello", updated.Content)
		require.Len(t, updated.EditHistory, 1)
		assert.Equal(t, "helo", updated.EditHistory[0].Content)

		events := eventsOfType(b, MessageUpdatedEvent)
		require.Len(t, events, 1)
		assert.Equal(t, "hello", decodeAs[Message](t, events[0]).Content)
	})

	t.Run("not the sender", func(t *testing.T) {
		_, err := f.pipeline.Edit(f.ctx, bob.Username, msg.ID, EditMessageInput{Content: "hijack"})
		assert.ErrorIs(t, err, ErrNotSender)
	})

	t.Run("not a member", func(t *testing.T) {
		_, err := f.pipeline.Edit(f.ctx, carol.Username, msg.ID, EditMessageInput{Content: "hijack"})
		assert.ErrorIs(t, err, ErrNotChatMember)
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := f.pipeline.Edit(f.ctx, alice.Username, "missing", EditMessageInput{Content: "x"})
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := f.pipeline.Edit(f.ctx, alice.Username, msg.ID, EditMessageInput{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestPipeline_Delete(t *testing.T) {
	f := NewServiceFixture(t, alice, bob)
	chat := f.direct(alice, bob)
	msg := f.message(chat, alice, "oops")
	b := f.connect(bob)

	assert.ErrorIs(t, f.pipeline.Delete(f.ctx, bob.Username, msg.ID), ErrNotSender)

	require.NoError(t, f.pipeline.Delete(f.ctx, alice.Username, msg.ID))
	events := eventsOfType(b, MessageDeletedEvent)
	require.Len(t, events, 1)
	assert.Equal(t, MessageDeletedPayload{MessageID: msg.ID, ChatID: chat.ID}, decodeAs[MessageDeletedPayload](t, events[0]))

	stored, err := f.messageStore.GetMessageByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)

	// deleting twice is a no-op
	require.NoError(t, f.pipeline.Delete(f.ctx, alice.Username, msg.ID))
	assert.Empty(t, eventsOfType(b, MessageDeletedEvent))

	_, err = f.pipeline.Edit(f.ctx, alice.Username, msg.ID, EditMessageInput{Content: "back"})
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestPipeline_History(t *testing.T) {
	f := NewServiceFixture(t, alice, bob, carol)
	chat := f.direct(alice, bob)
	for i := 0; i < 5; i++ {
		f.message(chat, alice, fmt.Sprint(i))
	}

	page, err := f.pipeline.History(f.ctx, bob.Username, chat.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "3", page.Messages[0].Content)
	assert.Equal(t, "4", page.Messages[1].Content)

	page, err = f.pipeline.History(f.ctx, bob.Username, chat.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "0", page.Messages[0].Content)

	page, err = f.pipeline.History(f.ctx, bob.Username, chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.Len(t, page.Messages, 5)

	_, err = f.pipeline.History(f.ctx, carol.Username, chat.ID, 1, 10)
	assert.ErrorIs(t, err, ErrNotChatMember)
}
