package core

import (
	"testing"

	"github.com/putto11262002/parley/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSend(t *testing.T) {
	t.Run("queues in order", func(t *testing.T) {
		c := newTestConn("alice")
		first, second := testEvent(t), testEvent(t)
		require.True(t, c.Send(first))
		require.True(t, c.Send(second))

		events := drain(c)
		require.Len(t, events, 2)
		assert.Same(t, first, events[0])
		assert.Same(t, second, events[1])
	})

	t.Run("closed connection", func(t *testing.T) {
		c := newTestConn("alice")
		c.Close()
		c.Close()
		assert.False(t, c.Send(testEvent(t)))
		assert.Empty(t, drain(c))

		select {
		case <-c.Done():
		default:
			t.Fatal("done is not closed")
		}
	})

	t.Run("full queue closes the connection", func(t *testing.T) {
		c := NewConn("alice", nil, ConnOptions{SendBuffer: 2}, logger.Discard())
		require.True(t, c.Send(testEvent(t)))
		require.True(t, c.Send(testEvent(t)))

		assert.False(t, c.Send(testEvent(t)))
		assert.True(t, c.Closed())
	})
}

func TestConnRateLimit(t *testing.T) {
	c := NewConn("alice", nil, ConnOptions{EventsPerSecond: 1, EventBurst: 2}, logger.Discard())
	assert.True(t, c.allow())
	assert.True(t, c.allow())
	assert.False(t, c.allow())

	unlimited := NewConn("alice", nil, ConnOptions{}, logger.Discard())
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.allow())
	}
}
