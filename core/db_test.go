package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDBOption_DSN(t *testing.T) {
	var sb strings.Builder
	(&SQLiteDBOption{Mode: "rwc", JournalMode: "WAL", BusyTimeout: 5000, TxLock: "immediate"}).DSN(&sb)
	assert.Equal(t, "?mode=rwc&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", sb.String())

	sb.Reset()
	(*SQLiteDBOption)(nil).DSN(&sb)
	assert.Empty(t, sb.String())
}

func TestNewSQLiteDB_Pool(t *testing.T) {
	memory, err := NewSQLiteDB(":memory:", "../migrations", nil)
	require.NoError(t, err)
	defer memory.Close()
	assert.Equal(t, 1, memory.Stats().MaxOpenConnections)

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "parley.db"), "../migrations", &SQLiteDBOption{
		Mode:         "rwc",
		JournalMode:  "WAL",
		BusyTimeout:  5000,
		TxLock:       "immediate",
		MaxOpenConns: 4,
	})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 4, db.Stats().MaxOpenConnections)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	users := NewSQLiteUserStore(db.DB)
	chats := NewSQLiteChatStore(db.DB)
	seedUsers(ctx, t, users, alice, bob, carol)

	// transactions read before they write, concurrent ones must queue
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := chats.CreateGroupChat(ctx, fmt.Sprintf("group %d", i), alice.Username,
				[]string{bob.Username, carol.Username})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids, err := chats.ChatIDsOf(ctx, bob.Username)
	require.NoError(t, err)
	assert.Len(t, ids, 8)
}
