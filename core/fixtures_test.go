package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/putto11262002/parley/pkg/logger"
	"github.com/stretchr/testify/require"
)

var baseTimeout = time.Second

var (
	alice = User{Username: "alice", Password: "password", Name: "Alice"}
	bob   = User{Username: "bob", Password: "password", Name: "Bob"}
	carol = User{Username: "carol", Password: "password", Name: "Carol"}
	dave  = User{Username: "dave", Password: "password", Name: "Dave"}
)

type BaseFixture struct {
	ctx context.Context
	db  *sql.DB
	t   *testing.T
}

// NewBaseFixture opens a private in-memory database with every migration applied.
func NewBaseFixture(t *testing.T) *BaseFixture {
	ctx, cancel := context.WithCancel(context.Background())

	// a named memory database lives as long as one connection to it is open
	db, err := sql.Open("sqlite3", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db, os.DirFS("../migrations")))

	t.Cleanup(func() {
		cancel()
		db.Close()
	})

	return &BaseFixture{ctx: ctx, db: db, t: t}
}

type StoreFixture struct {
	*BaseFixture
	userStore    *SQLiteUserStore
	chatStore    *SQLiteChatStore
	messageStore *SQLiteMessageStore
}

func NewStoreFixture(t *testing.T, users ...User) *StoreFixture {
	base := NewBaseFixture(t)
	f := &StoreFixture{
		BaseFixture:  base,
		userStore:    NewSQLiteUserStore(base.db),
		chatStore:    NewSQLiteChatStore(base.db),
		messageStore: NewSQLiteMessageStore(base.db),
	}
	seedUsers(f.ctx, t, f.userStore, users...)
	return f
}

func seedUsers(ctx context.Context, t *testing.T, userStore UserStore, users ...User) {
	for _, u := range users {
		require.NoError(t, userStore.CreateUser(ctx, u))
	}
}

func (f *StoreFixture) group(admin User, name string, members ...User) *Chat {
	usernames := make([]string, 0, len(members))
	for _, m := range members {
		usernames = append(usernames, m.Username)
	}
	chat, err := f.chatStore.CreateGroupChat(f.ctx, name, admin.Username, usernames)
	require.NoError(f.t, err)
	return chat
}

func (f *StoreFixture) direct(a, b User) *Chat {
	chat, _, err := f.chatStore.FindOrCreateDirectChat(f.ctx, a.Username, b.Username)
	require.NoError(f.t, err)
	return chat
}

func (f *StoreFixture) message(chat *Chat, sender User, content string) *Message {
	msg, err := f.messageStore.CreateMessage(f.ctx, MessageCreateInput{
		ChatID: chat.ID, Sender: sender.Username, Content: content,
	})
	require.NoError(f.t, err)
	return msg
}

// ServiceFixture wires every service over real stores, with socketless connections.
type ServiceFixture struct {
	*StoreFixture
	registry   *ConnRegistry
	rooms      *RoomRouter
	locks      *KeyedMutex
	membership *MembershipResolver
	presence   *PresenceTracker
	pipeline   *Pipeline
	receipts   *ReceiptTracker
	reactions  *Reactions
	typing     *TypingCoordinator
	calls      *CallRelay
	chats      *Chats
}

func NewServiceFixture(t *testing.T, users ...User) *ServiceFixture {
	store := NewStoreFixture(t, users...)
	l := logger.Discard()
	f := &ServiceFixture{StoreFixture: store}
	f.registry = NewConnRegistry()
	f.rooms = NewRoomRouter(f.registry)
	f.locks = NewKeyedMutex()
	f.membership = NewMembershipResolver(store.chatStore, nil, l)
	f.presence = NewPresenceTracker(store.userStore, f.registry, f.membership, f.locks, l)
	f.pipeline = NewPipeline(store.chatStore, store.messageStore, f.membership, f.rooms, f.registry, f.locks, l)
	f.receipts = NewReceiptTracker(store.messageStore, f.membership, f.rooms, f.locks, l)
	f.reactions = NewReactions(store.messageStore, f.membership, f.rooms, f.locks, l)
	f.typing = NewTypingCoordinator(f.membership, f.rooms, l)
	f.calls = NewCallRelay(f.registry, f.rooms, l)
	f.chats = NewChats(store.chatStore, f.membership, f.rooms, f.registry, f.locks, l)
	return f
}

// connect registers a socketless connection for user and subscribes it to
// every chat of the user, the way a real connection is opened.
func (f *ServiceFixture) connect(user User) *Conn {
	c := newTestConn(user.Username)
	f.registry.Register(c)
	require.NoError(f.t, f.chats.Subscribe(f.ctx, c))
	return c
}

func newTestConn(user string) *Conn {
	return NewConn(user, nil, ConnOptions{SendBuffer: 64}, logger.Discard())
}

// pausedChatStore holds the first ChatMembers call, after the store was
// read, until release is closed.
type pausedChatStore struct {
	ChatStore
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func newPausedChatStore(store ChatStore) *pausedChatStore {
	return &pausedChatStore{ChatStore: store, reached: make(chan struct{}), release: make(chan struct{})}
}

func (s *pausedChatStore) ChatMembers(ctx context.Context, chatID string) ([]string, error) {
	members, err := s.ChatStore.ChatMembers(ctx, chatID)
	s.once.Do(func() {
		close(s.reached)
		<-s.release
	})
	return members, err
}

// drain returns every event queued on c so far.
func drain(c *Conn) []*Event {
	var events []*Event
	for {
		select {
		case e := <-c.send:
			events = append(events, e)
		default:
			return events
		}
	}
}

// eventsOfType drains c and keeps the events of type t.
func eventsOfType(c *Conn, t string) []*Event {
	var events []*Event
	for _, e := range drain(c) {
		if e.Type == t {
			events = append(events, e)
		}
	}
	return events
}

func decodeAs[T any](t *testing.T, e *Event) T {
	var v T
	require.NoError(t, json.Unmarshal(e.Payload, &v))
	return v
}

// waitOrTimeout waits for fn to return or fails the test after timeout.
func waitOrTimeout(t *testing.T, fn func(), timeout time.Duration, s string, args ...interface{}) {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		require.Failf(t, "timeout", s, args...)
	}
}
