package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// MembershipCache caches chat member lists and the chat lists of users.
// A miss is reported with ok == false.
type MembershipCache interface {
	Members(ctx context.Context, chatID string) (members []string, ok bool, err error)
	SetMembers(ctx context.Context, chatID string, members []string) error
	Chats(ctx context.Context, user string) (chats []string, ok bool, err error)
	SetChats(ctx context.Context, user string, chats []string) error
	Invalidate(ctx context.Context, chatID string, users ...string) error
}

// MembershipResolver answers which chats a user is in and who is in a chat.
// The store is the source of truth and the cache is best-effort.
//
// A cache fill that read the store before an Invalidate is discarded, so an
// invalidated entry never comes back with the old value.
type MembershipResolver struct {
	store  ChatStore
	cache  MembershipCache
	logger *slog.Logger

	// fills hold mu for reading, Invalidate bumps gen holding it for writing
	mu  sync.RWMutex
	gen atomic.Uint64
}

func NewMembershipResolver(store ChatStore, cache MembershipCache, logger *slog.Logger) *MembershipResolver {
	if cache == nil {
		cache = NewMemoryMembershipCache(time.Minute)
	}
	return &MembershipResolver{store: store, cache: cache, logger: logger}
}

func (m *MembershipResolver) ChatsOf(ctx context.Context, user string) ([]string, error) {
	chats, ok, err := m.cache.Chats(ctx, user)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("membership cache: %v", err))
	} else if ok {
		return chats, nil
	}

	gen := m.gen.Load()
	chats, err = m.store.ChatIDsOf(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("ChatIDsOf: %w", err)
	}
	m.fill(gen, func() error { return m.cache.SetChats(ctx, user, chats) })
	return chats, nil
}

// MembersOf returns ErrChatNotFound if the chat does not exist.
func (m *MembershipResolver) MembersOf(ctx context.Context, chatID string) ([]string, error) {
	members, ok, err := m.cache.Members(ctx, chatID)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("membership cache: %v", err))
	} else if ok {
		return members, nil
	}

	gen := m.gen.Load()
	members, err = m.store.ChatMembers(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("ChatMembers: %w", err)
	}
	m.fill(gen, func() error { return m.cache.SetMembers(ctx, chatID, members) })
	return members, nil
}

// fill runs set unless an invalidation happened since gen was read.
func (m *MembershipResolver) fill(gen uint64, set func() error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gen.Load() != gen {
		return
	}
	if err := set(); err != nil {
		m.logger.Warn(fmt.Sprintf("membership cache: %v", err))
	}
}

func (m *MembershipResolver) IsMember(ctx context.Context, chatID, user string) (bool, error) {
	members, err := m.MembersOf(ctx, chatID)
	if err != nil {
		return false, err
	}
	return lo.Contains(members, user), nil
}

// Authorize returns the members of chatID if user is one of them.
// It fails with ErrChatNotFound or ErrNotChatMember otherwise.
func (m *MembershipResolver) Authorize(ctx context.Context, chatID, user string) ([]string, error) {
	members, err := m.MembersOf(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(members, user) {
		return nil, ErrNotChatMember
	}
	return members, nil
}

// CoMembers returns everyone who shares at least one chat with user, excluding user.
func (m *MembershipResolver) CoMembers(ctx context.Context, user string) ([]string, error) {
	chats, err := m.ChatsOf(ctx, user)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, chatID := range chats {
		members, err := m.MembersOf(ctx, chatID)
		if err != nil {
			// deleted since the chat list was cached
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		all = append(all, members...)
	}
	return lo.Without(lo.Uniq(all), user), nil
}

// Invalidate drops cached state for chatID and for the chat lists of users.
func (m *MembershipResolver) Invalidate(ctx context.Context, chatID string, users ...string) {
	m.mu.Lock()
	m.gen.Add(1)
	m.mu.Unlock()
	if err := m.cache.Invalidate(ctx, chatID, users...); err != nil {
		m.logger.Error(fmt.Sprintf("membership cache invalidate: %v", err))
	}
}

type cacheEntry struct {
	values  []string
	expires time.Time
}

// MemoryMembershipCache is an in-process MembershipCache.
type MemoryMembershipCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	members map[string]cacheEntry
	chats   map[string]cacheEntry
}

func NewMemoryMembershipCache(ttl time.Duration) *MemoryMembershipCache {
	return &MemoryMembershipCache{
		ttl:     ttl,
		members: make(map[string]cacheEntry),
		chats:   make(map[string]cacheEntry),
	}
}

func (c *MemoryMembershipCache) get(m map[string]cacheEntry, key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := m[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(m, key)
		return nil, false
	}
	return append([]string(nil), e.values...), true
}

func (c *MemoryMembershipCache) set(m map[string]cacheEntry, key string, values []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m[key] = cacheEntry{values: append([]string{}, values...), expires: time.Now().Add(c.ttl)}
}

func (c *MemoryMembershipCache) Members(_ context.Context, chatID string) ([]string, bool, error) {
	v, ok := c.get(c.members, chatID)
	return v, ok, nil
}

func (c *MemoryMembershipCache) SetMembers(_ context.Context, chatID string, members []string) error {
	c.set(c.members, chatID, members)
	return nil
}

func (c *MemoryMembershipCache) Chats(_ context.Context, user string) ([]string, bool, error) {
	v, ok := c.get(c.chats, user)
	return v, ok, nil
}

func (c *MemoryMembershipCache) SetChats(_ context.Context, user string, chats []string) error {
	c.set(c.chats, user, chats)
	return nil
}

func (c *MemoryMembershipCache) Invalidate(_ context.Context, chatID string, users ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, chatID)
	for _, u := range users {
		delete(c.chats, u)
	}
	return nil
}
