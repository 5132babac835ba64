package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMembershipCache stores membership lists as JSON strings with a TTL.
type RedisMembershipCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisMembershipCache(client *redis.Client, ttl time.Duration) *RedisMembershipCache {
	return &RedisMembershipCache{client: client, ttl: ttl, prefix: "parley:"}
}

func (c *RedisMembershipCache) membersKey(chatID string) string {
	return fmt.Sprintf("%schat:%s:members", c.prefix, chatID)
}

func (c *RedisMembershipCache) chatsKey(user string) string {
	return fmt.Sprintf("%suser:%s:chats", c.prefix, user)
}

func (c *RedisMembershipCache) load(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("Get(%s): %w", key, err)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return values, true, nil
}

func (c *RedisMembershipCache) store(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("Set(%s): %w", key, err)
	}
	return nil
}

func (c *RedisMembershipCache) Members(ctx context.Context, chatID string) ([]string, bool, error) {
	return c.load(ctx, c.membersKey(chatID))
}

func (c *RedisMembershipCache) SetMembers(ctx context.Context, chatID string, members []string) error {
	return c.store(ctx, c.membersKey(chatID), members)
}

func (c *RedisMembershipCache) Chats(ctx context.Context, user string) ([]string, bool, error) {
	return c.load(ctx, c.chatsKey(user))
}

func (c *RedisMembershipCache) SetChats(ctx context.Context, user string, chats []string) error {
	return c.store(ctx, c.chatsKey(user), chats)
}

func (c *RedisMembershipCache) Invalidate(ctx context.Context, chatID string, users ...string) error {
	keys := make([]string, 0, len(users)+1)
	keys = append(keys, c.membersKey(chatID))
	for _, u := range users {
		keys = append(keys, c.chatsKey(u))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("Del: %w", err)
	}
	return nil
}
