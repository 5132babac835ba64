package core

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes work per key (a user, a chat, a message) without
// blocking work on unrelated keys. Entries are dropped once nobody holds
// or waits on them.
//
// Callers that need more than one key must acquire them in the order
// user, chat, message.
type KeyedMutex struct {
	entries *SyncMap[string, *lockEntry]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: NewSyncMap[string, *lockEntry]()}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	e := k.entries.Compute(key, func(e *lockEntry, ok bool) (*lockEntry, bool) {
		if !ok {
			e = &lockEntry{}
		}
		e.refs++
		return e, true
	})
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.entries.Compute(key, func(e *lockEntry, _ bool) (*lockEntry, bool) {
			e.refs--
			return e, e.refs > 0
		})
	}
}

func userKey(user string) string   { return "user:" + user }
func chatKey(chatID string) string { return "chat:" + chatID }
func msgKey(messageID string) string {
	return "msg:" + messageID
}
