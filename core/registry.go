package core

import (
	"sort"
	"sync"
)

// ConnRegistry maps a user to its open connections.
// A user is present iff it has at least one open connection.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[string]map[string]*Conn
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[string]map[string]*Conn)}
}

// Register adds c and reports whether it is the first connection of its user.
func (r *ConnRegistry) Register(c *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.User]
	if !ok {
		set = make(map[string]*Conn)
		r.conns[c.User] = set
		usersOnline.Inc()
	}
	if _, dup := set[c.ID]; !dup {
		set[c.ID] = c
		connectionsOpen.Inc()
	}
	return !ok
}

// Unregister removes c and reports whether it was the last connection of its user.
// Unregistering a connection that is not registered is a no-op that reports false.
func (r *ConnRegistry) Unregister(c *Conn) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.User]
	if !ok {
		return false
	}
	if _, ok := set[c.ID]; !ok {
		return false
	}
	delete(set, c.ID)
	connectionsOpen.Dec()
	if len(set) > 0 {
		return false
	}
	delete(r.conns, c.User)
	usersOnline.Dec()
	return true
}

// ConnectionsFor returns a snapshot of the open connections of user, oldest first.
func (r *ConnRegistry) ConnectionsFor(user string) []*Conn {
	r.mu.RLock()
	set := r.conns[user]
	conns := make([]*Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	return conns
}

func (r *ConnRegistry) IsConnected(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[user]
	return ok
}

// ConnectedUsers returns the subset of users that have an open connection.
func (r *ConnRegistry) ConnectedUsers(users ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connected := make([]string, 0, len(users))
	for _, u := range users {
		if _, ok := r.conns[u]; ok {
			connected = append(connected, u)
		}
	}
	return connected
}

// SendToUsers queues e on every connection of every listed user.
func (r *ConnRegistry) SendToUsers(e *Event, users ...string) {
	for _, u := range users {
		for _, c := range r.ConnectionsFor(u) {
			c.Send(e)
		}
	}
}

// All returns a snapshot of every open connection.
func (r *ConnRegistry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []*Conn
	for _, set := range r.conns {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	return conns
}
