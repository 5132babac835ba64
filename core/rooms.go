package core

import (
	"strings"
	"sync"
)

const callRoomPrefix = "call-"

// CallRoom returns the room of a group call. Call rooms never collide with chat ids.
func CallRoom(roomID string) string {
	return callRoomPrefix + roomID
}

func isCallRoom(room string) (roomID string, ok bool) {
	return strings.CutPrefix(room, callRoomPrefix)
}

// RoomRouter tracks which connections are subscribed to which rooms
// and fans events out to them. Subscription is per connection.
type RoomRouter struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Conn]struct{}
	registry *ConnRegistry
}

func NewRoomRouter(registry *ConnRegistry) *RoomRouter {
	return &RoomRouter{
		rooms:    make(map[string]map[*Conn]struct{}),
		registry: registry,
	}
}

// Join subscribes c to room. It fails with ErrConnClosed once c has been dropped.
func (r *RoomRouter) Join(room string, c *Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}
	r.mu.Unlock()

	c.rooms[room] = struct{}{}
	return nil
}

// Leave unsubscribes c from room. Leaving a room c is not in is a no-op.
func (r *RoomRouter) Leave(room string, c *Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r.remove(room, c)
	delete(c.rooms, room)
}

// remove must be called with c.mu held.
func (r *RoomRouter) remove(room string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Drop closes c and removes it from every room in one step, so no join
// can slip in between. It returns the rooms c was subscribed to.
func (r *RoomRouter) Drop(c *Conn) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		r.remove(room, c)
		rooms = append(rooms, room)
	}
	clear(c.rooms)
	return rooms
}

// Broadcast delivers e to every connection subscribed to room except exclude.
// Connections that closed meanwhile are skipped.
func (r *RoomRouter) Broadcast(room string, e *Event, exclude *Conn) {
	for _, c := range r.Members(room) {
		if c == exclude {
			continue
		}
		c.Send(e)
	}
}

// Members returns a snapshot of the connections subscribed to room.
func (r *RoomRouter) Members(room string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	conns := make([]*Conn, 0, len(members))
	for c := range members {
		conns = append(conns, c)
	}
	return conns
}

// Users returns the distinct users with a connection subscribed to room.
func (r *RoomRouter) Users(room string) []string {
	seen := make(map[string]struct{})
	var users []string
	for _, c := range r.Members(room) {
		if _, ok := seen[c.User]; ok {
			continue
		}
		seen[c.User] = struct{}{}
		users = append(users, c.User)
	}
	return users
}

// JoinUser subscribes every open connection of user to room.
func (r *RoomRouter) JoinUser(room, user string) {
	for _, c := range r.registry.ConnectionsFor(user) {
		// a connection closing meanwhile is torn down by its own disconnect
		_ = r.Join(room, c)
	}
}

// LeaveUser unsubscribes every open connection of user from room.
func (r *RoomRouter) LeaveUser(room, user string) {
	for _, c := range r.registry.ConnectionsFor(user) {
		r.Leave(room, c)
	}
}

// CloseRoom unsubscribes every connection from room.
func (r *RoomRouter) CloseRoom(room string) {
	for _, c := range r.Members(room) {
		r.Leave(room, c)
	}
}
