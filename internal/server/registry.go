package server

import (
	"sync"

	"github.com/npezzotti/go-whiteboard/internal/stats"
)

// membershipFunc is called with the registry lock held whenever a room's
// membership changes. left is the client that departed, or nil on a join.
type membershipFunc func(roomId string, members map[*Client]struct{}, left *Client)

// Registry tracks which room each connection belongs to. A connection is a
// member of at most one room at a time.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	roomOf   map[*Client]string
	onChange membershipFunc
	stats    stats.StatsProvider
}

func NewRegistry(su stats.StatsProvider, onChange membershipFunc) *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Client]struct{}),
		roomOf:   make(map[*Client]string),
		onChange: onChange,
		stats:    su,
	}
}

// Join moves c into roomId, leaving its previous room if any. It returns the
// room c left, or "" if c was not a member anywhere or was already in roomId.
func (r *Registry) Join(c *Client, roomId string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.roomOf[c]
	if ok && prev == roomId {
		return ""
	}
	if ok {
		r.removeLocked(c, prev)
	}

	members, ok := r.rooms[roomId]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomId] = members
		r.stats.Incr(stats.NumActiveRooms)
	}
	members[c] = struct{}{}
	r.roomOf[c] = roomId

	r.notify(roomId, members, nil)
	return prev
}

// Leave removes c from its room and reports the room it left.
func (r *Registry) Leave(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomId, ok := r.roomOf[c]
	if !ok {
		return "", false
	}

	r.removeLocked(c, roomId)
	return roomId, true
}

func (r *Registry) removeLocked(c *Client, roomId string) {
	delete(r.roomOf, c)

	members, ok := r.rooms[roomId]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomId)
		r.stats.Decr(stats.NumActiveRooms)
		return
	}

	r.notify(roomId, members, c)
}

func (r *Registry) notify(roomId string, members map[*Client]struct{}, left *Client) {
	if r.onChange != nil {
		r.onChange(roomId, members, left)
	}
}

func (r *Registry) RoomOf(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.roomOf[c]
	return roomId, ok
}

func (r *Registry) Count(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomId])
}

func (r *Registry) Members(roomId string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.rooms[roomId]))
	for c := range r.rooms[roomId] {
		members = append(members, c)
	}
	return members
}

// ForEachMember calls fn for every member of roomId with the read lock held.
// fn must not call back into the registry.
func (r *Registry) ForEachMember(roomId string, fn func(*Client)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[roomId] {
		fn(c)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
