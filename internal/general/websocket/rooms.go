package websocket

import (
	"sync"

	"delivery-track/internal/domain/user"
)

// Subscriber is one realtime connection registered in a delivery room.
type Subscriber interface {
	ID() string
	Role() user.Role
	Send(payload []byte) error
}

// room holds the members of one delivery. Its mutex is held for the whole of
// every broadcast, so frames for one delivery go out in order while other
// deliveries proceed in parallel.
type room struct {
	mu      sync.Mutex
	members map[string]Subscriber
}

// Rooms maps delivery ids to their subscriber sets. The outer lock only
// guards the map of rooms, never a broadcast.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRooms creates an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*room)}
}

// Join registers a subscriber in the delivery's room, creating it on demand.
// After inserting, it re-checks that the room is still the registered one:
// a concurrent Leave may have emptied and dropped it between the fetch and
// the insert, which would strand the subscriber in an unreachable room.
func (rs *Rooms) Join(deliveryID string, sub Subscriber) {
	for {
		rs.mu.Lock()
		rm, ok := rs.rooms[deliveryID]
		if !ok {
			rm = &room{members: make(map[string]Subscriber)}
			rs.rooms[deliveryID] = rm
		}
		rs.mu.Unlock()

		rm.mu.Lock()
		rm.members[sub.ID()] = sub
		rm.mu.Unlock()

		rs.mu.RLock()
		cur := rs.rooms[deliveryID]
		rs.mu.RUnlock()
		if cur == rm {
			return
		}
	}
}

// Leave removes a subscriber from the delivery's room. Empty rooms are
// dropped from the registry. Returns false when the subscriber was not there.
func (rs *Rooms) Leave(deliveryID, subID string) bool {
	rs.mu.Lock()
	rm, ok := rs.rooms[deliveryID]
	rs.mu.Unlock()
	if !ok {
		return false
	}

	rm.mu.Lock()
	_, present := rm.members[subID]
	delete(rm.members, subID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		rs.mu.Lock()
		if cur, ok := rs.rooms[deliveryID]; ok && cur == rm {
			cur.mu.Lock()
			if len(cur.members) == 0 {
				delete(rs.rooms, deliveryID)
			}
			cur.mu.Unlock()
		}
		rs.mu.Unlock()
	}
	return present
}

// Broadcast sends payload to every member of the room except excludeID.
// Members whose send fails are dropped from the room; their read loops notice
// the dead socket on their own.
func (rs *Rooms) Broadcast(deliveryID string, payload []byte, excludeID string) {
	rs.mu.RLock()
	rm, ok := rs.rooms[deliveryID]
	rs.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, sub := range rm.members {
		if id == excludeID {
			continue
		}
		if err := sub.Send(payload); err != nil {
			delete(rm.members, id)
		}
	}
}

// Members reports the current size of a delivery's room.
func (rs *Rooms) Members(deliveryID string) int {
	rs.mu.RLock()
	rm, ok := rs.rooms[deliveryID]
	rs.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}
