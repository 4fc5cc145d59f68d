package chat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry maps a room id to the sessions currently connected to it. Rooms with no
// sessions are dropped, so idle rooms cost nothing.
type Registry struct {
	mu    sync.Mutex
	rooms map[int64]*liveRoom
}

// liveRoom is the set of sessions of one room. Its lock serialises membership changes
// with broadcast enumeration, which also fixes the per-session delivery order.
type liveRoom struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]*liveRoom),
	}
}

// Register adds s to the live set of roomID. Registering twice is a no-op.
func (r *Registry) Register(roomID int64, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &liveRoom{sessions: make(map[string]Session)}
		r.rooms[roomID] = room
	}

	room.mu.Lock()
	room.sessions[s.ID()] = s
	room.mu.Unlock()
}

// Unregister removes s from roomID and discards the room once it is empty. Unknown
// rooms and sessions are ignored.
func (r *Registry) Unregister(roomID int64, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}

	room.mu.Lock()
	delete(room.sessions, s.ID())
	empty := len(room.sessions) == 0
	room.mu.Unlock()

	if empty {
		delete(r.rooms, roomID)
	}
}

// Broadcast hands payload to every session registered for roomID, the sender
// included. A session that fails to accept the payload is logged and skipped. The
// number of sessions that accepted it is returned.
func (r *Registry) Broadcast(roomID int64, payload []byte) int {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	delivered := 0
	for id, s := range room.sessions {
		if err := s.Send(payload); err != nil {
			zap.S().Warnw("failed to deliver chat event",
				"roomID", roomID,
				"sessionID", id,
				"userID", s.UserID(),
				"error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Publish encodes event as JSON and broadcasts it to roomID
func (r *Registry) Publish(roomID int64, event interface{}) (int, error) {
	payload, err := encode(event)
	if err != nil {
		return 0, fmt.Errorf("failed to encode chat event: %w", err)
	}
	return r.Broadcast(roomID, payload), nil
}

// SessionCount returns how many sessions are live in roomID
func (r *Registry) SessionCount(roomID int64) int {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.sessions)
}

// Rooms returns the number of rooms with at least one live session
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// closer is implemented by sessions that own a socket
type closer interface {
	close()
}

// CloseAll asks every live session to close its socket with a normal close frame and
// returns how many were asked. Sessions leave the registry as their connections wind
// down.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	var sessions []Session
	for _, room := range r.rooms {
		room.mu.Lock()
		for _, s := range room.sessions {
			sessions = append(sessions, s)
		}
		room.mu.Unlock()
	}
	r.mu.Unlock()

	closed := 0
	for _, s := range sessions {
		if c, ok := s.(closer); ok {
			c.close()
			closed++
		}
	}
	return closed
}
