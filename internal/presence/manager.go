// Package presence tracks which users occupy which space.
//
// The registry is ephemeral: entries are created on join, mutated on
// movement, and deleted on leave or disconnect. Nothing is persisted.
package presence

import "sync"

// Occupant is the record of one user inside a space.
type Occupant struct {
	// UserID uniquely identifies the user within a room.
	UserID string
	// Username is the display name broadcast to other occupants.
	Username string
	// UserType is the role/category tag (e.g. FOUNDER, MENTOR, INVESTOR, ADMIN).
	UserType string
	// X, Y are the current coordinates within the space.
	X, Y int
	// ConnID is the transport connection carrying this occupant.
	ConnID string
}

// Manager is the process-wide registry mapping space IDs to the ordered
// list of occupants currently present. All methods are safe for
// concurrent use.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string][]Occupant // spaceID → occupants in insertion order
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{rooms: make(map[string][]Occupant)}
}

// Add inserts an occupant into the given space. If the user already has
// an entry in that room (reconnect), the old entry is removed first and
// the new one appended, so a reconnecting user moves to the end of the
// iteration order.
//
// Postcondition: The room contains exactly one entry for occ.UserID.
func (m *Manager) Add(spaceID string, occ Occupant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.rooms[spaceID]
	filtered := users[:0:0]
	for _, u := range users {
		if u.UserID != occ.UserID {
			filtered = append(filtered, u)
		}
	}
	m.rooms[spaceID] = append(filtered, occ)
}

// Remove deletes the user's entry from the given space. When the room
// becomes empty the room itself is deleted, so no dangling empty rooms
// remain. Removing an absent user is a no-op.
func (m *Manager) Remove(userID, spaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, ok := m.rooms[spaceID]
	if !ok {
		return
	}
	filtered := users[:0:0]
	for _, u := range users {
		if u.UserID != userID {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		delete(m.rooms, spaceID)
		return
	}
	m.rooms[spaceID] = filtered
}

// UpdatePosition mutates the coordinates of the user's entry in place.
// No-op if the room or the user is absent.
func (m *Manager) UpdatePosition(userID, spaceID string, x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.rooms[spaceID]
	for i := range users {
		if users[i].UserID == userID {
			users[i].X = x
			users[i].Y = y
			return
		}
	}
}

// OccupantsIn returns a snapshot of the room's occupants in insertion
// order, or an empty slice if the room is absent.
func (m *Manager) OccupantsIn(spaceID string) []Occupant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := m.rooms[spaceID]
	out := make([]Occupant, len(users))
	copy(out, users)
	return out
}

// Count returns the number of occupants in the given space, 0 if absent.
func (m *Manager) Count(spaceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[spaceID])
}

// Stats returns the occupant count per space across all rooms.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int, len(m.rooms))
	for spaceID, users := range m.rooms {
		stats[spaceID] = len(users)
	}
	return stats
}
