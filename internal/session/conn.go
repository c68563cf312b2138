package session

import (
	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/catalog"
)

// State is the lifecycle position of one connection.
type State int

const (
	// StateUnjoined is the initial state; only join-space is meaningful.
	StateUnjoined State = iota
	// StateJoined means the connection is a member of exactly one space.
	StateJoined
	// StateTerminated is the terminal state entered on transport disconnect.
	StateTerminated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Conn is the explicit per-connection state record threaded through the
// handler. All fields besides ID and Identity are owned by the Handler
// and mutated only under its lock.
type Conn struct {
	// ID is the transport connection identifier.
	ID string
	// Identity is the authenticated user attached at handshake time.
	Identity auth.Identity

	state   State
	spaceID string
	space   catalog.Space
	x, y    int
}

// NewConn creates a connection record in the unjoined state.
func NewConn(id string, identity auth.Identity) *Conn {
	return &Conn{ID: id, Identity: identity}
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	return c.state
}

// SpaceID returns the space the connection currently occupies, or empty.
func (c *Conn) SpaceID() string {
	return c.spaceID
}

// Position returns the last confirmed coordinates.
func (c *Conn) Position() (x, y int) {
	return c.x, c.y
}
