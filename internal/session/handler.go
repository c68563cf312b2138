// Package session implements the per-connection protocol logic: joining
// spaces, validating movement, and cleaning up on disconnect.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/catalog"
	"github.com/incuverse/presence/internal/presence"
	"github.com/incuverse/presence/internal/protocol"
)

// Peer is the requesting connection as seen by the handler.
type Peer interface {
	// ConnID identifies the underlying connection.
	ConnID() string
	// Send enqueues a message to this connection. It must not block.
	Send(msg protocol.Message)
}

// Broadcaster delivers a message to every connection in a space except one.
type Broadcaster interface {
	Broadcast(spaceID, exceptConnID string, msg protocol.Message)
}

// Relay forwards locally produced events to other server instances.
// The no-op implementation makes single-instance deployments free.
type Relay interface {
	Publish(spaceID string, msg protocol.Message) error
}

// Handler routes client messages and owns all room-state transitions.
//
// A single mutex serializes every mutation-plus-broadcast pair, so
// events targeting the same room are always broadcast in the order they
// were processed, mirroring a single-threaded event loop.
type Handler struct {
	mu            sync.Mutex
	logger        *zap.Logger
	rooms         *presence.Manager
	spaces        catalog.Store
	caster        Broadcaster
	relay         Relay
	lookupTimeout time.Duration
}

// NewHandler creates a session handler.
//
// Precondition: all arguments must be non-nil; lookupTimeout must be positive.
func NewHandler(rooms *presence.Manager, spaces catalog.Store, caster Broadcaster, relay Relay, lookupTimeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		logger:        logger,
		rooms:         rooms,
		spaces:        spaces,
		caster:        caster,
		relay:         relay,
		lookupTimeout: lookupTimeout,
	}
}

// HandleMessage dispatches one inbound envelope for the given connection.
// Failures are reported to the peer; they never propagate.
func (h *Handler) HandleMessage(ctx context.Context, conn *Conn, peer Peer, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinSpace:
		var req protocol.JoinSpace
		if err := protocol.DecodePayload(msg, &req); err != nil {
			peer.Send(protocol.ErrorMessage("Malformed join-space request"))
			return
		}
		h.handleJoin(ctx, conn, peer, req)
	case protocol.TypeMove:
		var req protocol.Move
		if err := protocol.DecodePayload(msg, &req); err != nil {
			peer.Send(protocol.ErrorMessage("Malformed move request"))
			return
		}
		h.handleMove(conn, peer, req)
	default:
		h.logger.Debug("unknown message type",
			zap.String("type", msg.Type),
			zap.String("conn_id", conn.ID),
		)
		peer.Send(protocol.ErrorMessage("Unknown message type"))
	}
}

func (h *Handler) handleJoin(ctx context.Context, conn *Conn, peer Peer, req protocol.JoinSpace) {
	if conn.state == StateTerminated {
		return
	}

	// The space lookup suspends on the external store; keep it outside
	// the critical section so other connections keep making progress.
	lookupCtx, cancel := context.WithTimeout(ctx, h.lookupTimeout)
	defer cancel()

	space, err := h.spaces.Space(lookupCtx, req.SpaceID)
	if err != nil {
		if errors.Is(err, catalog.ErrSpaceNotFound) {
			peer.Send(protocol.ErrorMessage("Space not found"))
			return
		}
		h.logger.Error("space lookup failed",
			zap.String("space_id", req.SpaceID),
			zap.Error(err),
		)
		peer.Send(protocol.ErrorMessage("Failed to join space"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Joining while joined leaves the previous space first.
	if conn.state == StateJoined {
		h.leaveLocked(conn)
	}

	spawnX := rand.IntN(space.Width)
	spawnY := rand.IntN(space.Height)

	conn.state = StateJoined
	conn.spaceID = space.ID
	conn.space = space
	conn.x = spawnX
	conn.y = spawnY

	h.rooms.Add(space.ID, presence.Occupant{
		UserID:   conn.Identity.ID,
		Username: conn.Identity.Username,
		UserType: conn.Identity.UserType,
		X:        spawnX,
		Y:        spawnY,
		ConnID:   conn.ID,
	})

	others := make([]protocol.UserInfo, 0)
	for _, occ := range h.rooms.OccupantsIn(space.ID) {
		if occ.UserID == conn.Identity.ID {
			continue
		}
		others = append(others, protocol.UserInfo{
			ID:       occ.UserID,
			Username: occ.Username,
			UserType: occ.UserType,
			X:        occ.X,
			Y:        occ.Y,
		})
	}

	peer.Send(protocol.MustEncode(protocol.TypeSpaceJoined, protocol.SpaceJoined{
		Spawn: protocol.Position{X: spawnX, Y: spawnY},
		Users: others,
		Space: protocol.SpaceInfo{
			ID:     space.ID,
			Name:   space.Name,
			Width:  space.Width,
			Height: space.Height,
		},
	}))

	h.fanOut(space.ID, conn.ID, protocol.MustEncode(protocol.TypeUserJoined, protocol.UserInfo{
		ID:       conn.Identity.ID,
		Username: conn.Identity.Username,
		UserType: conn.Identity.UserType,
		X:        spawnX,
		Y:        spawnY,
	}))

	h.logger.Info("user joined space",
		zap.String("user_id", conn.Identity.ID),
		zap.String("username", conn.Identity.Username),
		zap.String("space_id", space.ID),
		zap.Int("x", spawnX),
		zap.Int("y", spawnY),
	)
}

func (h *Handler) handleMove(conn *Conn, peer Peer, req protocol.Move) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.state != StateJoined {
		peer.Send(protocol.ErrorMessage("Not in a space"))
		return
	}

	dx := abs(req.X - conn.x)
	dy := abs(req.Y - conn.y)
	cardinalStep := (dx == 1 && dy == 0) || (dx == 0 && dy == 1)

	if !cardinalStep || !conn.space.Contains(req.X, req.Y) {
		peer.Send(protocol.MustEncode(protocol.TypeMovementRejected, protocol.MovementRejected{
			X: conn.x,
			Y: conn.y,
		}))
		return
	}

	conn.x = req.X
	conn.y = req.Y
	h.rooms.UpdatePosition(conn.Identity.ID, conn.spaceID, req.X, req.Y)

	h.fanOut(conn.spaceID, conn.ID, protocol.MustEncode(protocol.TypeUserMoved, protocol.UserMoved{
		UserID: conn.Identity.ID,
		X:      req.X,
		Y:      req.Y,
	}))
}

// HandleDisconnect removes the connection's presence entry and notifies
// the remaining occupants. It is the sole terminal transition and is
// safe to call for connections that never joined.
func (h *Handler) HandleDisconnect(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.state == StateJoined {
		h.leaveLocked(conn)
	}
	conn.state = StateTerminated
}

// leaveLocked removes conn from its current space and broadcasts the
// departure. Caller must hold h.mu and conn must be in StateJoined.
func (h *Handler) leaveLocked(conn *Conn) {
	h.rooms.Remove(conn.Identity.ID, conn.spaceID)

	h.fanOut(conn.spaceID, conn.ID, protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeft{
		UserID: conn.Identity.ID,
	}))

	h.logger.Info("user left space",
		zap.String("user_id", conn.Identity.ID),
		zap.String("space_id", conn.spaceID),
	)

	conn.spaceID = ""
	conn.space = catalog.Space{}
	conn.state = StateUnjoined
}

// fanOut broadcasts to local occupants and relays to other instances.
// Relay failures are logged; local delivery never depends on them.
func (h *Handler) fanOut(spaceID, exceptConnID string, msg protocol.Message) {
	h.caster.Broadcast(spaceID, exceptConnID, msg)
	if err := h.relay.Publish(spaceID, msg); err != nil {
		h.logger.Warn("relaying presence event",
			zap.String("space_id", spaceID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
