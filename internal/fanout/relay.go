// Package fanout relays presence events between server instances so
// occupants connected to different instances still see each other's
// joins, moves, and departures.
package fanout

import (
	"github.com/incuverse/presence/internal/protocol"
)

// Event is the envelope relayed between instances. The originating
// instance is carried so subscribers can drop their own publications.
type Event struct {
	Instance string           `json:"instance"`
	SpaceID  string           `json:"spaceId"`
	Message  protocol.Message `json:"message"`
}

// LocalBroadcast delivers a relayed message to the local connections
// occupying a space.
type LocalBroadcast func(spaceID string, msg protocol.Message)

// Noop is the relay for single-instance deployments: publishing is
// free and nothing is ever received.
type Noop struct{}

// Publish discards the event.
func (Noop) Publish(string, protocol.Message) error { return nil }

// Close does nothing.
func (Noop) Close() {}
