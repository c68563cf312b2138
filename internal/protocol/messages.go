// Package protocol defines the JSON wire format spoken over the
// websocket: a typed envelope carrying a raw payload, plus the payload
// shapes for every client and server message.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client→server message types.
const (
	TypeJoinSpace = "join-space"
	TypeMove      = "move"
)

// Server→client message types.
const (
	TypeSpaceJoined      = "space-joined"
	TypeUserJoined       = "user-joined"
	TypeUserMoved        = "user-moved"
	TypeUserLeft         = "user-left"
	TypeMovementRejected = "movement-rejected"
	TypeError            = "error"
)

// Message is the envelope for all traffic in both directions. Payload
// stays raw until the type is known.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinSpace asks to enter a space, leaving the current one if any.
type JoinSpace struct {
	SpaceID string `json:"spaceId"`
}

// Move requests a position change. Only single cardinal steps from the
// last confirmed position are accepted.
type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Position is an (x, y) coordinate within a space.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UserInfo describes one occupant as seen by other clients.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	UserType string `json:"userType"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// SpaceInfo describes the joined space's declared geometry.
type SpaceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SpaceJoined confirms a join to the requesting client.
type SpaceJoined struct {
	Spawn Position   `json:"spawn"`
	Users []UserInfo `json:"users"`
	Space SpaceInfo  `json:"space"`
}

// UserMoved announces an accepted move to the other occupants.
type UserMoved struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// UserLeft announces a departure to the remaining occupants.
type UserLeft struct {
	UserID string `json:"userId"`
}

// MovementRejected returns the authoritative last-good position to a
// client whose move was refused.
type MovementRejected struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ErrorPayload reports a request-level failure, e.g. an unknown space.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps a payload value into an envelope of the given type.
//
// Postcondition: Returns a Message whose Payload is the JSON encoding
// of v, or a non-nil error if v cannot be marshalled.
func Encode(msgType string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: data}, nil
}

// MustEncode is Encode for payload types that cannot fail to marshal.
// It panics on error and is intended for the fixed server-side payload
// structs in this package.
func MustEncode(msgType string, v any) Message {
	msg, err := Encode(msgType, v)
	if err != nil {
		panic(err)
	}
	return msg
}

// ErrorMessage builds an error envelope with the given text.
func ErrorMessage(text string) Message {
	return MustEncode(TypeError, ErrorPayload{Message: text})
}

// DecodePayload unmarshals the envelope payload into dst.
func DecodePayload(msg Message, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("message %q has no payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("decoding %s payload: %w", msg.Type, err)
	}
	return nil
}
