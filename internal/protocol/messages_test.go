package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := Encode(TypeJoinSpace, JoinSpace{SpaceID: "lobby"})
	require.NoError(t, err)
	assert.Equal(t, TypeJoinSpace, msg.Type)

	var req JoinSpace
	require.NoError(t, DecodePayload(msg, &req))
	assert.Equal(t, "lobby", req.SpaceID)
}

func TestDecodePayload_Empty(t *testing.T) {
	err := DecodePayload(Message{Type: TypeMove}, &Move{})
	assert.Error(t, err)
}

func TestDecodePayload_Malformed(t *testing.T) {
	msg := Message{Type: TypeMove, Payload: json.RawMessage(`{"x":"not a number"}`)}
	err := DecodePayload(msg, &Move{})
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage("Space not found")
	assert.Equal(t, TypeError, msg.Type)

	var p ErrorPayload
	require.NoError(t, DecodePayload(msg, &p))
	assert.Equal(t, "Space not found", p.Message)
}

// Field names are part of the client contract; a renamed Go field must
// not silently rename the JSON key.
func TestWireFieldNames(t *testing.T) {
	msg := MustEncode(TypeSpaceJoined, SpaceJoined{
		Spawn: Position{X: 3, Y: 4},
		Users: []UserInfo{{ID: "u1", Username: "ada", UserType: "MENTOR", X: 1, Y: 2}},
		Space: SpaceInfo{ID: "lobby", Name: "Main Lobby", Width: 10, Height: 10},
	})

	var raw map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &raw))
	assert.Contains(t, raw, "spawn")
	assert.Contains(t, raw, "users")
	assert.Contains(t, raw, "space")

	user := raw["users"].([]any)[0].(map[string]any)
	assert.Contains(t, user, "userType")

	moved := MustEncode(TypeUserMoved, UserMoved{UserID: "u1", X: 2, Y: 2})
	require.NoError(t, json.Unmarshal(moved.Payload, &raw))
	assert.Contains(t, raw, "userId")
}
