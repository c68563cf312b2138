package fanout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/incuverse/presence/internal/protocol"
)

func TestDispatchAppliesForeignEvents(t *testing.T) {
	var got []string
	r := &NATSRelay{
		logger:   zaptest.NewLogger(t),
		instance: "instance-a",
		local: func(spaceID string, msg protocol.Message) {
			got = append(got, spaceID+"/"+msg.Type)
		},
	}

	data, err := json.Marshal(Event{
		Instance: "instance-b",
		SpaceID:  "lobby",
		Message:  protocol.Message{Type: protocol.TypeUserLeft},
	})
	require.NoError(t, err)

	r.dispatch(data)

	assert.Equal(t, []string{"lobby/" + protocol.TypeUserLeft}, got)
}

func TestDispatchDropsOwnEvents(t *testing.T) {
	called := false
	r := &NATSRelay{
		logger:   zaptest.NewLogger(t),
		instance: "instance-a",
		local: func(string, protocol.Message) {
			called = true
		},
	}

	data, err := json.Marshal(Event{
		Instance: "instance-a",
		SpaceID:  "lobby",
		Message:  protocol.Message{Type: protocol.TypeUserMoved},
	})
	require.NoError(t, err)

	r.dispatch(data)

	assert.False(t, called)
}

func TestDispatchIgnoresMalformedPayload(t *testing.T) {
	r := &NATSRelay{
		logger:   zaptest.NewLogger(t),
		instance: "instance-a",
		local: func(string, protocol.Message) {
			t.Fatal("local broadcast must not run for malformed payloads")
		},
	}

	r.dispatch([]byte("not json"))
}

func TestEventWireFormat(t *testing.T) {
	data, err := json.Marshal(Event{
		Instance: "instance-a",
		SpaceID:  "lobby",
		Message:  protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeft{UserID: "u1"}),
	})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "instance")
	assert.Contains(t, raw, "spaceId")
	assert.Contains(t, raw, "message")
}

func TestNoopRelay(t *testing.T) {
	var r Noop
	assert.NoError(t, r.Publish("lobby", protocol.Message{Type: protocol.TypeUserMoved}))
	r.Close()
}
