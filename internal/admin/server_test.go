package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/incuverse/presence/internal/config"
	"github.com/incuverse/presence/internal/presence"
)

func newTestAdmin(t *testing.T, rooms *presence.Manager, health HealthFunc) *httptest.Server {
	t.Helper()
	srv := NewServer(config.AdminConfig{Host: "127.0.0.1", Port: 0}, rooms, health, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestAdmin(t, presence.NewManager(), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthzReportsDependencyFailure(t *testing.T) {
	health := func(context.Context) error { return errors.New("connection refused") }
	ts := newTestAdmin(t, presence.NewManager(), health)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRoomsSnapshot(t *testing.T) {
	rooms := presence.NewManager()
	rooms.Add("lobby", presence.Occupant{UserID: "a", Username: "alice", UserType: "FOUNDER", X: 2, Y: 3, ConnID: "c1"})
	rooms.Add("lobby", presence.Occupant{UserID: "b", Username: "bob", UserType: "MENTOR", X: 5, Y: 5, ConnID: "c2"})
	rooms.Add("garden", presence.Occupant{UserID: "c", Username: "carol", UserType: "INVESTOR", X: 0, Y: 0, ConnID: "c3"})

	ts := newTestAdmin(t, rooms, nil)

	resp, err := http.Get(ts.URL + "/v1/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Rooms []struct {
			SpaceID   string `json:"spaceId"`
			Occupants int    `json:"occupants"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Rooms, 2)

	counts := map[string]int{}
	for _, r := range body.Rooms {
		counts[r.SpaceID] = r.Occupants
	}
	assert.Equal(t, 2, counts["lobby"])
	assert.Equal(t, 1, counts["garden"])
}

func TestRoomDetail(t *testing.T) {
	rooms := presence.NewManager()
	rooms.Add("lobby", presence.Occupant{UserID: "a", Username: "alice", UserType: "FOUNDER", X: 2, Y: 3, ConnID: "c1"})

	ts := newTestAdmin(t, rooms, nil)

	resp, err := http.Get(ts.URL + "/v1/rooms/lobby")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SpaceID string `json:"spaceId"`
		Users   []struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
			UserType string `json:"userType"`
			X        int    `json:"x"`
			Y        int    `json:"y"`
		} `json:"users"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "lobby", body.SpaceID)
	require.Len(t, body.Users, 1)
	assert.Equal(t, "alice", body.Users[0].Username)
	assert.Equal(t, 2, body.Users[0].X)
}

func TestRoomDetailUnknownSpace(t *testing.T) {
	ts := newTestAdmin(t, presence.NewManager(), nil)

	resp, err := http.Get(ts.URL + "/v1/rooms/attic")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
