// Package admin exposes a small HTTP surface for operators: liveness
// and read-only snapshots of room occupancy. It binds separately from
// the client-facing websocket listener so it can stay off the public
// network.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/config"
	"github.com/incuverse/presence/internal/presence"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server is the admin HTTP server. It satisfies the lifecycle Service
// interface.
type Server struct {
	logger     *zap.Logger
	cfg        config.AdminConfig
	rooms      *presence.Manager
	health     HealthFunc
	httpServer *http.Server
}

// NewServer creates the admin server. health may be nil when there is
// no external dependency to probe.
func NewServer(cfg config.AdminConfig, rooms *presence.Manager, health HealthFunc, logger *zap.Logger) *Server {
	s := &Server{
		logger: logger,
		cfg:    cfg,
		rooms:  rooms,
		health: health,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/rooms", s.handleRooms)
	mux.HandleFunc("GET /v1/rooms/{spaceID}", s.handleRoom)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the admin listener. It blocks until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", zap.String("addr", s.cfg.Addr()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("admin server shutdown", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roomStats struct {
	SpaceID   string `json:"spaceId"`
	Occupants int    `json:"occupants"`
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	stats := s.rooms.Stats()
	out := make([]roomStats, 0, len(stats))
	for spaceID, n := range stats {
		out = append(out, roomStats{SpaceID: spaceID, Occupants: n})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

type occupantView struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	UserType string `json:"userType"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	spaceID := r.PathValue("spaceID")
	occupants := s.rooms.OccupantsIn(spaceID)
	if len(occupants) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found or empty"})
		return
	}

	out := make([]occupantView, 0, len(occupants))
	for _, occ := range occupants {
		out = append(out, occupantView{
			UserID:   occ.UserID,
			Username: occ.Username,
			UserType: occ.UserType,
			X:        occ.X,
			Y:        occ.Y,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spaceId": spaceID,
		"users":   out,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
