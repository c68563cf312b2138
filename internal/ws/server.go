// Package ws is the websocket transport: it authenticates upgrade
// requests, runs per-connection read/write pumps, and fans local
// broadcasts out to the connections occupying a space.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/config"
	"github.com/incuverse/presence/internal/presence"
	"github.com/incuverse/presence/internal/protocol"
	"github.com/incuverse/presence/internal/session"
)

// Server accepts websocket connections and routes their traffic through
// the session handler. It satisfies the lifecycle Service interface and
// the handler's Broadcaster interface.
type Server struct {
	logger      *zap.Logger
	serverCfg   config.ServerConfig
	presenceCfg config.PresenceConfig
	gate        *auth.Gate
	handler     *session.Handler
	rooms       *presence.Manager
	upgrader    websocket.Upgrader

	httpServer *http.Server
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewServer creates the websocket server.
//
// Precondition: all arguments must be non-nil.
// Postcondition: Returns a server ready to Start.
func NewServer(serverCfg config.ServerConfig, presenceCfg config.PresenceConfig, gate *auth.Gate, handler *session.Handler, rooms *presence.Manager, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:      logger,
		serverCfg:   serverCfg,
		presenceCfg: presenceCfg,
		gate:        gate,
		handler:     handler,
		rooms:       rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary app origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		baseCtx:    ctx,
		baseCancel: cancel,
		clients:    make(map[string]*Client),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+serverCfg.Path, s.handleUpgrade)
	s.httpServer = &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP listener. It blocks until Stop is called or the
// listener fails.
func (s *Server) Start() error {
	s.logger.Info("websocket server listening",
		zap.String("addr", s.serverCfg.Addr()),
		zap.String("path", s.serverCfg.Path),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every open connection. Disconnect
// cleanup runs through the read pumps as the connections close.
func (s *Server) Stop() {
	s.baseCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("websocket server shutdown", zap.Error(err))
	}

	s.mu.RLock()
	open := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		open = append(open, c)
	}
	s.mu.RUnlock()
	for _, c := range open {
		c.close()
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	identity, err := s.gate.Authenticate(r.Context(), auth.BearerFromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingToken),
			errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrUserNotFound):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			s.logger.Error("handshake authentication failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	client := &Client{
		id:       connID,
		identity: identity,
		conn:     conn,
		sess:     session.NewConn(connID, identity),
		send:     make(chan protocol.Message, s.presenceCfg.SendBuffer),
		done:     make(chan struct{}),
		logger:   s.logger,
	}

	s.mu.Lock()
	s.clients[connID] = client
	s.mu.Unlock()

	s.logger.Info("client connected",
		zap.String("conn_id", connID),
		zap.String("user_id", identity.ID),
		zap.String("username", identity.Username),
	)

	go client.writePump(s)
	go client.readPump(s)
}

// unregister drops the client from the connection table and tears down
// its session state. Called exactly once, from the read pump.
func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.handler.HandleDisconnect(c.sess)

	s.logger.Info("client disconnected",
		zap.String("conn_id", c.id),
		zap.String("user_id", c.identity.ID),
	)
}

// Broadcast delivers msg to every connection occupying spaceID, except
// the one identified by exceptConnID. Pass an empty exceptConnID to
// reach the whole space.
func (s *Server) Broadcast(spaceID, exceptConnID string, msg protocol.Message) {
	occupants := s.rooms.OccupantsIn(spaceID)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, occ := range occupants {
		if occ.ConnID == exceptConnID {
			continue
		}
		if c, ok := s.clients[occ.ConnID]; ok {
			c.Send(msg)
		}
	}
}

// ClientCount returns the number of open connections.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
