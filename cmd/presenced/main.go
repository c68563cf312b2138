// Package main provides the presence server binary: a websocket
// gateway that tracks which users occupy which virtual spaces.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/admin"
	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/catalog"
	"github.com/incuverse/presence/internal/config"
	"github.com/incuverse/presence/internal/fanout"
	"github.com/incuverse/presence/internal/observability"
	"github.com/incuverse/presence/internal/presence"
	"github.com/incuverse/presence/internal/protocol"
	"github.com/incuverse/presence/internal/server"
	"github.com/incuverse/presence/internal/session"
	"github.com/incuverse/presence/internal/storage/postgres"
	"github.com/incuverse/presence/internal/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting presence server",
		zap.String("ws_addr", cfg.Server.Addr()),
		zap.String("admin_addr", cfg.Admin.Addr()),
	)

	// Connect to PostgreSQL for user identity and space definitions.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	userRepo := postgres.NewUserRepository(pool.DB())

	// Space definitions come from the database or a YAML catalog file.
	var spaces catalog.Store
	switch cfg.Spaces.Source {
	case "file":
		fileCat, err := catalog.LoadFile(cfg.Spaces.CatalogPath)
		if err != nil {
			logger.Fatal("loading space catalog", zap.Error(err))
		}
		logger.Info("space catalog loaded",
			zap.String("path", cfg.Spaces.CatalogPath),
			zap.Int("spaces", fileCat.Len()),
		)
		spaces = fileCat
	default:
		spaces = postgres.NewSpaceRepository(pool.DB())
	}

	gate := auth.NewGate(cfg.Auth, userRepo, logger)
	rooms := presence.NewManager()

	// The websocket server is both the transport and the local
	// broadcaster; bind the handler to it after construction.
	var wsServer *ws.Server
	localBroadcast := func(spaceID string, msg protocol.Message) {
		if wsServer != nil {
			wsServer.Broadcast(spaceID, "", msg)
		}
	}

	var relay session.Relay = fanout.Noop{}
	var natsRelay *fanout.NATSRelay
	if cfg.Fanout.Enabled {
		natsRelay, err = fanout.NewNATSRelay(cfg.Fanout, localBroadcast, logger)
		if err != nil {
			logger.Fatal("connecting fanout relay", zap.Error(err))
		}
		relay = natsRelay
	}

	handler := session.NewHandler(rooms, spaces, broadcasterFunc(func(spaceID, exceptConnID string, msg protocol.Message) {
		if wsServer != nil {
			wsServer.Broadcast(spaceID, exceptConnID, msg)
		}
	}), relay, cfg.Auth.ResolveTimeout, logger)
	wsServer = ws.NewServer(cfg.Server, cfg.Presence, gate, handler, rooms, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", wsServer)

	if cfg.Admin.Enabled {
		adminServer := admin.NewServer(cfg.Admin, rooms, func(ctx context.Context) error {
			return pool.Health(ctx, 5*time.Second)
		}, logger)
		lifecycle.Add("admin", adminServer)
	}

	if natsRelay != nil {
		// The NATS client runs its own goroutines; this service only
		// ties draining the connection into ordered shutdown.
		fanoutDone := make(chan struct{})
		lifecycle.Add("fanout", &server.FuncService{
			StartFn: func() error {
				<-fanoutDone
				return nil
			},
			StopFn: func() {
				natsRelay.Close()
				close(fanoutDone)
			},
		})
	}

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("presence server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// broadcasterFunc defers the handler-to-transport binding until the
// websocket server exists; the two reference each other.
type broadcasterFunc func(spaceID, exceptConnID string, msg protocol.Message)

func (f broadcasterFunc) Broadcast(spaceID, exceptConnID string, msg protocol.Message) {
	f(spaceID, exceptConnID, msg)
}
