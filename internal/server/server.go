// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/skychatorg/skyplayer/internal/api"
	"github.com/skychatorg/skyplayer/internal/config"
	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/middleware"
	"github.com/skychatorg/skyplayer/internal/playback"
	"github.com/skychatorg/skyplayer/internal/store"
	"github.com/skychatorg/skyplayer/internal/ws"
)

// Server wires the registry, websocket hub, snapshot store, and HTTP surface
// together. It is the composition root: nothing in here is a process-wide
// singleton.
type Server struct {
	config   *config.Config
	db       *store.DB
	registry *playback.Registry
	hub      *ws.Hub
	resolver playback.ItemResolver
	auth     playback.Authorizer
	router   *gin.Engine
	server   *http.Server
}

// New creates a new server instance. resolver and auth may be swapped for
// real media-provider and rights integrations; nil selects the built-in
// defaults.
func New(cfg *config.Config, database *store.DB, resolver playback.ItemResolver, auth playback.Authorizer) *Server {
	if resolver == nil {
		resolver = DirectResolver{}
	}
	if auth == nil {
		auth = PermissiveAuthorizer{Admins: cfg.Auth.Admins}
	}

	hub := ws.NewHub()
	snapshots := store.NewSnapshotRepository(database)
	registry := playback.NewRegistry(
		playback.Deps{Broadcaster: hub, Presence: hub, Auth: auth},
		snapshots,
		playback.Options{
			AdvanceMargin:       cfg.Playback.AdvanceMargin,
			HistoryLimit:        cfg.Playback.HistoryLimit,
			DefaultSlotDuration: cfg.Playback.DefaultSlotDuration,
		},
		cfg.Playback.ScheduleTick,
	)
	hub.OnDisconnect = registry.LeaveChannel

	return &Server{
		config:   cfg,
		db:       database,
		registry: registry,
		hub:      hub,
		resolver: resolver,
		auth:     auth,
	}
}

// Registry exposes the channel registry, mainly for tests and tooling.
func (s *Server) Registry() *playback.Registry {
	return s.registry
}

func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")
	api.SetupHealthRoutes(apiGroup, s.db)
	api.SetupChannelRoutes(apiGroup, api.NewChannelHandler(s.registry, s.resolver, s.auth))

	s.router.GET("/ws", func(c *gin.Context) {
		identity := c.Query("viewer")
		if identity == "" {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Error:   "missing_viewer",
				Message: "viewer query parameter is required",
			})
			return
		}
		if err := s.hub.Serve(c.Writer, c.Request, identity); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("viewer", identity).
				Msg("Websocket upgrade failed")
		}
	})
}

// Start restores persisted channels, launches the schedule ticker, and serves
// HTTP until shutdown.
func (s *Server) Start() error {
	s.setupRouter()

	snapshots, err := store.NewSnapshotRepository(s.db).Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to restore channels: %w", err)
	}
	s.registry.Restore(snapshots)
	s.registry.Start()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the ticker, websocket hub, and HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.registry != nil {
		s.registry.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
