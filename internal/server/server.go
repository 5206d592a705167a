package server

import (
	"context"
	"fmt"
	"io"

	"tunnelout/internal/api/handlers"
	"tunnelout/internal/api/middleware"
	"tunnelout/internal/config"
	"tunnelout/internal/db"
	"tunnelout/internal/logging"
	"tunnelout/internal/payments"
	"tunnelout/internal/provision"
	"tunnelout/internal/repository"
	"tunnelout/internal/service"
	"tunnelout/internal/supervisor"
	"tunnelout/internal/tasks"

	"github.com/gin-gonic/gin"
)

// Server wires the lifecycle engine, its background tasks and the HTTP surface
type Server struct {
	router *gin.Engine
	cfg    *config.Config
	db     *db.Database

	registry   *payments.Registry
	procs      *supervisor.Supervisor
	rehydrator *tasks.Rehydrator
}

// NewServer creates a new server instance
func NewServer(database *db.Database, cfg *config.Config) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// The custom request logger replaces gin's
	gin.DisableConsoleColor()
	gin.DefaultWriter = io.Discard

	router := gin.New()
	router.Use(gin.Recovery())

	return &Server{
		router: router,
		cfg:    cfg,
		db:     database,
	}
}

// Init builds the component graph and registers routes
func (s *Server) Init() error {
	repo := repository.NewTunnelRepository(s.db.DB)
	provisioner := provision.NewClient(s.cfg.RemoteBase)

	s.procs = supervisor.New(s.cfg.DataDir, s.cfg.SSHBinary)
	s.registry = payments.NewRegistry(s.cfg.RemoteWSBase)

	svc := service.NewTunnelService(
		repo,
		provisioner,
		s.registry,
		s.procs,
		s.cfg.RemotePublicID,
		s.cfg.Host,
		s.cfg.Port,
	)

	// Settlement events feed back into the engine
	s.registry.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		if _, err := svc.Activate(ctx, userID, paymentHash); err != nil {
			logging.GetLogger().Error("activation after payment failed for user %s: %v", userID, err)
		}
	})

	s.rehydrator = tasks.NewRehydrator(repo, svc, s.registry)

	authMiddleware := middleware.NewAuthMiddleware(s.cfg.AdminAPIKey, s.cfg.AdminUserID)
	healthHandler := handlers.NewHealthHandler(s.db.DB)
	tunnelHandler := handlers.NewTunnelHandler(svc)

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		RPS:   s.cfg.RateLimitRPS,
		Burst: s.cfg.RateLimitBurst,
	}))
	s.router.Use(middleware.RequestLogger())

	// Health check endpoint - no auth required
	s.router.GET("/health", healthHandler.Check)

	api := s.router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())

	api.GET("/tunnel", tunnelHandler.GetTunnel)
	api.POST("/tunnel", tunnelHandler.CreateTunnel)
	api.POST("/tunnel/confirm", tunnelHandler.ConfirmTunnel)
	api.GET("/tunnel/ping", tunnelHandler.PingTunnel)
	api.DELETE("/tunnel", tunnelHandler.DeleteTunnel)

	return nil
}

// Start launches the rehydration sweep and serves HTTP until the listener fails
func (s *Server) Start() error {
	s.rehydrator.Start()
	return s.router.Run(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
}

// Shutdown stops background tasks, listeners and tracked subprocesses
func (s *Server) Shutdown() {
	s.rehydrator.Stop()
	s.registry.Shutdown()
	s.procs.StopAll()
}
