package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/api/middleware"
	"github.com/seedpool/seedpool-backend/internal/api/rest"
	"github.com/seedpool/seedpool-backend/internal/auth"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/notifier"
	"github.com/seedpool/seedpool-backend/internal/store"
)

// Config holds the server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Cookies      rest.CookieConfig
}

// Server wraps the HTTP server
type Server struct {
	config      Config
	store       store.Store
	authService *auth.Service
	issuer      *auth.Issuer
	registry    *notifier.Registry
	httpServer  *http.Server
}

// New creates a new API server
func New(cfg Config, st store.Store, authService *auth.Service, issuer *auth.Issuer, registry *notifier.Registry) *Server {
	return &Server{
		config:      cfg,
		store:       st,
		authService: authService,
		issuer:      issuer,
		registry:    registry,
	}
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Setup middleware. Request deadlines live here rather than in the
	// server's WriteTimeout so the SSE stream can outlive them.
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())
	router.Use(middleware.Timeout(s.config.WriteTimeout, "/api/v1/notifications/sse"))

	// Create REST handler
	restHandler := rest.NewHandler(s.authService, s.store, s.registry, s.config.Cookies)

	// Setup REST routes with the session guard
	session := middleware.Session(s.issuer, s.store)
	rest.SetupRoutes(router, restHandler, session)

	// Create HTTP server
	// WriteTimeout stays off: it would sever open notification streams.
	// Non-streaming routes are bounded by the Timeout middleware above,
	// slow readers by ReadTimeout and IdleTimeout.
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: s.config.ReadTimeout,
		IdleTimeout: s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	// Start server
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
