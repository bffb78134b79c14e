package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/api/rest"
	"github.com/seedpool/seedpool-backend/internal/api/server"
	"github.com/seedpool/seedpool-backend/internal/auth"
	"github.com/seedpool/seedpool-backend/internal/chain"
	"github.com/seedpool/seedpool-backend/internal/config"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/notifier"
	"github.com/seedpool/seedpool-backend/internal/reconciler"
	"github.com/seedpool/seedpool-backend/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadServerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Seedpool server")

	// Connect to database. TranslateError maps driver duplicate-key
	// errors to gorm.ErrDuplicatedKey, which the store relies on.
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	kv := adapter.NewRedisKV(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer kv.Close()
	if err := kv.Ping(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to Redis")

	// Initialize authentication services
	nonces := auth.NewNonceStore(kv, cfg.Auth.NonceTTL)
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		RotateLeft:    cfg.Auth.RefreshRotateLeft,
	}, kv, clockAdapter)
	authService := auth.NewService(nonces, issuer, dataStore, clockAdapter)

	// Initialize notification pipeline
	registry := notifier.NewRegistry()
	var emailPublisher notifier.EmailPublisher
	if cfg.NATS.URL != "" {
		natsJS := adapter.NewNatsJetStream()
		emailPublisher, err = notifier.NewEmailPublisher(ctx, cfg.NATS, natsJS)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create email publisher", zap.Error(err))
		}
		defer emailPublisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS JetStream")
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, email notifications disabled")
	}
	dispatcher := notifier.NewDispatcher(dataStore, registry, emailPublisher, cfg.Notifier.FanoutWorkers)
	defer dispatcher.Stop()

	// Initialize the reconciler and chain listeners. A dial failure at
	// boot is fatal; steady-state drops are retried inside the manager.
	eventReconciler := reconciler.New(dataStore, dispatcher)
	ethDialer := adapter.NewEthClientDialer()
	chainManager, err := chain.NewManager(ctx, cfg.Chains, ethDialer, clockAdapter, eventReconciler.Handle)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to chains", zap.Error(err))
	}
	defer chainManager.Close()
	chainManager.Start(ctx)
	logger.InfoCtx(ctx, "Chain listeners started", zap.Int("chains", len(cfg.Chains)))

	// Initialize the HTTP server
	apiServer := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Cookies: rest.CookieConfig{
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
			MaxAge: int(cfg.Auth.RefreshTokenTTL.Seconds()),
		},
	}, dataStore, authService, issuer, registry)

	// Channel for server errors
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCtx(ctx, err, zap.String("component", "api-server"))
		}
	}
	cancel()

	// Graceful HTTP shutdown with a deadline
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "api-server"))
	}

	logger.Info("Seedpool server stopped")
}
