package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"solar-store-service/internal/api"
	"solar-store-service/internal/auth"
	"solar-store-service/internal/cache"
	"solar-store-service/internal/config"
	"solar-store-service/internal/logging"
	"solar-store-service/internal/notify"
	"solar-store-service/internal/service"
	"solar-store-service/internal/store"
)

const (
	defaultAppName  = "SolarStoreService"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// A missing .env is normal outside development.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if envErr != nil {
		logger.Debug().Msg(".env file not found, relying on system environment")
	}
	logger.Info().Str("app_env", cfg.AppEnv).Str("log_level", cfg.LogLevel).Msg("starting service")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("service shutdown sequence finished")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	db, err := openDB(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing database")
		}
	}()
	logger.Info().Msg("database connection established")

	if cfg.Postgres.RunMigrations {
		if err := store.RunMigrations(db, logger); err != nil {
			return err
		}
	}
	dbStore := store.NewPostgresStore(db, logger)

	// --- Optional Infrastructure ---
	var homeCache service.Cache
	var cacheHealth pinger
	if cfg.Redis.Addr != "" {
		c, err := cache.Connect(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "solarstore:",
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, homepage cache disabled")
		} else {
			defer c.Close()
			homeCache = c
			cacheHealth = c
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("homepage cache enabled")
		}
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Nats.URL != "" {
		nc, err := notify.ConnectNATS(cfg.Nats.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS unavailable, order confirmations will only be logged")
		} else {
			defer nc.Drain()
			notifier = notify.NewNATSNotifier(nc, cfg.Nats.Subject)
			logger.Info().Str("subject", cfg.Nats.Subject).Msg("order confirmations published to NATS")
		}
	}

	// --- Services ---
	sessions := auth.NewSessionManager(auth.SessionConfig{
		SecretKey: cfg.Session.Secret,
		TTL:       cfg.Session.TTL,
		Issuer:    cfg.Session.Issuer,
	})
	catalog := service.NewCatalogService(dbStore, dbStore, dbStore, homeCache, logger, service.CatalogOptions{
		PageSize:     cfg.Catalog.PageSize,
		FilterAPICap: cfg.Catalog.FilterAPICap,
	})
	carts := service.NewCartService(dbStore, dbStore, logger)
	checkout := service.NewCheckoutService(dbStore, dbStore, dbStore, notifier, homeCache, logger)
	accounts := service.NewAccountService(dbStore, auth.NewPasswordHasher(cfg.Session.BcryptCost), carts, logger)

	httpAPIHandler := api.NewHTTPHandler(api.Services{
		Catalog:   catalog,
		Carts:     carts,
		Checkout:  checkout,
		Reviews:   service.NewReviewService(dbStore, dbStore, logger),
		Wishlists: service.NewWishlistService(dbStore, logger),
		Accounts:  accounts,
	}, sessions, api.CookieConfig{
		UserCookie: cfg.Session.UserCookieName,
		CartCookie: cfg.Session.CartCookieName,
		Secure:     cfg.Session.CookieSecure,
	}, logger)
	grpcAPIHandler := api.NewGRPCHandler(catalog, checkout, logger)

	// --- HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg, logger)
	registerHealthCheck(httpRouter, logger, dbStore, cacheHealth)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	// --- gRPC Server ---
	grpcServer := setupGRPCServer(logger, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	// --- Graceful Shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("starting graceful shutdown")
		return shutdown(httpServer, grpcServer, logger)
	})

	return g.Wait()
}

func openDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func setupBaseMiddleware(router *chi.Mux, cfg *config.Config, logger zerolog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.HttpServer.TimeoutRequest))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// registerHealthCheck serves the liveness payload. cache is nil when the
// homepage cache is disabled.
func registerHealthCheck(router chi.Router, logger zerolog.Logger, db, cache pinger) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			logger.Warn().Err(err).Msg("health check DB ping failed")
		}
		cacheStatus := "disabled"
		if cache != nil {
			cacheStatus = "healthy"
			if err := cache.Ping(ctx); err != nil {
				cacheStatus = "unhealthy"
				logger.Warn().Err(err).Msg("health check cache ping failed")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
			"cache":       cacheStatus,
		})
	})
}

func setupGRPCServer(logger zerolog.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(api.UnaryLoggingInterceptor(logger)))

	api.RegisterStoreServiceServer(s, grpcAPIHandler)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	logger.Info().Str("service", api.StoreServiceName).Msg("gRPC services registered")

	return s
}

func shutdown(httpServer *http.Server, grpcServer *grpc.Server, logger zerolog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	var httpErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		httpErr = fmt.Errorf("HTTP server graceful shutdown: %w", err)
	} else {
		logger.Info().Msg("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info().Msg("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn().Err(shutdownCtx.Err()).Msg("gRPC graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}
	return httpErr
}
