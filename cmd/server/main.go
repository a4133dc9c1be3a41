// Helpdesk widget gateway server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/api"
	"github.com/ashureev/helpdesk-widget/internal/assistant"
	"github.com/ashureev/helpdesk-widget/internal/config"
	"github.com/ashureev/helpdesk-widget/internal/health"
	"github.com/ashureev/helpdesk-widget/internal/identity"
	"github.com/ashureev/helpdesk-widget/internal/metrics"
	"github.com/ashureev/helpdesk-widget/internal/middleware"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/ashureev/helpdesk-widget/internal/store"
	"github.com/ashureev/helpdesk-widget/internal/widget"
	"github.com/ashureev/helpdesk-widget/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize the assistant backend.
	var (
		asst         assistant.Assistant
		backendStats api.BackendStats
	)
	if cfg.Assistant.Mock {
		asst = assistant.NewMock(nil, 300*time.Millisecond, logger)
		slog.Info("Using mock assistant")
	} else {
		client := assistant.NewHTTPClient(assistant.ClientConfig{
			BaseURL:       cfg.Assistant.BaseURL,
			AskTimeout:    cfg.Assistant.AskTimeout,
			HealthTimeout: cfg.Assistant.HealthTimeout,
			RatePerSecond: cfg.Assistant.RatePerSecond,
			Burst:         cfg.Assistant.Burst,
		}, logger)
		asst = client
		backendStats = client
		slog.Info("Assistant client initialized", "base_url", cfg.Assistant.BaseURL)
	}

	// Initialize sessions.
	sessionOpts := session.Options{
		Assistant:  asst,
		Recorder:   metrics.Recorder{},
		Logger:     logger,
		AskTimeout: cfg.Assistant.AskTimeout,
	}
	if cfg.Journal.Enabled {
		sessionOpts.Journal = repo
	}
	sessions := session.NewManager(sessionOpts)
	defer sessions.CloseAll()

	hub := widget.NewHub(cfg.SSE.QueueSize, logger)
	hub.Bind(sessions)

	prober := health.NewProber(asst, cfg.Assistant.HealthProbeInterval, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions)
	healthHandler := api.NewHealthHandler(repo, prober)
	sessionHandler := api.NewSessionHandler(baseHandler, cfg.Assistant.AskTimeout.Seconds(), cfg.Assistant.Mock)
	statsHandler := api.NewStatsHandler(baseHandler, backendStats)
	widgetHandler := widget.NewHandler(sessions, hub, cfg, logger)
	defer widgetHandler.Close()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.MethodNotAllowed)

	// Public routes.
	r.Handle("/metrics", promhttp.Handler())
	healthHandler.RegisterHealth(r)
	statsHandler.RegisterRoutes(r)

	// Visitor routes use the anonymous identity middleware (no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		sessionHandler.RegisterRoutes(r)
		widgetHandler.RegisterRoutes(r)
	})

	// Serve embedded widget page (SPA catch-all).
	r.Get("/*", web.SPAHandler(api.NotFound).ServeHTTP)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Note: SSE connections require long timeouts (no WriteTimeout). Request
	// contexts derive from ctx so open streams end when shutdown starts.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, prober.Server())

	// Start background workers.
	session.StartReaper(ctx, sessions, cfg.Session.IdleTTL, cfg.Session.SweepInterval, func(visitorID, sessionID string) {
		slog.Info("Idle widget session evicted", "visitor_id", visitorID, "session_id", sessionID)
	})
	if cfg.Journal.Enabled {
		store.StartPruner(ctx, repo, cfg.Journal.Retention, cfg.Journal.PruneInterval)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		prober.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		slog.Info("gRPC health server listening", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})

	// Shutdown on signal or when any server fails.
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("Shutting down gracefully...")

		prober.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := eg.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		stop()
		sessions.CloseAll()
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
