// Package main is the entry point for the KisaanConnect API server.
//
// It loads configuration, opens the Postgres pool, loads the crop price
// model artifacts, wires the domain services and handlers onto the core
// server chassis, and serves HTTP until a shutdown signal arrives.
//
// A model load failure does not abort startup: the marketplace keeps
// serving and only the prediction endpoint degrades.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"kisaanconnect/internal/api/handlers"
	"kisaanconnect/internal/auth"
	"kisaanconnect/internal/config"
	"kisaanconnect/internal/core"
	"kisaanconnect/internal/db"
	"kisaanconnect/internal/market"
	"kisaanconnect/internal/prediction"
	"kisaanconnect/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("kisaanconnect API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres pool. Startup fails fast when the database is unreachable.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Price model. Load failure leaves the prediction service in a degraded
	// state instead of aborting; the marketplace does not depend on it.
	predictionSvc := prediction.NewService(cfg.Model.ModelPath, cfg.Model.FeatureColumnsPath, logger)

	// Repositories.
	userRepo := db.NewUserRepository(pool)
	sessionRepo := db.NewSessionRepository(pool)
	cropRepo := db.NewCropRepository(pool)
	cartRepo := db.NewCartRepository(pool)
	orderRepo := db.NewOrderRepository(pool)

	// AWS integrations are optional; local development runs without them.
	orderEvents, metrics, err := buildAWSClients(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Domain services.
	authSvc := auth.NewService(auth.ServiceConfig{
		Users:           userRepo,
		Sessions:        sessionRepo,
		Logger:          logger,
		SessionDuration: cfg.Auth.SessionDuration,
		BcryptCost:      cfg.Auth.BcryptCost,
	})
	farmerSvc := market.NewFarmerService(cropRepo, logger)
	consumerSvc := market.NewConsumerService(
		cropRepo,
		cartRepo,
		orderRepo,
		market.NewOrderTxManager(db.NewTxRunner(pool)),
		orderEvents,
		logger,
	)

	// Server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authSvc
	srv.Model = predictionSvc
	srv.Metrics = metrics
	srv.HealthProbes = append(srv.HealthProbes, db.NewHealthProbe(pool))
	srv.RegisterCloser(func(context.Context) error {
		pool.Close()
		return nil
	})

	// Handlers.
	authHandler := handlers.NewAuthHandler(authSvc, srv.Validator, logger)
	cropHandler := handlers.NewCropHandler(farmerSvc, srv.Validator, logger)
	marketHandler := handlers.NewMarketHandler(consumerSvc, srv.Validator, logger)
	predictionHandler := handlers.NewPredictionHandler(predictionSvc, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { authHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { cropHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { marketHandler.RegisterRoutes(r, srv.RequireAuth) },
		predictionHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	// Background purge of expired sessions; stops when run() returns.
	go auth.NewSessionJanitor(sessionRepo, time.Hour, logger).Run(ctx)

	return runHTTPServer(srv, cfg, logger)
}

// buildAWSClients creates the SQS order event publisher and the CloudWatch
// metrics collector. Either may be nil when the corresponding feature is
// disabled in configuration.
func buildAWSClients(ctx context.Context, cfg *config.Config, logger *slog.Logger) (market.EventPublisher, core.MetricsCollector, error) {
	if cfg.AWS.OrderEventsQueueURL == "" && !cfg.AWS.EnableMetrics {
		logger.Info("AWS integrations disabled")
		return nil, nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}

	// LocalStack support: point every client at the configured endpoint.
	endpoint := cfg.AWS.EndpointURL

	var orderEvents market.EventPublisher
	if cfg.AWS.OrderEventsQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		orderEvents = queue.NewOrderEventPublisher(sqsClient, cfg.AWS.OrderEventsQueueURL, logger)
		logger.Info("order event publishing enabled", "queue_url", cfg.AWS.OrderEventsQueueURL)
	}

	var metrics core.MetricsCollector
	if cfg.AWS.EnableMetrics {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		metrics = core.NewCloudWatchMetrics(cwClient, cfg.AWS.MetricNamespace, logger)
		logger.Info("CloudWatch metrics enabled", "namespace", cfg.AWS.MetricNamespace)
	}

	return orderEvents, metrics, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
