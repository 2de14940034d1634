// Package main is the entry point for the GymDesk API server.
//
// It loads configuration, connects the database pool, wires the billing
// enforcement core (limit checker, quota gate, bill calculator, feature
// gate) onto the repositories, builds the HTTP chassis, and serves until
// a shutdown signal arrives.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"gymdesk/internal/api/handlers"
	"gymdesk/internal/billing"
	"gymdesk/internal/config"
	"gymdesk/internal/core"
	"gymdesk/internal/db"
	"gymdesk/internal/external"
	"gymdesk/internal/queue"
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
	logger.Info("gymdesk API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Database pool. Every repository shares it.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	tenants := db.NewTenantRepository(pool)
	plans := db.NewPlanRepository(pool)
	members := db.NewMemberRepository(pool)
	branches := db.NewBranchRepository(pool)
	quotas := db.NewQuotaRepository(pool)
	capacity := db.NewCapacityDBImpl(pool)

	// Billing enforcement core.
	catalog := billing.NewStaticCatalog()
	limitChecker := billing.NewLimitChecker(tenants, plans, capacity)
	quotaGate := billing.NewQuotaGate(tenants, catalog, quotas, logger)
	calculator := billing.NewCalculator(tenants, plans, capacity)
	featureGate := billing.NewFeatureGate(tenants, catalog)

	// AWS-backed side channels: alert queue and metrics. Both are advisory
	// and both degrade to no-ops when disabled.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	var alerts handlers.AlertNotifier
	if cfg.Feature.EnableAlerts {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		alerts = queue.NewAlertTrigger(sqsClient, cfg.AWS, logger)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})

	var recorder handlers.DecisionRecorder
	if cfg.AWS.MetricsEnabled {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		cwMetrics := core.NewCloudWatchMetrics(cwClient, logger)
		srv.Metrics = cwMetrics
		recorder = cwMetrics
	}

	// Bearer tokens resolve against the external auth service.
	srv.Authenticator = external.NewAuthClient(cfg.Auth)

	// Database connectivity backs the health endpoint.
	srv.HealthProbes = append(srv.HealthProbes, &core.PingProbe{
		ProbeName: "database",
		Target:    pool,
	})

	// Domain handlers.
	limitsHandler := handlers.NewLimitsHandler(limitChecker, logger)
	membersHandler := handlers.NewMembersHandler(members, limitChecker, alerts, recorder, srv.Validator, logger)
	branchesHandler := handlers.NewBranchesHandler(branches, limitChecker, featureGate, alerts, recorder, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(calculator, featureGate, logger)
	reportsHandler := handlers.NewReportsHandler(quotas, featureGate, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(tenants, cfg.Billing.StripeWebhookSecret, logger)
	adminHandler := handlers.NewAdminHandler(tenants, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		limitsHandler.RegisterRoutes,
		membersHandler.RegisterRoutes,
		branchesHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		reportsHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
		adminHandler.RegisterRoutes,
	)

	if cfg.Feature.EnableAI {
		aiClient := external.NewAIClient(cfg.AI)
		aiHandler := handlers.NewAIHandler(quotaGate, featureGate, aiClient, alerts, recorder, srv.Validator, logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, aiHandler.RegisterRoutes)
	} else {
		logger.Warn("AI endpoints disabled by feature flag")
	}

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// newLogger creates a structured JSON logger for the given level string.
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
