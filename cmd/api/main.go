package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/listingforge-backend/api/routes"
	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/generation"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	stripewebhook "github.com/angelmondragon/listingforge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/db"
	"github.com/angelmondragon/listingforge-backend/pkg/generator"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	"github.com/angelmondragon/listingforge-backend/pkg/metrics"
	"github.com/angelmondragon/listingforge-backend/pkg/migrate"
	"github.com/angelmondragon/listingforge-backend/pkg/redis"
	"github.com/angelmondragon/listingforge-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	defer func() {
		if err := multierr.Append(dbClient.Close(), redisClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	requireResource(ctx, logg, "sqlite schema", dbClient.EnsureSQLiteSchema(ctx))
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	creditMetrics := metrics.NewCreditMetrics(registry)

	channelService, err := channels.NewService(channels.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "channel service", err)
	if cfg.FeatureFlags.SeedChannels {
		requireResource(ctx, logg, "channel catalog", channelService.Seed(ctx, channels.DefaultCatalog()))
	}

	creditService, err := credits.NewService(credits.ServiceParams{
		Repo:              credits.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Metrics:           creditMetrics,
		Logger:            logg,
		DefaultPlan:       cfg.Credits.DefaultPlan,
	})
	requireResource(ctx, logg, "credit service", err)

	listingService, err := listings.NewService(listings.ServiceParams{
		Repo:              listings.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Channels:          channelService,
		Accounts:          creditService,
		Logger:            logg,
	})
	requireResource(ctx, logg, "listing service", err)

	var provider *generator.Client
	if cfg.Generation.BaseURL != "" {
		provider, err = generator.NewClient(cfg.Generation.BaseURL, cfg.Generation.APIKey, generator.WithTimeout(cfg.Generation.Timeout))
		requireResource(ctx, logg, "generation provider", err)
	} else {
		logg.Warn(ctx, "generation provider not configured; paid actions will fail with dependency errors")
	}

	generationService, err := generation.NewService(generation.ServiceParams{
		Credits:  creditService,
		Listings: listingService,
		Provider: provider,
		Metrics:  creditMetrics,
		Logger:   logg,
	})
	requireResource(ctx, logg, "generation service", err)

	var webhook routes.StripeWebhook
	if cfg.Stripe.Enabled() {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe client", err)

		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Credits:      creditService,
			StripeClient: stripeClient,
			Logger:       logg,
		})
		requireResource(ctx, logg, "stripe webhook service", err)

		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook:"+cfg.Stripe.Environment())
		requireResource(ctx, logg, "stripe webhook guard", err)

		webhook = routes.StripeWebhook{Client: stripeClient, Service: webhookService, Guard: guard}
	} else {
		logg.Warn(ctx, "stripe not configured; credit-grant webhook disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			creditService,
			listingService,
			channelService,
			generationService,
			webhook,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			stop()
			return
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logg.Info(logCtx, "shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(logCtx, "graceful shutdown failed", err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
