package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"babybudget/internal/amqp"
	"babybudget/internal/auth"
	"babybudget/internal/backend"
	"babybudget/internal/cache"
	"babybudget/internal/cli"
	"babybudget/internal/config"
	apphttp "babybudget/internal/http"
	"babybudget/internal/log"
	"babybudget/internal/metrics"
	"babybudget/internal/middleware/ratelimit"
	"babybudget/internal/services"
)

const (
	shutdownTimeout    = 30 * time.Second
	cacheCleanInterval = time.Minute
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil, log.ComponentApp), "Configuration validation failed", err,
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}

	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	m := metrics.New()
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithStoreTimeout(cfg.StoreTimeout),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are best effort; the API works without them.
			logger.Warn("Failed to initialize AMQP client, continuing without budget events", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(countingPublisher{next: client, metrics: m}))
			logger.Info("Budget events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	svc := services.NewBudgetService(res.Store, res.Ceilings, opts...)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:  logger,
		Tokens:  tokens,
		Limiter: limiter,
		Metrics: m,
	})

	caches := cache.NewManager(logger)
	for _, c := range res.Caches {
		caches.Register(c)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting babybudget server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"ceiling_backend", cfg.CeilingBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, cacheCleanInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// countingPublisher records every publish attempt in metrics.
type countingPublisher struct {
	next    services.EventPublisher
	metrics *metrics.Metrics
}

func (p countingPublisher) Publish(ctx context.Context, event *amqp.BudgetEvent) error {
	err := p.next.Publish(ctx, event)
	p.metrics.Event("publish", string(event.Type), err)
	return err
}
