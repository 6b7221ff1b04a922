package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"babybudget/internal/amqp"
	"babybudget/internal/backend"
	"babybudget/internal/cli"
	"babybudget/internal/config"
	"babybudget/internal/log"
	"babybudget/internal/metrics"
	"babybudget/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil, log.ComponentWorker), "Configuration validation failed", err,
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}
	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "Worker cannot start", errors.New("AMQP_URL is required"))
	}

	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Worker error", err)
	}
	logger.Info("Worker stopped gracefully")
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

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	m := metrics.New()
	watcher := worker.NewOverspendWatcher(res.Store, logger, m)
	handler := func(ctx context.Context, event *amqp.BudgetEvent) error {
		err := watcher.HandleEvent(ctx, event)
		m.Event("consume", string(event.Type), err)
		return err
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.Use(log.Middleware(logger), log.RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	}))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting overspend watcher", log.FieldOperation, log.OpStartup, "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return client.Consume(gctx, handler)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
