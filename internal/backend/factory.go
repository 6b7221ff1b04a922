// Package backend builds the document store and ceiling lookup selected by
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"babybudget/internal/cache"
	"babybudget/internal/ceiling"
	"babybudget/internal/log"
	"babybudget/internal/storage"
	"babybudget/internal/storage/memory"
	"babybudget/internal/storage/mongo"
	"babybudget/internal/storage/sqlite"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store, then the ceiling lookup. If the lookup
// fails the store is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		f.logger.Error("Store initialization failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldBackend, config.Store.String())
		return nil, err
	}

	lookup, closeLookup, err := f.createCeilings(ctx, config)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	res := &Result{
		Store:    store,
		Ceilings: lookup,
		Cleanup: func() error {
			return errors.Join(store.Close(), closeLookup())
		},
	}
	if c, ok := lookup.(cache.Cleaner); ok {
		res.Caches = append(res.Caches, c)
	}
	return res, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.BudgetStore, error) {
	switch config.Store {
	case SQLiteStore:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil

	case MongoStore:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout(config))
		defer cancel()
		store, err := mongo.Connect(connectCtx, config.MongoURI, config.MongoDatabase, config.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		f.logger.Info("Initialized MongoDB store",
			"database", config.MongoDatabase,
			"collection", config.MongoCollection)
		return store, nil

	default:
		f.logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}

func (f *DefaultFactory) createCeilings(ctx context.Context, config Config) (ceiling.Lookup, func() error, error) {
	var (
		lookup  ceiling.Lookup
		closeFn = func() error { return nil }
		logger  = f.logger.WithComponent(log.ComponentCeiling)
	)

	switch config.Ceiling {
	case RedisCeiling:
		redisLookup := ceiling.NewRedisLookup(ceiling.NewRedisClient(config.Redis))
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(config))
		defer cancel()
		if err := redisLookup.Ping(pingCtx); err != nil {
			_ = redisLookup.Close()
			return nil, nil, fmt.Errorf("failed to reach Redis at %s: %w", config.Redis.Addr, err)
		}
		lookup, closeFn = redisLookup, redisLookup.Close
		logger.Info("Initialized Redis ceiling lookup", "addr", config.Redis.Addr, "tls", config.Redis.TLS)

	default:
		lookup = ceiling.NewMemory()
		logger.Warn("Using in-memory ceilings, every user starts without a monthly budget")
	}

	if config.CeilingCacheTTL > 0 {
		lookup = ceiling.NewCached(lookup, config.CeilingCacheTTL, config.CeilingCacheMax)
		logger.Info("Ceiling cache enabled", "ttl", config.CeilingCacheTTL.String())
	}
	return lookup, closeFn, nil
}

func connectTimeout(config Config) time.Duration {
	if config.ConnectTimeout > 0 {
		return config.ConnectTimeout
	}
	return 10 * time.Second
}
