package backend

import (
	"fmt"
	"time"

	"babybudget/internal/ceiling"
	"babybudget/internal/config"
)

type Config struct {
	Store        StoreType
	SQLiteDBPath string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	ConnectTimeout  time.Duration

	Ceiling         CeilingType
	Redis           ceiling.RedisOptions
	CeilingCacheTTL time.Duration
	CeilingCacheMax int
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Store:           StoreType(appConfig.DataBackend),
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		MongoURI:        appConfig.MongoURI,
		MongoDatabase:   appConfig.MongoDatabase,
		MongoCollection: appConfig.MongoCollection,
		ConnectTimeout:  appConfig.StoreTimeout,
		Ceiling:         CeilingType(appConfig.CeilingBackend),
		Redis: ceiling.RedisOptions{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
			TLS:      appConfig.RedisTLS,
		},
		CeilingCacheTTL: appConfig.CeilingCacheTTL,
	}
	return c, c.Validate()
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if !c.Ceiling.IsValid() {
		return fmt.Errorf("invalid ceiling type: %s", c.Ceiling)
	}

	switch c.Store {
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite store")
		}
	case MongoStore:
		if c.MongoURI == "" || c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("MongoDB URI, database and collection are required for mongo store")
		}
	}

	if c.Ceiling == RedisCeiling && c.Redis.Addr == "" {
		return fmt.Errorf("Redis address is required for redis ceilings")
	}
	return nil
}
