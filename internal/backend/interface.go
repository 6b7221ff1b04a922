package backend

import (
	"context"

	"babybudget/internal/cache"
	"babybudget/internal/ceiling"
	"babybudget/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result holds the constructed store and ceiling lookup.
type Result struct {
	Store    storage.BudgetStore
	Ceilings ceiling.Lookup
	// Caches lists in-process caches that need periodic expiry.
	Caches  []cache.Cleaner
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// StoreType selects the document store.
type StoreType string

const (
	MemoryStore StoreType = "memory"
	SQLiteStore StoreType = "sqlite"
	MongoStore  StoreType = "mongo"
)

func (t StoreType) IsValid() bool {
	switch t {
	case MemoryStore, SQLiteStore, MongoStore:
		return true
	}
	return false
}

func (t StoreType) String() string { return string(t) }

// CeilingType selects where monthly ceilings are read from.
type CeilingType string

const (
	MemoryCeiling CeilingType = "memory"
	RedisCeiling  CeilingType = "redis"
)

func (t CeilingType) IsValid() bool {
	return t == MemoryCeiling || t == RedisCeiling
}

func (t CeilingType) String() string { return string(t) }
