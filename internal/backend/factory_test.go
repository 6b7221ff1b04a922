package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babybudget/internal/ceiling"
	"babybudget/internal/config"
	"babybudget/internal/log"
	"babybudget/internal/storage/memory"
	"babybudget/internal/storage/sqlite"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Store: MemoryStore, Ceiling: MemoryCeiling}, false},
		{"bad store", Config{Store: "sheets", Ceiling: MemoryCeiling}, true},
		{"bad ceiling", Config{Store: MemoryStore, Ceiling: "etcd"}, true},
		{"sqlite without path", Config{Store: SQLiteStore, Ceiling: MemoryCeiling}, true},
		{"mongo without uri", Config{Store: MongoStore, Ceiling: MemoryCeiling, MongoDatabase: "db", MongoCollection: "c"}, true},
		{"redis without addr", Config{Store: MemoryStore, Ceiling: RedisCeiling}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	c, err := FromAppConfig(&config.Config{
		DataBackend:     config.BackendSQLite,
		SQLiteDBPath:    "x.db",
		CeilingBackend:  config.BackendRedis,
		RedisAddr:       "localhost:6379",
		RedisDB:         2,
		CeilingCacheTTL: time.Minute,
		StoreTimeout:    3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteStore, c.Store)
	assert.Equal(t, RedisCeiling, c.Ceiling)
	assert.Equal(t, 2, c.Redis.DB)
	assert.Equal(t, 3*time.Second, c.ConnectTimeout)
}

func TestCreateBackend_MemoryWithCache(t *testing.T) {
	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{
		Store:           MemoryStore,
		Ceiling:         MemoryCeiling,
		CeilingCacheTTL: time.Minute,
	})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.IsType(t, &memory.Store{}, res.Store)
	assert.IsType(t, &ceiling.Cached{}, res.Ceilings)
	assert.Len(t, res.Caches, 1)
}

func TestCreateBackend_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Store:        SQLiteStore,
		SQLiteDBPath: filepath.Join(t.TempDir(), "budget.db"),
		Ceiling:      RedisCeiling,
		Redis:        ceiling.RedisOptions{Addr: mr.Addr()},
	})
	require.NoError(t, err)

	assert.IsType(t, &sqlite.Repository{}, res.Store)
	assert.IsType(t, &ceiling.RedisLookup{}, res.Ceilings)
	assert.Empty(t, res.Caches)
	require.NoError(t, res.Store.Ping(context.Background()))
	require.NoError(t, res.Cleanup())
}

func TestCreateBackend_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Store:          MemoryStore,
		Ceiling:        RedisCeiling,
		Redis:          ceiling.RedisOptions{Addr: addr},
		ConnectTimeout: time.Second,
	})
	require.Error(t, err)
}
