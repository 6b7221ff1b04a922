package ceiling

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"babybudget/internal/core"
)

// RedisOptions configures the Redis client.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewRedisClient builds a client; TLS is required by managed Redis offerings.
func NewRedisClient(o RedisOptions) *redis.Client {
	opts := &redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	}
	if o.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

type RedisLookup struct {
	client *redis.Client
}

func NewRedisLookup(client *redis.Client) *RedisLookup {
	return &RedisLookup{client: client}
}

func (r *RedisLookup) GetCeiling(ctx context.Context, userID string) (decimal.Decimal, error) {
	raw, err := r.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrCeilingNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get %s: %w", Key(userID), err)
	}
	return ParseRecord(userID, raw)
}

// SetCeiling writes monthlyBudget into the user record, creating it if needed.
func (r *RedisLookup) SetCeiling(ctx context.Context, userID string, amount decimal.Decimal) error {
	existing, err := r.client.Get(ctx, Key(userID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get %s: %w", Key(userID), err)
	}
	raw, err := EncodeRecord(existing, amount)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, Key(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", Key(userID), err)
	}
	return nil
}

func (r *RedisLookup) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLookup) Close() error {
	return r.client.Close()
}
