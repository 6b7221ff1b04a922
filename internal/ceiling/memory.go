package ceiling

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"babybudget/internal/core"
)

// Memory holds raw user records in process, keyed like the Redis backend.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// SetRecord stores a raw user record.
func (m *Memory) SetRecord(userID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[Key(userID)] = append([]byte(nil), raw...)
}

func (m *Memory) SetCeiling(_ context.Context, userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := EncodeRecord(m.records[Key(userID)], amount)
	if err != nil {
		return err
	}
	m.records[Key(userID)] = raw
	return nil
}

func (m *Memory) GetCeiling(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	raw, ok := m.records[Key(userID)]
	m.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrCeilingNotFound, userID)
	}
	return ParseRecord(userID, raw)
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
