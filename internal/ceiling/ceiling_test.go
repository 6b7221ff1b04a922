package ceiling

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babybudget/internal/core"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		notFound bool
		wantErr  bool
	}{
		{name: "number", raw: `{"googleId":"g","monthlyBudget":500}`, want: "500"},
		{name: "decimal number", raw: `{"monthlyBudget":250.75}`, want: "250.75"},
		{name: "numeric string", raw: `{"monthlyBudget":"300"}`, want: "300"},
		{name: "missing", raw: `{"googleId":"g"}`, notFound: true},
		{name: "null", raw: `{"monthlyBudget":null}`, notFound: true},
		{name: "zero", raw: `{"monthlyBudget":0}`, notFound: true},
		{name: "empty string", raw: `{"monthlyBudget":""}`, notFound: true},
		{name: "malformed json", raw: `{"monthlyBudget":`, wantErr: true},
		{name: "not numeric", raw: `{"monthlyBudget":"lots"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord("u1", []byte(tt.raw))
			switch {
			case tt.notFound:
				require.ErrorIs(t, err, core.ErrCeilingNotFound)
			case tt.wantErr:
				require.Error(t, err)
				require.NotErrorIs(t, err, core.ErrNotFound)
			default:
				require.NoError(t, err)
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			}
		})
	}
}

func TestEncodeRecordKeepsOtherFields(t *testing.T) {
	raw, err := EncodeRecord([]byte(`{"googleId":"g","name":"Ada","monthlyBudget":1}`), decimal.RequireFromString("99.5"))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Ada", m["name"])
	assert.Equal(t, 99.5, m["monthlyBudget"])
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisLookup) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLookup(client)
}

func TestRedisLookup(t *testing.T) {
	mr, lookup := newMiniredis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("user:g-1", `{"googleId":"g-1","monthlyBudget":500}`))

	got, err := lookup.GetCeiling(ctx, "g-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(500)))

	_, err = lookup.GetCeiling(ctx, "g-2")
	require.ErrorIs(t, err, core.ErrCeilingNotFound)

	require.NoError(t, lookup.Ping(ctx))
}

func TestRedisLookup_SetCeiling(t *testing.T) {
	mr, lookup := newMiniredis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("user:g-1", `{"googleId":"g-1"}`))

	require.NoError(t, lookup.SetCeiling(ctx, "g-1", decimal.NewFromInt(750)))
	require.NoError(t, lookup.SetCeiling(ctx, "g-new", decimal.NewFromInt(10)))

	stored, err := mr.Get("user:g-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"googleId":"g-1","monthlyBudget":750}`, stored)

	got, err := lookup.GetCeiling(ctx, "g-new")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(10)))
}

func TestRedisLookup_ServerDown(t *testing.T) {
	mr, lookup := newMiniredis(t)
	mr.Close()

	_, err := lookup.GetCeiling(context.Background(), "g-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrNotFound)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetCeiling(ctx, "u1")
	require.ErrorIs(t, err, core.ErrCeilingNotFound)

	require.NoError(t, m.SetCeiling(ctx, "u1", decimal.NewFromInt(200)))
	got, err := m.GetCeiling(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(200)))

	m.SetRecord("u2", []byte(`{"monthlyBudget":0}`))
	_, err = m.GetCeiling(ctx, "u2")
	require.ErrorIs(t, err, core.ErrCeilingNotFound)
}

type countingLookup struct {
	Lookup
	calls atomic.Int32
}

func (c *countingLookup) GetCeiling(ctx context.Context, userID string) (decimal.Decimal, error) {
	c.calls.Add(1)
	return c.Lookup.GetCeiling(ctx, userID)
}

func TestCached(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SetCeiling(ctx, "u1", decimal.NewFromInt(100)))
	counting := &countingLookup{Lookup: mem}

	lookup := NewCached(counting, time.Minute, 10)
	for i := 0; i < 3; i++ {
		got, err := lookup.GetCeiling(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(100)))
	}
	assert.Equal(t, int32(1), counting.calls.Load())

	// Misses are not cached.
	_, err := lookup.GetCeiling(ctx, "u2")
	require.ErrorIs(t, err, core.ErrCeilingNotFound)
	require.NoError(t, mem.SetCeiling(ctx, "u2", decimal.NewFromInt(5)))
	_, err = lookup.GetCeiling(ctx, "u2")
	require.NoError(t, err)

	cached := lookup.(*Cached)
	cached.Invalidate("u1")
	_, err = lookup.GetCeiling(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(4), counting.calls.Load())
}

func TestCachedDisabled(t *testing.T) {
	mem := NewMemory()
	assert.Same(t, Lookup(mem), NewCached(mem, 0, 10))
}
