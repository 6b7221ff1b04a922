// Package storagetest holds behaviour tests shared by every BudgetStore.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babybudget/internal/core"
	"babybudget/internal/storage"
)

// Run exercises a store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.BudgetStore) {
	t.Run("find missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindBudget(context.Background(), "nobody")
		require.ErrorIs(t, err, core.ErrBudgetNotFound)
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("insert then find", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		b := sampleBudget(t, "u1")

		require.NoError(t, s.SaveBudget(ctx, b))
		assert.Equal(t, int64(1), b.Version())
		assert.False(t, b.CreatedAt().IsZero())

		got, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID())
		assert.Equal(t, int64(1), got.Version())
		assert.True(t, got.TotalSpent().Equal(decimal.RequireFromString("42.75")), "total %s", got.TotalSpent())
		assert.Len(t, got.SpendingFor(core.CategoryFood), 1)
		assert.Len(t, got.SpendingFor(core.CategoryDiaper), 1)

		p, ok := got.Period(2024, 5)
		require.True(t, ok)
		assert.True(t, p.Categories["diaperBudget"].Equal(decimal.NewFromInt(100)))

		orig := b.SpendingFor(core.CategoryFood)[0]
		loaded := got.SpendingFor(core.CategoryFood)[0]
		assert.Equal(t, orig.UID, loaded.UID)
		assert.Equal(t, orig.Date, loaded.Date)
		assert.Equal(t, orig.ItemName, loaded.ItemName)
		assert.True(t, orig.Amount.Equal(loaded.Amount))
	})

	t.Run("update bumps version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		b := sampleBudget(t, "u1")
		require.NoError(t, s.SaveBudget(ctx, b))

		loaded, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		_, err = loaded.AddSpending(core.NewSpending{Category: core.CategoryToys, Date: "2024-05-03", ItemName: "rattle", Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)
		require.NoError(t, s.SaveBudget(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version())

		again, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), again.Version())
		assert.True(t, again.TotalSpent().Equal(decimal.RequireFromString("47.75")))
		assert.Equal(t, loaded.CreatedAt().Unix(), again.CreatedAt().Unix())
	})

	t.Run("stale write conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveBudget(ctx, sampleBudget(t, "u1")))

		first, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		second, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)

		_, err = first.DeleteSpending(first.SpendingFor(core.CategoryFood)[0].UID)
		require.NoError(t, err)
		require.NoError(t, s.SaveBudget(ctx, first))

		_, err = second.AddSpending(core.NewSpending{Category: core.CategoryOther, Date: "2024-05-04", ItemName: "x", Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		err = s.SaveBudget(ctx, second)
		require.ErrorIs(t, err, core.ErrConflict)

		stored, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, stored.SpendingFor(core.CategoryOther))
		assert.Empty(t, stored.SpendingFor(core.CategoryFood))
	})

	t.Run("duplicate insert conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveBudget(ctx, sampleBudget(t, "u1")))
		err := s.SaveBudget(ctx, sampleBudget(t, "u1"))
		require.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveBudget(ctx, sampleBudget(t, "u1")))
		require.NoError(t, s.SaveBudget(ctx, sampleBudget(t, "u2")))

		require.NoError(t, s.DeleteBudget(ctx, "u1"))
		_, err := s.FindBudget(ctx, "u1")
		require.ErrorIs(t, err, core.ErrNotFound)
		require.ErrorIs(t, s.DeleteBudget(ctx, "u1"), core.ErrNotFound)

		_, err = s.FindBudget(ctx, "u2")
		require.NoError(t, err, "other users are unaffected")
	})

	t.Run("concurrent writers keep one winner per version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SaveBudget(ctx, sampleBudget(t, "u1")))

		const writers = 8
		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			b, err := s.FindBudget(ctx, "u1")
			require.NoError(t, err)
			wg.Add(1)
			go func(b *core.Budget) {
				defer wg.Done()
				_, _ = b.AddSpending(core.NewSpending{Category: core.CategoryOther, Date: "2024-05-05", ItemName: "x", Amount: decimal.NewFromInt(1)})
				results <- s.SaveBudget(ctx, b)
			}(b)
		}
		wg.Wait()
		close(results)

		ok := 0
		for err := range results {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, core.ErrConflict)
		}
		assert.Equal(t, 1, ok)

		stored, err := s.FindBudget(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, stored.SpendingFor(core.CategoryOther), 1)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func sampleBudget(t *testing.T, userID string) *core.Budget {
	t.Helper()
	b, err := core.NewBudget(userID)
	require.NoError(t, err)
	require.NoError(t, b.SetPeriod(core.PeriodBudget{Year: 2024, Month: 5, Categories: map[string]decimal.Decimal{
		"diaperBudget": decimal.NewFromInt(100),
		"foodBudget":   decimal.RequireFromString("80.50"),
	}}))
	_, err = b.AddSpendingBatch([]core.NewSpending{
		{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "formula", Amount: decimal.RequireFromString("30.25")},
		{Category: core.CategoryDiaper, Date: "2024-05-02", ItemName: "wipes", Amount: decimal.RequireFromString("12.50")},
	})
	require.NoError(t, err)
	return b
}
