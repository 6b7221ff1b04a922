package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babybudget/internal/amqp"
	"babybudget/internal/ceiling"
	"babybudget/internal/core"
	"babybudget/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.BudgetEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.BudgetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *BudgetService
	store    *memory.Store
	ceilings *ceiling.Memory
	events   *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		store:    memory.New(),
		ceilings: ceiling.NewMemory(),
		events:   &recordingPublisher{},
	}
	require.NoError(t, f.ceilings.SetCeiling(context.Background(), "u1", decimal.NewFromInt(500)))
	f.svc = NewBudgetService(f.store, f.ceilings, WithPublisher(f.events), WithStoreTimeout(time.Second))
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func period(year, month int, cats map[string]string) core.PeriodBudget {
	p := core.PeriodBudget{Year: year, Month: month, Categories: map[string]decimal.Decimal{}}
	for k, v := range cats {
		p.Categories[k] = d(v)
	}
	return p
}

func TestSetPeriodBudget_CreatesAndUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"diaperBudget": "100", "foodBudget": "100"}))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Month)

	_, err = f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"foodBudget": "150"}))
	require.NoError(t, err)
	_, err = f.svc.SetPeriodBudget(ctx, "u1", period(2024, 6, map[string]string{"toysBudget": "20"}))
	require.NoError(t, err)

	periods, err := f.svc.ListPeriodBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.True(t, periods[0].Categories["foodBudget"].Equal(d("150")))
	assert.NotContains(t, periods[0].Categories, "diaperBudget")
	assert.Equal(t, []amqp.EventType{amqp.EventPeriodSet, amqp.EventPeriodSet, amqp.EventPeriodSet}, f.events.types())
}

func TestSetPeriodBudget_AtCeilingIsAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SetPeriodBudget(context.Background(), "u1", period(2024, 5, map[string]string{"foodBudget": "500"}))
	require.NoError(t, err)
}

func TestSetPeriodBudget_OverCeilingWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"diaperBudget": "300", "foodBudget": "300"}))
	require.ErrorIs(t, err, core.ErrLimitExceeded)

	_, err = f.svc.ListPeriodBudgets(ctx, "u1")
	require.ErrorIs(t, err, core.ErrNotFound, "no aggregate should have been created")

	_, err = f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"foodBudget": "100"}))
	require.NoError(t, err)
	_, err = f.svc.SetPeriodBudget(ctx, "u1", period(2024, 6, map[string]string{"foodBudget": "600"}))
	require.ErrorIs(t, err, core.ErrLimitExceeded)

	periods, err := f.svc.ListPeriodBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, 5, periods[0].Month)
	assert.Len(t, f.events.types(), 1)
}

func TestSetPeriodBudget_NoCeiling(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SetPeriodBudget(context.Background(), "stranger", period(2024, 5, map[string]string{"foodBudget": "1"}))
	require.ErrorIs(t, err, core.ErrCeilingNotFound)
}

func TestSetPeriodBudget_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 13, nil))
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"foodBudget": "-1"}))
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = f.svc.SetPeriodBudget(ctx, " ", period(2024, 5, nil))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestSpendingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"diaperBudget": "100", "foodBudget": "100"}))
	require.NoError(t, err)

	added, err := f.svc.AddSpending(ctx, "u1", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "formula", Amount: d("30")})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryFood, added.Category)
	assert.True(t, added.TotalSpent.Equal(d("30")))
	uid := added.Spending.UID

	updated, err := f.svc.UpdateSpending(ctx, "u1", uid, core.NewSpending{Category: core.CategoryDiaper, Date: "2024-05-02", ItemName: "wipes", Amount: d("50")})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryDiaper, updated.Category)
	assert.Equal(t, uid, updated.Spending.UID)

	list, err := f.svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list.TotalSpent.Equal(d("50")))
	food, err := f.svc.ListSpendingByCategory(ctx, "u1", "food")
	require.NoError(t, err)
	assert.Empty(t, food.Details)
	assert.NotNil(t, food.Details)

	require.NoError(t, f.svc.DeleteSpending(ctx, "u1", uid))
	list, err = f.svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list.TotalSpent.IsZero())
	diaper, err := f.svc.ListSpendingByCategory(ctx, "u1", "diaper")
	require.NoError(t, err)
	assert.Empty(t, diaper.Details)

	assert.Equal(t, []amqp.EventType{
		amqp.EventPeriodSet,
		amqp.EventSpendingAdded,
		amqp.EventSpendingUpdated,
		amqp.EventSpendingDeleted,
	}, f.events.types())
	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, uid, last.UID)
	assert.True(t, last.TotalSpent.IsZero())
	assert.Equal(t, int64(4), last.Version)
}

func TestAddSpending_RequiresBudget(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddSpending(context.Background(), "u1", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "x", Amount: d("1")})
	require.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestAddSpending_InvalidCategoryBeforeLookup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddSpending(context.Background(), "nobody", core.NewSpending{Category: "groceries", Date: "2024-05-01", ItemName: "x", Amount: d("1")})
	require.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestAddSpendings_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, nil))
	require.NoError(t, err)

	_, err = f.svc.AddSpendings(ctx, "u1", []core.NewSpending{
		{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "a", Amount: d("1")},
		{Category: "groceries", Date: "2024-05-01", ItemName: "b", Amount: d("2")},
	})
	require.ErrorIs(t, err, core.ErrValidation)

	list, err := f.svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list.TotalSpent.IsZero())

	added, err := f.svc.AddSpendings(ctx, "u1", []core.NewSpending{
		{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "a", Amount: d("1.5")},
		{Category: core.CategoryToys, Date: "2024-05-01", ItemName: "b", Amount: d("2.5")},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)

	list, err = f.svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list.TotalSpent.Equal(d("4")))
	require.Len(t, list.Spending, len(core.Categories()))
	assert.Equal(t, core.CategoryDiaper, list.Spending[0].Category)
}

func TestListSpendingByCategory_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListSpendingByCategory(ctx, "u1", "groceries")
	require.ErrorIs(t, err, core.ErrInvalidCategory)
	_, err = f.svc.ListSpendingByCategory(ctx, "u1", "food")
	require.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestUpdateAndDelete_UnknownUID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, nil))
	require.NoError(t, err)

	_, err = f.svc.UpdateSpending(ctx, "u1", "nope", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "x", Amount: d("1")})
	require.ErrorIs(t, err, core.ErrSpendingNotFound)
	require.ErrorIs(t, f.svc.DeleteSpending(ctx, "u1", "nope"), core.ErrSpendingNotFound)
}

func TestDeleteBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.DeleteBudget(ctx, "u1"), core.ErrNotFound)

	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, nil))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteBudget(ctx, "u1"))

	_, err = f.svc.ListSpending(ctx, "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, amqp.EventBudgetDeleted, f.events.types()[1])
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.svc.SetPeriodBudget(context.Background(), "u1", period(2024, 5, nil))
	require.NoError(t, err)
	_, err = f.svc.ListPeriodBudgets(context.Background(), "u1")
	require.NoError(t, err)
}

func TestMonthOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, map[string]string{"foodBudget": "40"}))
	require.NoError(t, err)
	_, err = f.svc.AddSpending(ctx, "u1", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-09", ItemName: "formula", Amount: d("45")})
	require.NoError(t, err)

	ov, err := f.svc.MonthOverview(ctx, "u1", 2024, 5)
	require.NoError(t, err)
	require.Len(t, ov.OverBudget(), 1)

	_, err = f.svc.MonthOverview(ctx, "u1", 2024, 0)
	require.ErrorIs(t, err, core.ErrValidation)
}

// conflictingStore reports a version conflict for the first n saves.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (c *conflictingStore) SaveBudget(ctx context.Context, b *core.Budget) error {
	c.mu.Lock()
	c.saves++
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return core.ErrConflict
	}
	c.mu.Unlock()
	return c.Store.SaveBudget(ctx, b)
}

func TestMutationRetriesOnConflict(t *testing.T) {
	store := &conflictingStore{Store: memory.New()}
	ceilings := ceiling.NewMemory()
	require.NoError(t, ceilings.SetCeiling(context.Background(), "u1", decimal.NewFromInt(500)))
	svc := NewBudgetService(store, ceilings)
	ctx := context.Background()

	_, err := svc.SetPeriodBudget(ctx, "u1", period(2024, 5, nil))
	require.NoError(t, err)

	store.conflicts = 2
	_, err = svc.AddSpending(ctx, "u1", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "x", Amount: d("3")})
	require.NoError(t, err)

	list, err := svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list.Spending[4].Details, 1, "the item is applied exactly once")

	store.conflicts = 3
	_, err = svc.AddSpending(ctx, "u1", core.NewSpending{Category: core.CategoryFood, Date: "2024-05-01", ItemName: "y", Amount: d("3")})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestConcurrentAddsAllLand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetPeriodBudget(ctx, "u1", period(2024, 5, nil))
	require.NoError(t, err)
	f.svc.maxAttempts = 50

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddSpending(ctx, "u1", core.NewSpending{Category: core.CategoryToys, Date: "2024-05-01", ItemName: "toy", Amount: d("1")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := f.svc.ListSpending(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list.TotalSpent.Equal(decimal.NewFromInt(n)))
}
