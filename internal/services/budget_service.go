package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"babybudget/internal/amqp"
	"babybudget/internal/ceiling"
	"babybudget/internal/core"
	"babybudget/internal/log"
	"babybudget/internal/storage"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultMaxAttempts  = 3
)

// EventPublisher delivers budget events. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.BudgetEvent) error
}

// BudgetService orchestrates budget operations across the document store,
// the ceiling lookup and the event publisher.
type BudgetService struct {
	store       storage.BudgetStore
	ceilings    ceiling.Lookup
	publisher   EventPublisher
	logger      *log.Logger
	audit       *log.StructuredLogger
	timeout     time.Duration
	maxAttempts int
}

type Option func(*BudgetService)

// WithPublisher enables budget events.
func WithPublisher(p EventPublisher) Option {
	return func(s *BudgetService) { s.publisher = p }
}

// WithStoreTimeout bounds every store and ceiling call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *BudgetService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *BudgetService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentBudget)
		}
	}
}

func NewBudgetService(store storage.BudgetStore, ceilings ceiling.Lookup, opts ...Option) *BudgetService {
	s := &BudgetService{
		store:       store,
		ceilings:    ceilings,
		logger:      log.Discard(),
		timeout:     defaultStoreTimeout,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = log.NewStructuredLogger(s.logger)
	return s
}

type (
	// AddedSpending is the result of adding a single item.
	AddedSpending struct {
		Category   core.Category     `json:"category"`
		Spending   core.SpendingItem `json:"spending"`
		TotalSpent decimal.Decimal   `json:"totalSpent"`
	}

	// SpendingList is every category with its items.
	SpendingList struct {
		UserID     string                  `json:"userId"`
		Spending   []core.CategorySpending `json:"spending"`
		TotalSpent decimal.Decimal         `json:"totalSpent"`
	}

	// CategoryList is the items of one category.
	CategoryList struct {
		UserID   string              `json:"userId"`
		Category core.Category       `json:"category"`
		Details  []core.SpendingItem `json:"details"`
	}
)

// SetPeriodBudget validates the proposal against the user's ceiling and only
// then upserts it, creating the aggregate on first use. A proposal over the
// ceiling is rejected before anything is written.
func (s *BudgetService) SetPeriodBudget(ctx context.Context, userID string, p core.PeriodBudget) (core.PeriodBudget, error) {
	if err := checkUser(userID); err != nil {
		return core.PeriodBudget{}, err
	}
	if err := p.Validate(); err != nil {
		return core.PeriodBudget{}, err
	}

	total := p.Total()
	limit, err := s.ceiling(ctx, userID)
	if err != nil {
		return core.PeriodBudget{}, err
	}
	if total.GreaterThan(limit) {
		s.logger.WarnContext(ctx, "Period budget over ceiling",
			log.FieldUserID, userID,
			log.FieldYear, p.Year,
			log.FieldMonth, p.Month,
			"proposed", total.String(),
			"ceiling", limit.String())
		return core.PeriodBudget{}, fmt.Errorf("%w: proposed %s, ceiling %s", core.ErrBudgetExceedsCeiling, total, limit)
	}

	var stored core.PeriodBudget
	b, err := s.mutate(ctx, userID, true, func(b *core.Budget) error {
		if err := b.SetPeriod(p); err != nil {
			return err
		}
		stored, _ = b.Period(p.Year, p.Month)
		return nil
	})
	if err != nil {
		return core.PeriodBudget{}, err
	}

	event := amqp.NewBudgetEvent(amqp.EventPeriodSet, userID)
	event.Year, event.Month = p.Year, p.Month
	event.Amount = total
	s.publish(ctx, b, event)
	return stored, nil
}

// ListPeriodBudgets returns every period budget in stored order.
func (s *BudgetService) ListPeriodBudgets(ctx context.Context, userID string) ([]core.PeriodBudget, error) {
	b, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.PeriodBudgets(), nil
}

// AddSpending records one item. The aggregate must already exist.
func (s *BudgetService) AddSpending(ctx context.Context, userID string, n core.NewSpending) (AddedSpending, error) {
	if err := checkUser(userID); err != nil {
		return AddedSpending{}, err
	}
	if err := n.Validate(); err != nil {
		return AddedSpending{}, err
	}

	var entry core.SpendingEntry
	b, err := s.mutate(ctx, userID, false, func(b *core.Budget) error {
		var err error
		entry, err = b.AddSpending(n)
		return err
	})
	if err != nil {
		return AddedSpending{}, err
	}

	s.audit.LogSpendingChanged(ctx, log.OpCreate, userID, entry.Category.String(), entry.Spending.UID, entry.Spending.Amount, b.TotalSpent())
	s.publish(ctx, b, amqp.NewBudgetEvent(amqp.EventSpendingAdded, userID).WithSpending(entry))
	return AddedSpending{Category: entry.Category, Spending: entry.Spending, TotalSpent: b.TotalSpent()}, nil
}

// AddSpendings records several items in one write. Every item is validated
// first; one invalid item rejects the whole batch.
func (s *BudgetService) AddSpendings(ctx context.Context, userID string, items []core.NewSpending) ([]core.SpendingEntry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	var added []core.SpendingEntry
	b, err := s.mutate(ctx, userID, false, func(b *core.Budget) error {
		var err error
		added, err = b.AddSpendingBatch(items)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range added {
		s.publish(ctx, b, amqp.NewBudgetEvent(amqp.EventSpendingAdded, userID).WithSpending(entry))
	}
	s.logger.InfoContext(ctx, "Spendings added", log.FieldUserID, userID, "count", len(added), log.FieldTotalSpent, b.TotalSpent().String())
	return added, nil
}

// ListSpending returns every category, in declaration order, with its items.
func (s *BudgetService) ListSpending(ctx context.Context, userID string) (SpendingList, error) {
	b, err := s.load(ctx, userID)
	if err != nil {
		return SpendingList{}, err
	}
	return SpendingList{UserID: b.UserID(), Spending: b.Spending(), TotalSpent: b.TotalSpent()}, nil
}

// ListSpendingByCategory returns one category's items; an unknown category is
// a validation error even when the user has no budget.
func (s *BudgetService) ListSpendingByCategory(ctx context.Context, userID, category string) (CategoryList, error) {
	cat, err := core.ParseCategory(category)
	if err != nil {
		return CategoryList{}, err
	}
	b, err := s.load(ctx, userID)
	if err != nil {
		return CategoryList{}, err
	}
	return CategoryList{UserID: b.UserID(), Category: cat, Details: b.SpendingFor(cat)}, nil
}

// UpdateSpending replaces the item with the given uid, wherever it lives.
func (s *BudgetService) UpdateSpending(ctx context.Context, userID, uid string, n core.NewSpending) (core.SpendingEntry, error) {
	if err := checkUser(userID); err != nil {
		return core.SpendingEntry{}, err
	}
	if err := n.Validate(); err != nil {
		return core.SpendingEntry{}, err
	}

	var entry core.SpendingEntry
	b, err := s.mutate(ctx, userID, false, func(b *core.Budget) error {
		var err error
		entry, err = b.UpdateSpending(uid, n)
		return err
	})
	if err != nil {
		return core.SpendingEntry{}, err
	}

	s.audit.LogSpendingChanged(ctx, log.OpUpdate, userID, entry.Category.String(), uid, entry.Spending.Amount, b.TotalSpent())
	s.publish(ctx, b, amqp.NewBudgetEvent(amqp.EventSpendingUpdated, userID).WithSpending(entry))
	return entry, nil
}

// DeleteSpending removes the item with the given uid.
func (s *BudgetService) DeleteSpending(ctx context.Context, userID, uid string) error {
	if err := checkUser(userID); err != nil {
		return err
	}

	var removed core.SpendingEntry
	b, err := s.mutate(ctx, userID, false, func(b *core.Budget) error {
		var err error
		removed, err = b.DeleteSpending(uid)
		return err
	})
	if err != nil {
		return err
	}

	s.audit.LogSpendingChanged(ctx, log.OpDelete, userID, removed.Category.String(), uid, removed.Spending.Amount, b.TotalSpent())
	s.publish(ctx, b, amqp.NewBudgetEvent(amqp.EventSpendingDeleted, userID).WithSpending(removed))
	return nil
}

// DeleteBudget removes the user's aggregate.
func (s *BudgetService) DeleteBudget(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.DeleteBudget(storeCtx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Budget deleted", log.FieldUserID, userID)
	s.publish(ctx, nil, amqp.NewBudgetEvent(amqp.EventBudgetDeleted, userID))
	return nil
}

// MonthOverview compares one month's spending with its period budget.
func (s *BudgetService) MonthOverview(ctx context.Context, userID string, year, month int) (core.MonthOverview, error) {
	if err := (core.PeriodBudget{Year: year, Month: month}).Validate(); err != nil {
		return core.MonthOverview{}, err
	}
	b, err := s.load(ctx, userID)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return b.Overview(year, month)
}

// Ready checks the store and ceiling backends.
func (s *BudgetService) Ready(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := s.ceilings.Ping(ctx); err != nil {
		return fmt.Errorf("ceiling: %w", err)
	}
	return nil
}

// mutate runs a read-modify-write against the user's document, re-reading
// and re-applying fn when another writer got there first.
func (s *BudgetService) mutate(ctx context.Context, userID string, createIfMissing bool, fn func(b *core.Budget) error) (*core.Budget, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		b, err := s.load(ctx, userID)
		if err != nil {
			if !createIfMissing || !errors.Is(err, core.ErrBudgetNotFound) {
				return nil, err
			}
			if b, err = core.NewBudget(userID); err != nil {
				return nil, err
			}
		}

		if err := fn(b); err != nil {
			return nil, err
		}

		err = s.save(ctx, b)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.WarnContext(ctx, "Concurrent budget write, retrying",
			log.FieldUserID, userID,
			log.FieldAttempt, attempt)
	}
	return nil, fmt.Errorf("save budget %s after %d attempts: %w", userID, s.maxAttempts, lastErr)
}

func (s *BudgetService) load(ctx context.Context, userID string) (*core.Budget, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.FindBudget(ctx, userID)
}

func (s *BudgetService) save(ctx context.Context, b *core.Budget) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.SaveBudget(ctx, b)
}

func (s *BudgetService) ceiling(ctx context.Context, userID string) (decimal.Decimal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.ceilings.GetCeiling(ctx, userID)
}

func (s *BudgetService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// publish sends an event for a committed change. Failures are logged only:
// the write already happened.
func (s *BudgetService) publish(ctx context.Context, b *core.Budget, event *amqp.BudgetEvent) {
	if s.publisher == nil {
		return
	}
	if b != nil {
		event.Version = b.Version()
		event.TotalSpent = b.TotalSpent()
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish budget event",
			log.FieldEventType, event.Type,
			log.FieldUserID, event.UserID,
			log.FieldError, err)
	}
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUserID
	}
	return nil
}

// Close releases the store.
func (s *BudgetService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
