package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget is the per-user aggregate holding period budgets and all spending.
//
// The running total is private: it only changes together with the item
// sequences, through the mutation methods below.
type Budget struct {
	userID     string
	periods    []PeriodBudget
	spending   map[Category][]SpendingItem
	totalSpent decimal.Decimal

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// CategorySpending pairs a category with its items.
type CategorySpending struct {
	Category Category       `json:"category"`
	Details  []SpendingItem `json:"details"`
}

// SpendingEntry is a single item together with the category holding it.
type SpendingEntry struct {
	Category Category     `json:"category"`
	Spending SpendingItem `json:"spending"`
}

// BudgetRecord is the persisted form of a Budget. Stores read and write it;
// TotalSpent is informational and recomputed on restore.
type BudgetRecord struct {
	UserID        string                      `json:"userId"`
	PeriodBudgets []PeriodBudget              `json:"periodBudgets"`
	Spending      map[Category][]SpendingItem `json:"spending"`
	TotalSpent    decimal.Decimal             `json:"totalSpent"`
	Version       int64                       `json:"version"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// newUID generates spending item ids.
var newUID = uuid.NewString

// NewBudget returns an empty, not yet persisted aggregate.
func NewBudget(userID string) (*Budget, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return &Budget{
		userID:     userID,
		spending:   make(map[Category][]SpendingItem, len(categories)),
		totalSpent: decimal.Zero,
	}, nil
}

// RestoreBudget rebuilds an aggregate from its persisted record.
func RestoreBudget(rec BudgetRecord) (*Budget, error) {
	b, err := NewBudget(rec.UserID)
	if err != nil {
		return nil, err
	}
	for _, p := range rec.PeriodBudgets {
		b.periods = append(b.periods, p.clone())
	}
	for cat, items := range rec.Spending {
		if !cat.Valid() {
			return nil, fmt.Errorf("restore budget %s: %w: %q", rec.UserID, ErrInvalidCategory, string(cat))
		}
		if len(items) == 0 {
			continue
		}
		b.spending[cat] = append([]SpendingItem(nil), items...)
	}
	b.totalSpent = b.recomputeTotal()
	b.version = rec.Version
	b.createdAt = rec.CreatedAt
	b.updatedAt = rec.UpdatedAt
	return b, nil
}

// Record returns a deep copy of the aggregate in persisted form.
func (b *Budget) Record() BudgetRecord {
	rec := BudgetRecord{
		UserID:        b.userID,
		PeriodBudgets: b.PeriodBudgets(),
		Spending:      make(map[Category][]SpendingItem, len(categories)),
		TotalSpent:    b.totalSpent,
		Version:       b.version,
		CreatedAt:     b.createdAt,
		UpdatedAt:     b.updatedAt,
	}
	for _, cat := range categories {
		rec.Spending[cat] = b.SpendingFor(cat)
	}
	return rec
}

func (b *Budget) UserID() string              { return b.userID }
func (b *Budget) TotalSpent() decimal.Decimal { return b.totalSpent }
func (b *Budget) Version() int64              { return b.version }
func (b *Budget) CreatedAt() time.Time        { return b.createdAt }
func (b *Budget) UpdatedAt() time.Time        { return b.updatedAt }

// IsNew reports whether the aggregate has never been persisted.
func (b *Budget) IsNew() bool { return b.version == 0 }

// MarkPersisted records a successful write by a store.
func (b *Budget) MarkPersisted(version int64, at time.Time) {
	if b.createdAt.IsZero() {
		b.createdAt = at
	}
	b.version = version
	b.updatedAt = at
}

// PeriodBudgets returns a copy of all period budgets in stored order.
func (b *Budget) PeriodBudgets() []PeriodBudget {
	out := make([]PeriodBudget, 0, len(b.periods))
	for _, p := range b.periods {
		out = append(out, p.clone())
	}
	return out
}

// Period returns the budget for one year/month.
func (b *Budget) Period(year, month int) (PeriodBudget, bool) {
	for _, p := range b.periods {
		if p.Year == year && p.Month == month {
			return p.clone(), true
		}
	}
	return PeriodBudget{}, false
}

// SetPeriod upserts the budget for p's year/month: an existing entry has its
// categories replaced, otherwise p is appended.
func (b *Budget) SetPeriod(p PeriodBudget) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.clone()
	for i := range b.periods {
		if b.periods[i].Year == p.Year && b.periods[i].Month == p.Month {
			b.periods[i].Categories = p.Categories
			return nil
		}
	}
	b.periods = append(b.periods, p)
	return nil
}

// SpendingFor returns a copy of the items recorded under cat. Unknown
// categories yield an empty slice.
func (b *Budget) SpendingFor(cat Category) []SpendingItem {
	items := b.spending[cat]
	out := make([]SpendingItem, len(items))
	copy(out, items)
	return out
}

// Spending returns every category, in declaration order, with its items.
func (b *Budget) Spending() []CategorySpending {
	out := make([]CategorySpending, 0, len(categories))
	for _, cat := range categories {
		out = append(out, CategorySpending{Category: cat, Details: b.SpendingFor(cat)})
	}
	return out
}

// AddSpending appends a new item under its category and adds its amount to
// the running total.
func (b *Budget) AddSpending(n NewSpending) (SpendingEntry, error) {
	if err := n.Validate(); err != nil {
		return SpendingEntry{}, err
	}
	return b.appendItem(n.Category, SpendingItem{
		UID:      newUID(),
		Date:     strings.TrimSpace(n.Date),
		ItemName: strings.TrimSpace(n.ItemName),
		Amount:   n.Amount,
	}), nil
}

// AddSpendingBatch validates every entry before applying any of them, so a
// single invalid entry leaves the aggregate untouched.
func (b *Budget) AddSpendingBatch(entries []NewSpending) ([]SpendingEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no spendings provided", ErrValidation)
	}
	for i, n := range entries {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("spending %d: %w", i, err)
		}
	}
	added := make([]SpendingEntry, 0, len(entries))
	for _, n := range entries {
		added = append(added, b.appendItem(n.Category, SpendingItem{
			UID:      newUID(),
			Date:     strings.TrimSpace(n.Date),
			ItemName: strings.TrimSpace(n.ItemName),
			Amount:   n.Amount,
		}))
	}
	return added, nil
}

// UpdateSpending replaces the item identified by uid with the new values.
// The replacement keeps the uid and is appended to the new category, which
// may differ from the one it was found in.
func (b *Budget) UpdateSpending(uid string, n NewSpending) (SpendingEntry, error) {
	if err := n.Validate(); err != nil {
		return SpendingEntry{}, err
	}
	cat, idx, ok := b.locate(uid)
	if !ok {
		return SpendingEntry{}, fmt.Errorf("%w: uid %s", ErrSpendingNotFound, uid)
	}
	b.removeAt(cat, idx)
	return b.appendItem(n.Category, SpendingItem{
		UID:      uid,
		Date:     strings.TrimSpace(n.Date),
		ItemName: strings.TrimSpace(n.ItemName),
		Amount:   n.Amount,
	}), nil
}

// DeleteSpending removes the item identified by uid and subtracts its amount.
func (b *Budget) DeleteSpending(uid string) (SpendingEntry, error) {
	cat, idx, ok := b.locate(uid)
	if !ok {
		return SpendingEntry{}, fmt.Errorf("%w: uid %s", ErrSpendingNotFound, uid)
	}
	removed := b.removeAt(cat, idx)
	return SpendingEntry{Category: cat, Spending: removed}, nil
}

func (b *Budget) locate(uid string) (Category, int, bool) {
	if uid == "" {
		return "", 0, false
	}
	for _, cat := range categories {
		for i, item := range b.spending[cat] {
			if item.UID == uid {
				return cat, i, true
			}
		}
	}
	return "", 0, false
}

// appendItem and removeAt are the only places the running total changes.
func (b *Budget) appendItem(cat Category, item SpendingItem) SpendingEntry {
	b.spending[cat] = append(b.spending[cat], item)
	b.totalSpent = b.totalSpent.Add(item.Amount)
	return SpendingEntry{Category: cat, Spending: item}
}

func (b *Budget) removeAt(cat Category, idx int) SpendingItem {
	items := b.spending[cat]
	removed := items[idx]
	b.spending[cat] = append(items[:idx:idx], items[idx+1:]...)
	b.totalSpent = b.totalSpent.Sub(removed.Amount)
	return removed
}

func (b *Budget) recomputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, items := range b.spending {
		for _, item := range items {
			total = total.Add(item.Amount)
		}
	}
	return total
}
