// Package storage defines the document store port for budget aggregates.
// Implementations live in the memory, sqlite and mongo subpackages.
package storage

import (
	"context"
	"time"

	"babybudget/internal/core"
)

// BudgetStore persists one document per user.
//
// SaveBudget inserts aggregates that were never persisted and otherwise
// replaces the stored document only when its version still matches the
// aggregate's. A mismatch (or a concurrent insert) returns core.ErrConflict
// and leaves the stored document untouched. On success the aggregate is
// marked persisted with the next version.
type BudgetStore interface {
	FindBudget(ctx context.Context, userID string) (*core.Budget, error)
	SaveBudget(ctx context.Context, b *core.Budget) error
	DeleteBudget(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}

// NextRecord prepares the record a store writes for b: the next version
// and fresh timestamps. Stores call MarkPersisted with the returned version
// and UpdatedAt once the write succeeded.
func NextRecord(b *core.Budget, now time.Time) core.BudgetRecord {
	rec := b.Record()
	rec.Version = b.Version() + 1
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	return rec
}
