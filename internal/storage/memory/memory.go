// Package memory is an in-process budget store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"babybudget/internal/core"
	"babybudget/internal/storage"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]core.BudgetRecord
	now  func() time.Time
}

func New() *Store {
	return &Store{
		docs: make(map[string]core.BudgetRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) FindBudget(ctx context.Context, userID string) (*core.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	rec, ok := s.docs[userID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	// Records are stored as deep copies, so restoring never aliases.
	return core.RestoreBudget(rec)
}

func (s *Store) SaveBudget(ctx context.Context, b *core.Budget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[b.UserID()]
	switch {
	case b.IsNew() && exists:
		return fmt.Errorf("%w: budget for %s already exists", core.ErrConflict, b.UserID())
	case !b.IsNew() && !exists:
		return fmt.Errorf("%w: budget for %s was deleted", core.ErrConflict, b.UserID())
	case !b.IsNew() && current.Version != b.Version():
		return fmt.Errorf("%w: stored version %d, have %d", core.ErrConflict, current.Version, b.Version())
	}

	rec := storage.NextRecord(b, s.now())
	s.docs[b.UserID()] = rec
	b.MarkPersisted(rec.Version, rec.UpdatedAt)
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[userID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	delete(s.docs, userID)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
