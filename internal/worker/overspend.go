// Package worker consumes budget events and flags categories that went over
// their monthly budget.
package worker

import (
	"context"
	"errors"
	"fmt"

	"babybudget/internal/amqp"
	"babybudget/internal/core"
	"babybudget/internal/log"
)

// BudgetReader is the read side of the document store.
type BudgetReader interface {
	FindBudget(ctx context.Context, userID string) (*core.Budget, error)
}

// Recorder receives overspend alerts, e.g. for metrics.
type Recorder interface {
	Overspend(category string)
}

type OverspendWatcher struct {
	store    BudgetReader
	logger   *log.Logger
	recorder Recorder
}

func NewOverspendWatcher(store BudgetReader, logger *log.Logger, recorder Recorder) *OverspendWatcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &OverspendWatcher{
		store:    store,
		logger:   logger.WithComponent(log.ComponentWorker),
		recorder: recorder,
	}
}

// HandleEvent is an amqp.Handler. Spending and period events trigger a check
// of the affected month; other events are acknowledged untouched. A budget
// that no longer exists is not an error, so the message is not requeued.
func (w *OverspendWatcher) HandleEvent(ctx context.Context, event *amqp.BudgetEvent) error {
	year, month, ok := affectedMonth(event)
	if !ok {
		w.logger.DebugContext(ctx, "Ignoring budget event",
			log.FieldEventType, event.Type,
			log.FieldUserID, event.UserID)
		return nil
	}

	over, err := w.Check(ctx, event.UserID, year, month)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Budget gone before event was processed",
			log.FieldEventType, event.Type,
			log.FieldUserID, event.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("check overspend for %s: %w", event.UserID, err)
	}

	for _, c := range over {
		w.logger.WarnContext(ctx, "Category over monthly budget",
			log.FieldUserID, event.UserID,
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldCategory, c.Category,
			"budget", c.Budget.String(),
			"spent", c.Spent.String(),
			log.FieldVersion, event.Version)
		if w.recorder != nil {
			w.recorder.Overspend(c.Category.String())
		}
	}
	return nil
}

// Check returns the categories of userID that spent more than budgeted in
// the given month.
func (w *OverspendWatcher) Check(ctx context.Context, userID string, year, month int) ([]core.CategoryAmount, error) {
	b, err := w.store.FindBudget(ctx, userID)
	if err != nil {
		return nil, err
	}
	ov, err := b.Overview(year, month)
	if err != nil {
		return nil, err
	}
	return ov.OverBudget(), nil
}

func affectedMonth(event *amqp.BudgetEvent) (year, month int, ok bool) {
	switch {
	case event.Type.IsSpending():
		d, err := core.ParseDate(event.Date)
		if err != nil {
			return 0, 0, false
		}
		return d.Year(), int(d.Month()), true
	case event.Type == amqp.EventPeriodSet && event.Year > 0 && event.Month > 0:
		return event.Year, event.Month, true
	default:
		return 0, 0, false
	}
}
