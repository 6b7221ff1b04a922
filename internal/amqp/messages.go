package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"babybudget/internal/core"
)

// EventType names a budget change.
type EventType string

const (
	EventPeriodSet       EventType = "budget.period_set"
	EventSpendingAdded   EventType = "budget.spending_added"
	EventSpendingUpdated EventType = "budget.spending_updated"
	EventSpendingDeleted EventType = "budget.spending_deleted"
	EventBudgetDeleted   EventType = "budget.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPeriodSet, EventSpendingAdded, EventSpendingUpdated, EventSpendingDeleted, EventBudgetDeleted:
		return true
	}
	return false
}

// IsSpending reports whether the event concerns a single spending item.
func (t EventType) IsSpending() bool {
	return t == EventSpendingAdded || t == EventSpendingUpdated || t == EventSpendingDeleted
}

// BudgetEvent is published after every committed budget mutation. It
// carries enough to identify what changed; consumers reload the aggregate
// for anything else.
type BudgetEvent struct {
	Type       EventType       `json:"type"`
	UserID     string          `json:"userId"`
	Year       int             `json:"year,omitempty"`
	Month      int             `json:"month,omitempty"`
	Category   core.Category   `json:"category,omitempty"`
	UID        string          `json:"uid,omitempty"`
	Date       string          `json:"date,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	Version    int64           `json:"version"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewBudgetEvent stamps an event for userID.
func NewBudgetEvent(t EventType, userID string) *BudgetEvent {
	return &BudgetEvent{
		Type:      t,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// WithSpending fills in the item fields of a spending event.
func (e *BudgetEvent) WithSpending(entry core.SpendingEntry) *BudgetEvent {
	e.Category = entry.Category
	e.UID = entry.Spending.UID
	e.Date = entry.Spending.Date
	e.Amount = entry.Spending.Amount
	return e
}

// Validate rejects events a consumer could not act on.
func (e *BudgetEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == "" {
		return fmt.Errorf("event %s without user id", e.Type)
	}
	if e.Type.IsSpending() && e.Date != "" {
		if _, err := core.ParseDate(e.Date); err != nil {
			return fmt.Errorf("event %s: %w", e.Type, err)
		}
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *BudgetEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BudgetEventFromJSON decodes and validates a message body.
func BudgetEventFromJSON(data []byte) (*BudgetEvent, error) {
	var e BudgetEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
