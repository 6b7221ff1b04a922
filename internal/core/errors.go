package core

import (
	"errors"
	"fmt"
)

// Error classes. Callers match them with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrConflict      = errors.New("version conflict")
)

var (
	ErrInvalidCategory = fmt.Errorf("%w: invalid category", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date, expected YYYY-MM-DD", ErrValidation)
	ErrInvalidPeriod   = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrEmptyItemName   = fmt.Errorf("%w: empty item name", ErrValidation)
	ErrEmptyUserID     = fmt.Errorf("%w: empty user id", ErrValidation)

	ErrBudgetNotFound   = fmt.Errorf("budget %w for user", ErrNotFound)
	ErrSpendingNotFound = fmt.Errorf("spending record %w", ErrNotFound)
	ErrCeilingNotFound  = fmt.Errorf("user monthly budget %w", ErrNotFound)

	ErrBudgetExceedsCeiling = fmt.Errorf("%w: total amount exceeds user budget", ErrLimitExceeded)
)
