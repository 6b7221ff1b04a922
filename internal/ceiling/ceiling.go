// Package ceiling reads a user's monthly spending ceiling from the key-value
// cache that the account service populates under "user:<id>".
package ceiling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"babybudget/internal/core"
)

// Lookup returns the monthly ceiling for a user. A missing key or a record
// without a usable monthlyBudget yields core.ErrCeilingNotFound.
type Lookup interface {
	GetCeiling(ctx context.Context, userID string) (decimal.Decimal, error)
	Ping(ctx context.Context) error
}

// Key is the cache key holding the user record.
func Key(userID string) string {
	return "user:" + userID
}

// ParseRecord extracts monthlyBudget from a user record. The value may be a
// JSON number or a numeric string. Missing, null, false, empty and zero values
// all count as "no ceiling".
func ParseRecord(userID string, raw []byte) (decimal.Decimal, error) {
	var rec struct {
		MonthlyBudget json.RawMessage `json:"monthlyBudget"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return decimal.Zero, fmt.Errorf("decode user record %s: %w", userID, err)
	}

	v := bytes.TrimSpace(rec.MonthlyBudget)
	notFound := fmt.Errorf("%w: %s", core.ErrCeilingNotFound, userID)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte("false")) {
		return decimal.Zero, notFound
	}

	var amount decimal.Decimal
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return decimal.Zero, fmt.Errorf("decode monthlyBudget for %s: %w", userID, err)
		}
		if s == "" {
			return decimal.Zero, notFound
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("monthlyBudget for %s is not numeric: %w", userID, err)
		}
		amount = d
	} else {
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("monthlyBudget for %s is not numeric: %w", userID, err)
		}
		amount = d
	}

	if amount.IsZero() {
		return decimal.Zero, notFound
	}
	return amount, nil
}

// EncodeRecord sets monthlyBudget on an existing user record, keeping every
// other field. A nil or empty record starts from an empty object.
func EncodeRecord(existing []byte, amount decimal.Decimal) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(existing)) > 0 {
		if err := json.Unmarshal(existing, &fields); err != nil {
			return nil, fmt.Errorf("decode user record: %w", err)
		}
	}
	fields["monthlyBudget"] = json.RawMessage(amount.String())
	return json.Marshal(fields)
}
