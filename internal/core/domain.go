package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	CategoryDiaper   Category = "diaper"
	CategorySanitary Category = "sanitary"
	CategoryFeeding  Category = "feeding"
	CategorySkincare Category = "skincare"
	CategoryFood     Category = "food"
	CategoryToys     Category = "toys"
	CategoryBedding  Category = "bedding"
	CategoryFashion  Category = "fashion"
	CategoryOther    Category = "other"
)

// DateLayout is the wire format of spending dates.
const DateLayout = "2006-01-02"

const maxItemNameLength = 200

type (
	// Category is one of the closed set of spending categories.
	Category string

	SpendingItem struct {
		UID      string          `json:"uid"`
		Date     string          `json:"date"`
		ItemName string          `json:"itemName"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// NewSpending is the caller-supplied part of a spending item.
	NewSpending struct {
		Category Category
		Date     string
		ItemName string
		Amount   decimal.Decimal
	}

	PeriodBudget struct {
		Year       int                        `json:"year"`
		Month      int                        `json:"month"`
		Categories map[string]decimal.Decimal `json:"categories"`
	}
)

var categories = []Category{
	CategoryDiaper,
	CategorySanitary,
	CategoryFeeding,
	CategorySkincare,
	CategoryFood,
	CategoryToys,
	CategoryBedding,
	CategoryFashion,
	CategoryOther,
}

func init() {
	// Amounts travel as JSON numbers, matching what clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// Categories returns the closed category set in declaration order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory maps a raw category name onto the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Validate checks a spending entry before it touches an aggregate.
func (n NewSpending) Validate() error {
	if !n.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(n.Category))
	}
	if _, err := ParseDate(n.Date); err != nil {
		return err
	}
	name := strings.TrimSpace(n.ItemName)
	if name == "" {
		return ErrEmptyItemName
	}
	if utf8.RuneCountInString(name) > maxItemNameLength {
		return fmt.Errorf("%w: item name too long (max %d characters)", ErrValidation, maxItemNameLength)
	}
	return ValidateAmount(n.Amount)
}

// ParseDate parses a YYYY-MM-DD spending date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Validate checks the period and that every budget amount is non-negative.
func (p PeriodBudget) Validate() error {
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	for name, amount := range p.Categories {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty budget category name", ErrValidation)
		}
		if err := ValidateAmount(amount); err != nil {
			return fmt.Errorf("budget %q: %w", name, err)
		}
	}
	return nil
}

// Total is the sum of every category amount in the period.
func (p PeriodBudget) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range p.Categories {
		total = total.Add(amount)
	}
	return total
}

// BudgetFor returns the budget set for a spending category. Keys are matched
// both bare ("food") and suffixed ("foodBudget").
func (p PeriodBudget) BudgetFor(c Category) (decimal.Decimal, bool) {
	if v, ok := p.Categories[string(c)]; ok {
		return v, true
	}
	v, ok := p.Categories[string(c)+"Budget"]
	return v, ok
}

func (p PeriodBudget) clone() PeriodBudget {
	cats := make(map[string]decimal.Decimal, len(p.Categories))
	for k, v := range p.Categories {
		cats[k] = v
	}
	return PeriodBudget{Year: p.Year, Month: p.Month, Categories: cats}
}
