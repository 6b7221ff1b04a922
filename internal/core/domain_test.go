package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"diaper", true},
		{"other", true},
		{" food ", true},
		{"Diaper", false},
		{"groceries", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseCategory(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q expected validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestCategoriesDeclarationOrder(t *testing.T) {
	want := []Category{"diaper", "sanitary", "feeding", "skincare", "food", "toys", "bedding", "fashion", "other"}
	got := Categories()
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
	got[0] = "mutated"
	if Categories()[0] != CategoryDiaper {
		t.Fatalf("Categories must return a copy")
	}
}

func TestNewSpendingValidate(t *testing.T) {
	good := NewSpending{
		Category: CategoryFood,
		Date:     "2024-05-01",
		ItemName: "formula",
		Amount:   decimal.NewFromInt(30),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	bads := []NewSpending{
		{Category: "groceries", Date: "2024-05-01", ItemName: "x", Amount: decimal.NewFromInt(1)},
		{Category: CategoryFood, Date: "05/01/2024", ItemName: "x", Amount: decimal.NewFromInt(1)},
		{Category: CategoryFood, Date: "2024-05-01", ItemName: "  ", Amount: decimal.NewFromInt(1)},
		{Category: CategoryFood, Date: "2024-05-01", ItemName: "x", Amount: decimal.NewFromInt(-1)},
	}
	for i, n := range bads {
		err := n.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestNewSpendingItemNameCountsCharacters(t *testing.T) {
	n := NewSpending{
		Category: CategoryDiaper,
		Date:     "2024-05-01",
		ItemName: strings.Repeat("기저귀", 66),
		Amount:   decimal.NewFromInt(12),
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("198 Hangul characters should be accepted, got %v", err)
	}

	n.ItemName = strings.Repeat("기", maxItemNameLength+1)
	if err := n.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for %d characters, got %v", maxItemNameLength+1, err)
	}
}

func TestPeriodBudgetValidateAndTotal(t *testing.T) {
	p := PeriodBudget{Year: 2024, Month: 5, Categories: map[string]decimal.Decimal{
		"diaperBudget": decimal.NewFromInt(100),
		"foodBudget":   decimal.RequireFromString("99.50"),
	}}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !p.Total().Equal(decimal.RequireFromString("199.50")) {
		t.Fatalf("unexpected total %s", p.Total())
	}

	bads := []PeriodBudget{
		{Year: 2024, Month: 0},
		{Year: 2024, Month: 13},
		{Year: 0, Month: 1},
		{Year: 2024, Month: 1, Categories: map[string]decimal.Decimal{"food": decimal.NewFromInt(-5)}},
	}
	for i, b := range bads {
		if err := b.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestPeriodBudgetFor(t *testing.T) {
	p := PeriodBudget{Year: 2024, Month: 5, Categories: map[string]decimal.Decimal{
		"diaperBudget": decimal.NewFromInt(100),
		"food":         decimal.NewFromInt(40),
	}}
	if v, ok := p.BudgetFor(CategoryDiaper); !ok || !v.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("diaper: got %s %v", v, ok)
	}
	if v, ok := p.BudgetFor(CategoryFood); !ok || !v.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("food: got %s %v", v, ok)
	}
	if _, ok := p.BudgetFor(CategoryToys); ok {
		t.Fatalf("toys should have no budget")
	}
}
