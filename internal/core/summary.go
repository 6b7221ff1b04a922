package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount compares what was budgeted for a category with what was spent.
type CategoryAmount struct {
	Category Category        `json:"category"`
	Budget   decimal.Decimal `json:"budget"`
	Budgeted bool            `json:"budgeted"`
	Spent    decimal.Decimal `json:"spent"`
}

// Over reports whether a budgeted category has been overspent.
func (c CategoryAmount) Over() bool {
	return c.Budgeted && c.Spent.GreaterThan(c.Budget)
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year          int              `json:"year"`
	Month         int              `json:"month"` // 1-12
	TotalBudgeted decimal.Decimal  `json:"totalBudgeted"`
	TotalSpent    decimal.Decimal  `json:"totalSpent"`
	ByCategory    []CategoryAmount `json:"byCategory"`
}

// OverBudget lists the categories whose spending exceeds their budget.
func (o MonthOverview) OverBudget() []CategoryAmount {
	var out []CategoryAmount
	for _, c := range o.ByCategory {
		if c.Over() {
			out = append(out, c)
		}
	}
	return out
}

// Overview summarises spending dated within year/month against that month's
// period budget, if one is set.
func (b *Budget) Overview(year, month int) (MonthOverview, error) {
	p := PeriodBudget{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return MonthOverview{}, err
	}
	period, hasPeriod := b.Period(year, month)

	ov := MonthOverview{
		Year:          year,
		Month:         month,
		TotalBudgeted: period.Total(),
		TotalSpent:    decimal.Zero,
		ByCategory:    make([]CategoryAmount, 0, len(categories)),
	}
	for _, cat := range categories {
		row := CategoryAmount{Category: cat, Budget: decimal.Zero, Spent: decimal.Zero}
		if hasPeriod {
			if v, ok := period.BudgetFor(cat); ok {
				row.Budget = v
				row.Budgeted = true
			}
		}
		for _, item := range b.spending[cat] {
			d, err := time.Parse(DateLayout, item.Date)
			if err != nil {
				continue
			}
			if d.Year() == year && int(d.Month()) == month {
				row.Spent = row.Spent.Add(item.Amount)
			}
		}
		ov.TotalSpent = ov.TotalSpent.Add(row.Spent)
		ov.ByCategory = append(ov.ByCategory, row)
	}
	return ov, nil
}
