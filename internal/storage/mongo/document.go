package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"babybudget/internal/core"
)

type budgetDoc struct {
	ID               primitive.ObjectID       `bson:"_id,omitempty"`
	UserID           string                   `bson:"userId"`
	PeriodBudgets    []periodDoc              `bson:"periodBudgets"`
	CategorySpending map[string][]spendingDoc `bson:"categorySpending"`
	TotalSpent       primitive.Decimal128     `bson:"totalSpent"`
	Version          int64                    `bson:"version"`
	CreatedAt        time.Time                `bson:"createdAt"`
	UpdatedAt        time.Time                `bson:"updatedAt"`
}

type periodDoc struct {
	Year       int                             `bson:"year"`
	Month      int                             `bson:"month"`
	Categories map[string]primitive.Decimal128 `bson:"categories"`
}

type spendingDoc struct {
	UID      string               `bson:"uid"`
	Date     string               `bson:"date"`
	ItemName string               `bson:"itemName"`
	Amount   primitive.Decimal128 `bson:"amount"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v, err)
	}
	return d, nil
}

func toDoc(rec core.BudgetRecord) (budgetDoc, error) {
	total, err := toDecimal128(rec.TotalSpent)
	if err != nil {
		return budgetDoc{}, err
	}
	doc := budgetDoc{
		UserID:           rec.UserID,
		PeriodBudgets:    make([]periodDoc, 0, len(rec.PeriodBudgets)),
		CategorySpending: make(map[string][]spendingDoc, len(rec.Spending)),
		TotalSpent:       total,
		Version:          rec.Version,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	for _, p := range rec.PeriodBudgets {
		pd := periodDoc{Year: p.Year, Month: p.Month, Categories: make(map[string]primitive.Decimal128, len(p.Categories))}
		for name, amount := range p.Categories {
			if pd.Categories[name], err = toDecimal128(amount); err != nil {
				return budgetDoc{}, err
			}
		}
		doc.PeriodBudgets = append(doc.PeriodBudgets, pd)
	}
	for cat, items := range rec.Spending {
		docs := make([]spendingDoc, 0, len(items))
		for _, item := range items {
			amount, err := toDecimal128(item.Amount)
			if err != nil {
				return budgetDoc{}, err
			}
			docs = append(docs, spendingDoc{UID: item.UID, Date: item.Date, ItemName: item.ItemName, Amount: amount})
		}
		doc.CategorySpending[string(cat)] = docs
	}
	return doc, nil
}

func fromDoc(doc budgetDoc) (core.BudgetRecord, error) {
	rec := core.BudgetRecord{
		UserID:        doc.UserID,
		PeriodBudgets: make([]core.PeriodBudget, 0, len(doc.PeriodBudgets)),
		Spending:      make(map[core.Category][]core.SpendingItem, len(doc.CategorySpending)),
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, pd := range doc.PeriodBudgets {
		p := core.PeriodBudget{Year: pd.Year, Month: pd.Month, Categories: make(map[string]decimal.Decimal, len(pd.Categories))}
		for name, v := range pd.Categories {
			amount, err := fromDecimal128(v)
			if err != nil {
				return core.BudgetRecord{}, err
			}
			p.Categories[name] = amount
		}
		rec.PeriodBudgets = append(rec.PeriodBudgets, p)
	}
	for cat, docs := range doc.CategorySpending {
		items := make([]core.SpendingItem, 0, len(docs))
		for _, sd := range docs {
			amount, err := fromDecimal128(sd.Amount)
			if err != nil {
				return core.BudgetRecord{}, err
			}
			items = append(items, core.SpendingItem{UID: sd.UID, Date: sd.Date, ItemName: sd.ItemName, Amount: amount})
		}
		rec.Spending[core.Category(cat)] = items
	}
	return rec, nil
}
