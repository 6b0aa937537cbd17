package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// UncategorizedName labels expenses without a category in breakdowns.
const UncategorizedName = "Uncategorized"

// FinanceSummary holds the dashboard totals of a set of transactions.
// Invested is always zero.
type FinanceSummary struct {
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	Invested         decimal.Decimal `json:"invested"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

// CategoryExpense is the share of expenses attributed to one category.
type CategoryExpense struct {
	CategoryID *string         `json:"categoryId,omitempty"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Color      string          `json:"color"`
}

type CreditCardSummary struct {
	MonthlyValue   decimal.Decimal `json:"monthlyValue"`
	RemainingLimit decimal.Decimal `json:"remainingLimit"`
	TotalLimit     decimal.Decimal `json:"totalLimit"`
}

// Aggregate sums income and expense amounts. It performs no validation:
// amounts are added as given and transactions of any other type are ignored.
func Aggregate(transactions []Transaction) FinanceSummary {
	income, expenses := decimal.Zero, decimal.Zero
	for _, t := range transactions {
		switch t.Type {
		case Income:
			income = income.Add(t.Amount)
		case Expense:
			expenses = expenses.Add(t.Amount)
		}
	}
	balance := income.Sub(expenses)
	invested := decimal.Zero
	return FinanceSummary{
		TotalIncome:      income,
		TotalExpenses:    expenses,
		TotalBalance:     balance,
		Invested:         invested,
		AvailableBalance: balance.Sub(invested),
	}
}

// ExpensesByCategory groups expense amounts per category. Percentages are
// relative to total expenses, rounded to two decimals. Entries are sorted by
// amount descending, then by name.
func ExpensesByCategory(transactions []Transaction, categories []Category) []CategoryExpense {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	groups := make(map[string]*CategoryExpense)
	total := decimal.Zero
	for _, t := range transactions {
		if t.Type != Expense {
			continue
		}
		total = total.Add(t.Amount)

		key := ""
		entry := CategoryExpense{Category: UncategorizedName, Color: DefaultCategoryColor}
		if t.CategoryID != nil {
			if c, ok := byID[*t.CategoryID]; ok {
				key = c.ID
				id := c.ID
				entry = CategoryExpense{CategoryID: &id, Category: c.Name, Color: c.Color}
			}
		}
		g, ok := groups[key]
		if !ok {
			entry.Amount = decimal.Zero
			g = &entry
			groups[key] = g
		}
		g.Amount = g.Amount.Add(t.Amount)
	}

	out := make([]CategoryExpense, 0, len(groups))
	for _, g := range groups {
		if total.IsZero() {
			g.Percentage = decimal.Zero
		} else {
			g.Percentage = g.Amount.Mul(decimal.NewFromInt(100)).Div(total).Round(2)
		}
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b CategoryExpense) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// SummarizeCreditCard totals the expenses charged to card.
func SummarizeCreditCard(card CreditCard, transactions []Transaction) CreditCardSummary {
	monthly := decimal.Zero
	for _, t := range transactions {
		if t.Type != Expense || t.CreditCardID == nil || *t.CreditCardID != card.ID {
			continue
		}
		monthly = monthly.Add(t.Amount)
	}
	return CreditCardSummary{
		MonthlyValue:   monthly,
		RemainingLimit: card.CreditLimit.Sub(monthly),
		TotalLimit:     card.CreditLimit,
	}
}
