package ports

import (
	"context"

	"finance/internal/core"
)

// TransactionFilter bounds a listing by transaction date, both ends inclusive.
// Nil bounds are open.
type TransactionFilter struct {
	StartDate *core.Date
	EndDate   *core.Date
}

// Contains reports whether d falls inside the filter bounds.
func (f TransactionFilter) Contains(d core.Date) bool {
	if f.StartDate != nil && d.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && f.EndDate.Before(d) {
		return false
	}
	return true
}

// CacheKey renders the filter as part of a cache key.
func (f TransactionFilter) CacheKey() string {
	start, end := "*", "*"
	if f.StartDate != nil {
		start = f.StartDate.String()
	}
	if f.EndDate != nil {
		end = f.EndDate.String()
	}
	return start + ".." + end
}

// MonthFilter returns the filter spanning the calendar month of d.
func MonthFilter(d core.Date) TransactionFilter {
	first, last := core.MonthRange(d)
	return TransactionFilter{StartDate: &first, EndDate: &last}
}

// Ports for storage and outbound adapters.
type (
	// TransactionStore persists transactions. Reads are scoped to a tenant and
	// user; missing rows are reported as core.ErrNotFound.
	TransactionStore interface {
		ListTransactions(ctx context.Context, scope core.Scope, filter TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, scope core.Scope, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, scope core.Scope, id string) error
	}

	// RecurringStore serves the recurring worker, across all tenants.
	RecurringStore interface {
		// ListRecurringTemplates returns every transaction with an active rule.
		ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error)
		// RecordOccurrence advances the template's bookkeeping to date.
		RecordOccurrence(ctx context.Context, templateID string, date core.Date) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, tenantID string, typ *core.TransactionType) ([]core.Category, error)
		GetCategory(ctx context.Context, tenantID, id string) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, tenantID, id string) error
	}

	SubcategoryStore interface {
		ListSubcategories(ctx context.Context, tenantID string, parentID *string) ([]core.Subcategory, error)
		GetSubcategory(ctx context.Context, tenantID, id string) (core.Subcategory, error)
		CreateSubcategory(ctx context.Context, s core.Subcategory) (core.Subcategory, error)
		UpdateSubcategory(ctx context.Context, s core.Subcategory) (core.Subcategory, error)
		DeleteSubcategory(ctx context.Context, tenantID, id string) error
	}

	CreditCardStore interface {
		ListCreditCards(ctx context.Context, scope core.Scope) ([]core.CreditCard, error)
		GetCreditCard(ctx context.Context, scope core.Scope, id string) (core.CreditCard, error)
		CreateCreditCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
		UpdateCreditCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
		DeleteCreditCard(ctx context.Context, scope core.Scope, id string) error
	}

	// SummaryWriter exports a month's totals for a scope.
	SummaryWriter interface {
		WriteMonthSummary(ctx context.Context, scope core.Scope, month core.Date, s core.FinanceSummary) error
	}
)
