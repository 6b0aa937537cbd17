package services

import (
	"context"
	"fmt"

	"finance/internal/core"
	"finance/internal/ports"

	"golang.org/x/sync/errgroup"
)

// SummaryService computes dashboard figures over a scope's transactions.
type SummaryService struct {
	transactions *TransactionService
	categories   ports.CategoryStore
	cards        ports.CreditCardStore
}

func NewSummaryService(transactions *TransactionService, categories ports.CategoryStore, cards ports.CreditCardStore) *SummaryService {
	return &SummaryService{
		transactions: transactions,
		categories:   categories,
		cards:        cards,
	}
}

// Summary aggregates the transactions inside filter.
func (s *SummaryService) Summary(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) (core.FinanceSummary, error) {
	list, err := s.transactions.List(ctx, scope, filter)
	if err != nil {
		return core.FinanceSummary{}, err
	}
	return core.Aggregate(list), nil
}

// MonthSummary aggregates the calendar month containing month.
func (s *SummaryService) MonthSummary(ctx context.Context, scope core.Scope, month core.Date) (core.FinanceSummary, error) {
	return s.Summary(ctx, scope, ports.MonthFilter(month))
}

// CategoryExpenses breaks the expenses inside filter down by category.
func (s *SummaryService) CategoryExpenses(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) ([]core.CategoryExpense, error) {
	var (
		list []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.transactions.List(gctx, scope, filter)
		return err
	})
	g.Go(func() error {
		expense := core.Expense
		var err error
		cats, err = s.categories.ListCategories(gctx, scope.TenantID, &expense)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.ExpensesByCategory(list, cats), nil
}

// CreditCardSummary totals what was charged to a card inside filter.
func (s *SummaryService) CreditCardSummary(ctx context.Context, scope core.Scope, cardID string, filter ports.TransactionFilter) (core.CreditCardSummary, error) {
	var (
		card core.CreditCard
		list []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		card, err = s.cards.GetCreditCard(gctx, scope, cardID)
		if err != nil {
			return fmt.Errorf("get credit card: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		list, err = s.transactions.List(gctx, scope, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CreditCardSummary{}, err
	}
	return core.SummarizeCreditCard(card, list), nil
}
