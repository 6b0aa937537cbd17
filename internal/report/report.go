// Package report renders finance data as terminal tables and xlsx workbooks.
package report

import (
	"context"
	"fmt"

	"finance/internal/core"
	"finance/internal/ports"
	"finance/internal/services"

	"golang.org/x/sync/errgroup"
)

// Report is everything rendered for one scope and date range.
type Report struct {
	Scope        core.Scope
	From, To     core.Date
	Summary      core.FinanceSummary
	Categories   []core.CategoryExpense
	Transactions []core.Transaction
	Upcoming     []services.Upcoming
	Cards        []CardUsage
}

// CardUsage is a credit card with what was charged to it in the range.
type CardUsage struct {
	Card  core.CreditCard
	Usage core.CreditCardSummary
}

// Builder gathers report data from the services. Catalog and Recurring are
// optional.
type Builder struct {
	Transactions *services.TransactionService
	Summaries    *services.SummaryService
	Recurring    *services.RecurringProcessor
	Catalog      *services.CatalogService
}

// Build loads the report for [from, to]. When upcoming > 0 and a recurring
// processor is set, that many pending occurrences per template are listed
// starting at from.
func (b Builder) Build(ctx context.Context, scope core.Scope, from, to core.Date, upcoming int) (*Report, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range %s..%s", from, to)
	}
	filter := ports.TransactionFilter{StartDate: &from, EndDate: &to}
	r := &Report{Scope: scope, From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		r.Summary, err = b.Summaries.Summary(gctx, scope, filter)
		return err
	})
	g.Go(func() error {
		var err error
		r.Categories, err = b.Summaries.CategoryExpenses(gctx, scope, filter)
		return err
	})
	g.Go(func() error {
		var err error
		r.Transactions, err = b.Transactions.List(gctx, scope, filter)
		return err
	})
	if upcoming > 0 && b.Recurring != nil {
		g.Go(func() error {
			var err error
			r.Upcoming, err = b.Recurring.Upcoming(gctx, scope, from, upcoming)
			return err
		})
	}
	if b.Catalog != nil {
		g.Go(func() error {
			var err error
			r.Cards, err = b.cardUsage(gctx, scope, filter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

func (b Builder) cardUsage(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) ([]CardUsage, error) {
	cards, err := b.Catalog.ListCreditCards(ctx, scope)
	if err != nil {
		return nil, err
	}
	usage := make([]CardUsage, 0, len(cards))
	for _, c := range cards {
		s, err := b.Summaries.CreditCardSummary(ctx, scope, c.ID, filter)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", c.Name, err)
		}
		usage = append(usage, CardUsage{Card: c, Usage: s})
	}
	return usage, nil
}

func (r *Report) period() string {
	return fmt.Sprintf("%s to %s", r.From, r.To)
}
