package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"finance/internal/core"
	"finance/internal/ports"
)

// DefaultMaxCatchUp bounds how many missed occurrences of one template a
// single run materializes.
const DefaultMaxCatchUp = 12

// RecurringProcessor materializes due occurrences of recurring transactions.
type RecurringProcessor struct {
	store        ports.RecurringStore
	transactions *TransactionService
	maxCatchUp   int
}

// NewRecurringProcessor creates a processor. maxCatchUp <= 0 uses DefaultMaxCatchUp.
func NewRecurringProcessor(store ports.RecurringStore, transactions *TransactionService, maxCatchUp int) *RecurringProcessor {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
		maxCatchUp:   maxCatchUp,
	}
}

// ProcessDue creates every occurrence that is due at now and not yet
// generated. A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.store.ListRecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total_active", len(templates),
		"processing_date", now.Format(core.DateLayout))

	processed := 0
	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		n, err := p.processTemplate(ctx, tpl, now)
		processed += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring template",
				"template_id", tpl.ID,
				"description", tpl.Description,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, tpl core.Transaction, now time.Time) (int, error) {
	rule := tpl.Rule()
	checker, err := GetDuenessChecker(rule.Type)
	if err != nil {
		return 0, err
	}

	created := 0
	for occurrence := range core.NextOccurrences(rule, firstOccurrenceFrom(tpl.TransactionDate)) {
		if tpl.LastOccurrenceDate != nil && !tpl.LastOccurrenceDate.Before(occurrence) {
			continue
		}
		if !checker.IsDue(occurrence, now) {
			break
		}
		if created == p.maxCatchUp {
			slog.WarnContext(ctx, "Catch-up limit reached, remaining occurrences wait for the next run",
				"template_id", tpl.ID,
				"limit", p.maxCatchUp,
				"next_occurrence", occurrence.String())
			break
		}

		saved, err := p.transactions.Create(ctx, core.Scope{TenantID: tpl.TenantID, UserID: tpl.UserID}, occurrenceInput(tpl, occurrence))
		switch {
		case errors.Is(err, core.ErrDuplicate):
			slog.InfoContext(ctx, "Occurrence already exists, recording it",
				"template_id", tpl.ID,
				"date", occurrence.String())
		case err != nil:
			return created, fmt.Errorf("create occurrence %s: %w", occurrence, err)
		default:
			created++
			slog.InfoContext(ctx, "Created transaction from recurring template",
				"template_id", tpl.ID,
				"transaction_id", saved.ID,
				"date", occurrence.String(),
				"amount", core.FormatAmount(saved.Amount),
				"recurring_type", rule.Type)
		}

		if err := p.store.RecordOccurrence(ctx, tpl.ID, occurrence); err != nil {
			return created, fmt.Errorf("record occurrence %s: %w", occurrence, err)
		}
	}
	return created, nil
}

// firstOccurrenceFrom returns the first day of the month after d. The
// template itself stands for its own month.
func firstOccurrenceFrom(d core.Date) core.Date {
	year, month := d.Year(), d.Month()+1
	if month > 12 {
		month = 1
		year++
	}
	return core.NewDate(year, month, 1)
}

func occurrenceInput(tpl core.Transaction, date core.Date) core.TransactionInput {
	in := tpl.Input()
	in.TransactionDate = date
	due := date
	in.DueDate = &due
	in.Status = core.StatusDue
	in.InstallmentCount = 1
	in.InstallmentCurrent = 1
	in.IsRecurring = false
	in.RecurringType = nil
	in.RecurringDay = nil
	in.RecurringMonths = nil
	parent := tpl.ID
	in.RecurringParentID = &parent
	return in
}

// Upcoming pairs a recurring template with its next pending dates.
type Upcoming struct {
	Template core.Transaction
	Dates    []core.Date
}

// Upcoming lists, for each of the scope's templates, up to count occurrences
// on or after from that have not been generated yet. Templates without
// pending dates are left out.
func (p *RecurringProcessor) Upcoming(ctx context.Context, scope core.Scope, from core.Date, count int) ([]Upcoming, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if p.store == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}
	templates, err := p.store.ListRecurringTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}

	var out []Upcoming
	for _, tpl := range templates {
		if tpl.TenantID != scope.TenantID || tpl.UserID != scope.UserID {
			continue
		}
		if dates := PendingOccurrences(tpl, from, count); len(dates) > 0 {
			out = append(out, Upcoming{Template: tpl, Dates: dates})
		}
	}
	slices.SortFunc(out, func(a, b Upcoming) int {
		return a.Dates[0].Compare(b.Dates[0].Time)
	})
	return out, nil
}

// PendingOccurrences returns up to count occurrences of tpl on or after from
// that come after its last generated occurrence.
func PendingOccurrences(tpl core.Transaction, from core.Date, count int) []core.Date {
	out := make([]core.Date, 0, max(count, 0))
	if count <= 0 {
		return out
	}
	for d := range core.NextOccurrences(tpl.Rule(), firstOccurrenceFrom(tpl.TransactionDate)) {
		if d.Before(from) || (tpl.LastOccurrenceDate != nil && !tpl.LastOccurrenceDate.Before(d)) {
			continue
		}
		out = append(out, d)
		if len(out) == count {
			break
		}
	}
	return out
}
