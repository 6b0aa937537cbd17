package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance/internal/amqp"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/ports"
	"finance/internal/services"
)

// SyncWorker keeps the exported month summaries in step with transaction
// changes announced over AMQP.
type SyncWorker struct {
	transactions *services.TransactionService
	summaries    *services.SummaryService
	writer       ports.SummaryWriter
	logger       *applog.Logger
}

func NewSyncWorker(transactions *services.TransactionService, summaries *services.SummaryService, writer ports.SummaryWriter, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		cfg := applog.DefaultConfig()
		cfg.Component = applog.ComponentWorker
		logger = applog.New(cfg)
	}
	return &SyncWorker{
		transactions: transactions,
		summaries:    summaries,
		writer:       writer,
		logger:       logger,
	}
}

// HandleTransactionChanged recomputes and exports the summary of the month a
// change message refers to. Invalid messages are logged and dropped so they
// are not redelivered forever.
func (w *SyncWorker) HandleTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	logger := w.logger.WithFields(applog.NewFields().
		WithScope(msg.TenantID, msg.UserID).
		WithTransaction(msg.TransactionID, msg.Month).
		WithOperation(string(msg.Operation)))

	month, err := msg.MonthDate()
	if err != nil {
		logger.WarnContext(ctx, "Dropping message with invalid month", applog.FieldError, err)
		return nil
	}

	logger.InfoContext(ctx, "Processing transaction change")
	if err := w.SyncMonth(applog.NewContext(ctx, logger), msg.Scope(), month); err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			logger.WarnContext(ctx, "Dropping message without user", applog.FieldError, err)
			return nil
		}
		return err
	}
	return nil
}

// SyncMonth exports the summary of the month containing month.
// Cached listings of the tenant are dropped first since the change was
// made by another process.
func (w *SyncWorker) SyncMonth(ctx context.Context, scope core.Scope, month core.Date) error {
	if w.writer == nil {
		return errors.New("summary writer not configured")
	}
	start := time.Now()

	w.transactions.InvalidateTenant(scope.TenantID)
	summary, err := w.summaries.MonthSummary(ctx, scope, month)
	if err != nil {
		return fmt.Errorf("month summary %s: %w", month.YearMonth(), err)
	}
	if err := w.writer.WriteMonthSummary(ctx, scope, month, summary); err != nil {
		return fmt.Errorf("write month summary %s: %w", month.YearMonth(), err)
	}

	applog.FromContext(ctx).DebugContext(ctx, "Month summary synced",
		applog.FieldMonth, month.YearMonth(),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Backfill exports every month from from to to inclusive. It stops at the
// first failure and reports how many months were written.
func (w *SyncWorker) Backfill(ctx context.Context, scope core.Scope, from, to core.Date) (int, error) {
	first, _ := core.MonthRange(from)
	last, _ := core.MonthRange(to)
	if last.Before(first) {
		return 0, fmt.Errorf("backfill range %s..%s is empty", first.YearMonth(), last.YearMonth())
	}

	synced := 0
	for m := first; !last.Before(m); m = core.DateOf(m.AddDate(0, 1, 0)) {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.SyncMonth(ctx, scope, m); err != nil {
			return synced, err
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		applog.FieldTenantID, scope.TenantID,
		applog.FieldUserID, scope.UserID,
		"months", synced)
	return synced, nil
}
