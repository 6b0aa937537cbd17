package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/services"
	"finance/internal/storage/memory"

	"github.com/shopspring/decimal"
)

type write struct {
	scope   core.Scope
	month   string
	summary core.FinanceSummary
}

type fakeWriter struct {
	writes []write
	err    error
}

func (f *fakeWriter) WriteMonthSummary(_ context.Context, scope core.Scope, month core.Date, s core.FinanceSummary) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, write{scope: scope, month: month.YearMonth(), summary: s})
	return nil
}

var scope = core.Scope{TenantID: "t1", UserID: "u1"}

type harness struct {
	store  *memory.Store
	tx     *services.TransactionService
	writer *fakeWriter
	worker *SyncWorker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	txCache, err := cache.NewTransactionCache(100, time.Minute)
	if err != nil {
		t.Fatalf("NewTransactionCache() error = %v", err)
	}
	t.Cleanup(txCache.Close)

	store := memory.New()
	tx := services.NewTransactionService(store, txCache, nil)
	writer := &fakeWriter{}
	logger := applog.New(applog.Config{Component: applog.ComponentWorker, Output: &bytes.Buffer{}})
	return &harness{
		store:  store,
		tx:     tx,
		writer: writer,
		worker: NewSyncWorker(tx, services.NewSummaryService(tx, store, store), writer, logger),
	}
}

func (h *harness) add(t *testing.T, desc, amount string, typ core.TransactionType, date core.Date) core.Transaction {
	t.Helper()
	got, err := h.tx.Create(context.Background(), scope, core.TransactionInput{
		Description:     desc,
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		TransactionDate: date,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", desc, err)
	}
	return got
}

func TestSyncWorker_HandleTransactionChanged(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Salary", "3000", core.Income, core.NewDate(2024, 3, 5))
	rent := h.add(t, "Rent", "1200", core.Expense, core.NewDate(2024, 3, 1))

	msg := amqp.NewTransactionChangedMessage(scope, rent.ID, amqp.OperationCreated, rent.TransactionDate)
	if err := h.worker.HandleTransactionChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleTransactionChanged() error = %v", err)
	}

	if len(h.writer.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(h.writer.writes))
	}
	w := h.writer.writes[0]
	if w.scope != scope || w.month != "2024-03" {
		t.Errorf("write target = %+v %s", w.scope, w.month)
	}
	if !w.summary.TotalBalance.Equal(decimal.NewFromInt(1800)) || !w.summary.Invested.IsZero() {
		t.Errorf("summary = %+v", w.summary)
	}
}

func TestSyncWorker_SeesChangesMadeElsewhere(t *testing.T) {
	h := newHarness(t)
	march := core.NewDate(2024, 3, 1)
	h.add(t, "Rent", "1000", core.Expense, march)

	if err := h.worker.SyncMonth(context.Background(), scope, march); err != nil {
		t.Fatalf("SyncMonth() error = %v", err)
	}

	// written straight to the store, bypassing the service cache
	extra := core.Transaction{
		ID:              "external",
		TenantID:        scope.TenantID,
		UserID:          scope.UserID,
		Description:     "Bonus",
		Amount:          decimal.NewFromInt(500),
		Type:            core.Income,
		Status:          core.StatusDue,
		TransactionDate: core.NewDate(2024, 3, 20),
	}
	if _, err := h.store.CreateTransaction(context.Background(), extra); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	if err := h.worker.SyncMonth(context.Background(), scope, march); err != nil {
		t.Fatalf("SyncMonth() error = %v", err)
	}
	got := h.writer.writes[1].summary
	if !got.TotalIncome.Equal(decimal.NewFromInt(500)) {
		t.Errorf("TotalIncome = %s, want 500", got.TotalIncome)
	}
}

func TestSyncWorker_DropsInvalidMessages(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		msg  *amqp.TransactionChangedMessage
	}{
		{"bad month", &amqp.TransactionChangedMessage{TenantID: "t1", UserID: "u1", TransactionID: "x", Month: "March"}},
		{"missing user", &amqp.TransactionChangedMessage{TenantID: "t1", TransactionID: "x", Month: "2024-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.worker.HandleTransactionChanged(context.Background(), tt.msg); err != nil {
				t.Errorf("HandleTransactionChanged() error = %v, want nil", err)
			}
		})
	}
	if len(h.writer.writes) != 0 {
		t.Errorf("writes = %d, want 0", len(h.writer.writes))
	}
}

func TestSyncWorker_WriterFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.writer.err = errors.New("sheets unavailable")

	msg := &amqp.TransactionChangedMessage{TenantID: "t1", UserID: "u1", TransactionID: "x", Month: "2024-03"}
	if err := h.worker.HandleTransactionChanged(context.Background(), msg); err == nil {
		t.Error("expected error so the message is requeued")
	}
}

func TestSyncWorker_Backfill(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Rent", "1000", core.Expense, core.NewDate(2023, 12, 1))

	n, err := h.worker.Backfill(context.Background(), scope, core.NewDate(2023, 11, 30), core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Backfill() = %d months, want 4", n)
	}
	var months []string
	for _, w := range h.writer.writes {
		months = append(months, w.month)
	}
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	for i := range want {
		if i >= len(months) || months[i] != want[i] {
			t.Fatalf("months = %v, want %v", months, want)
		}
	}

	if _, err := h.worker.Backfill(context.Background(), scope, core.NewDate(2024, 3, 1), core.NewDate(2024, 1, 1)); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestSyncWorker_NoWriter(t *testing.T) {
	h := newHarness(t)
	w := NewSyncWorker(h.tx, services.NewSummaryService(h.tx, h.store, h.store), nil, nil)
	if err := w.SyncMonth(context.Background(), scope, core.NewDate(2024, 1, 1)); err == nil {
		t.Error("expected error without writer")
	}
}
