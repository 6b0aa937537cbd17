package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/ports"
	"finance/internal/storage/memory"

	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.TransactionChangedMessage
	err  error
}

func (p *recordingPublisher) PublishTransactionChanged(_ context.Context, msg *amqp.TransactionChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) messages() []*amqp.TransactionChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.TransactionChangedMessage(nil), p.msgs...)
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	tx        *TransactionService
	catalog   *CatalogService
	summary   *SummaryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	txCache, err := cache.NewTransactionCache(1000, time.Minute)
	if err != nil {
		t.Fatalf("NewTransactionCache() error = %v", err)
	}
	t.Cleanup(txCache.Close)

	store := memory.New()
	pub := &recordingPublisher{}
	tx := NewTransactionService(store, txCache, pub)
	return &fixture{
		store:     store,
		publisher: pub,
		tx:        tx,
		catalog:   NewCatalogService(store, store, store, tx),
		summary:   NewSummaryService(tx, store, store),
	}
}

var testScope = core.Scope{TenantID: "t1", UserID: "u1"}

func ptr[T any](v T) *T { return &v }

func input(desc, amount string, typ core.TransactionType, date core.Date) core.TransactionInput {
	return core.TransactionInput{
		Description:     desc,
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		TransactionDate: date,
	}
}

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and publishes", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.tx.Create(ctx, testScope, input("  Rent  ", "1500", core.Expense, core.NewDate(2024, 3, 1)))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if got.ID == "" {
			t.Error("expected generated ID")
		}
		if got.Description != "Rent" {
			t.Errorf("Description = %q, want trimmed", got.Description)
		}
		if got.Status != core.StatusDue {
			t.Errorf("Status = %q, want %q", got.Status, core.StatusDue)
		}
		if got.InstallmentCount != 1 || got.InstallmentCurrent != 1 {
			t.Errorf("installments = %d/%d, want 1/1", got.InstallmentCurrent, got.InstallmentCount)
		}
		if got.TenantID != testScope.TenantID || got.UserID != testScope.UserID {
			t.Errorf("scope not stamped: %+v", got)
		}

		msgs := f.publisher.messages()
		if len(msgs) != 1 {
			t.Fatalf("published %d messages, want 1", len(msgs))
		}
		if msgs[0].Operation != amqp.OperationCreated || msgs[0].TransactionID != got.ID || msgs[0].Month != "2024-03" {
			t.Errorf("unexpected message %+v", msgs[0])
		}
	})

	t.Run("non recurring payload drops rule fields", func(t *testing.T) {
		f := newFixture(t)
		in := input("Gym", "80", core.Expense, core.NewDate(2024, 3, 1))
		in.RecurringType = ptr(core.RecurrenceCustom)
		in.RecurringDay = ptr(10)
		got, err := f.tx.Create(ctx, testScope, in)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if got.RecurringType != nil || got.RecurringDay != nil || got.RecurringMonths != nil {
			t.Errorf("rule fields not cleared: %v %v %v", got.RecurringType, got.RecurringDay, got.RecurringMonths)
		}
	})

	t.Run("recurring with named type sets anchor day", func(t *testing.T) {
		f := newFixture(t)
		in := input("Salary", "5000", core.Income, core.NewDate(2024, 3, 5))
		in.IsRecurring = true
		in.RecurringType = ptr(core.RecurrenceFifthBusinessDay)
		got, err := f.tx.Create(ctx, testScope, in)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if got.RecurringDay == nil || *got.RecurringDay != 5 {
			t.Errorf("RecurringDay = %v, want 5", got.RecurringDay)
		}
	})

	tests := []struct {
		name    string
		scope   core.Scope
		mutate  func(*core.TransactionInput)
		wantErr error
	}{
		{"missing user", core.Scope{TenantID: "t1"}, func(*core.TransactionInput) {}, core.ErrUnauthenticated},
		{"empty description", testScope, func(in *core.TransactionInput) { in.Description = "   " }, core.ErrEmptyDescription},
		{"zero amount", testScope, func(in *core.TransactionInput) { in.Amount = decimal.Zero }, core.ErrInvalidAmount},
		{"bad type", testScope, func(in *core.TransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"custom without day", testScope, func(in *core.TransactionInput) {
			in.IsRecurring = true
			in.RecurringType = ptr(core.RecurrenceCustom)
		}, core.ErrInvalidRule},
		{"custom day out of range", testScope, func(in *core.TransactionInput) {
			in.IsRecurring = true
			in.RecurringType = ptr(core.RecurrenceCustom)
			in.RecurringDay = ptr(32)
		}, core.ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := input("Coffee", "4.50", core.Expense, core.NewDate(2024, 3, 1))
			tt.mutate(&in)
			_, err := f.tx.Create(ctx, tt.scope, in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(f.publisher.messages()); n != 0 {
				t.Errorf("published %d messages for rejected input", n)
			}
		})
	}
}

func TestTransactionService_CreateSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	got, err := f.tx.Create(context.Background(), testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.store.GetTransaction(context.Background(), testScope, got.ID); err != nil {
		t.Errorf("transaction not stored: %v", err)
	}
}

func TestTransactionService_NilPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil)
	if _, err := svc.Create(context.Background(), testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestTransactionService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("turning recurring off nulls the rule", func(t *testing.T) {
		f := newFixture(t)
		in := input("Internet", "99.90", core.Expense, core.NewDate(2024, 3, 10))
		in.IsRecurring = true
		in.RecurringType = ptr(core.RecurrenceCustom)
		in.RecurringDay = ptr(10)
		in.RecurringMonths = ptr(12)
		created, err := f.tx.Create(ctx, testScope, in)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := f.tx.Update(ctx, testScope, created.ID, core.TransactionPatch{IsRecurring: ptr(false)})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got.IsRecurring {
			t.Error("IsRecurring still set")
		}
		if got.RecurringType != nil || got.RecurringDay != nil || got.RecurringMonths != nil {
			t.Errorf("rule fields not cleared: %v %v %v", got.RecurringType, got.RecurringDay, got.RecurringMonths)
		}
	})

	t.Run("month change publishes for both months", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1)))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := f.tx.Update(ctx, testScope, created.ID, core.TransactionPatch{TransactionDate: ptr(core.NewDate(2024, 4, 1))}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		months := map[string]bool{}
		for _, m := range f.publisher.messages()[1:] {
			if m.Operation != amqp.OperationUpdated {
				t.Errorf("Operation = %q, want updated", m.Operation)
			}
			months[m.Month] = true
		}
		if !months["2024-03"] || !months["2024-04"] {
			t.Errorf("published months = %v, want 2024-03 and 2024-04", months)
		}
	})

	t.Run("invalid patch is rejected", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1)))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err = f.tx.Update(ctx, testScope, created.ID, core.TransactionPatch{Amount: ptr(decimal.NewFromInt(-1))})
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("Update() error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("other user cannot update", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1)))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		other := core.Scope{TenantID: "t1", UserID: "u2"}
		_, err = f.tx.Update(ctx, other, created.ID, core.TransactionPatch{Description: ptr("Mine")})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestTransactionService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := f.tx.Delete(ctx, testScope, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.tx.Get(ctx, testScope, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := f.tx.Delete(ctx, testScope, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	msgs := f.publisher.messages()
	if last := msgs[len(msgs)-1]; last.Operation != amqp.OperationDeleted || last.Month != "2024-03" {
		t.Errorf("last message = %+v, want deleted for 2024-03", last)
	}
}

func TestTransactionService_ListSeesWritesAfterCaching(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	filter := ports.MonthFilter(core.NewDate(2024, 3, 1))

	if _, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first, err := f.tx.List(ctx, testScope, filter)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("List() = %d items, want 1", len(first))
	}

	if _, err := f.tx.Create(ctx, testScope, input("Food", "300", core.Expense, core.NewDate(2024, 3, 2))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := f.tx.List(ctx, testScope, filter)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(second) != 2 {
		t.Errorf("List() after create = %d items, want 2", len(second))
	}
}

func TestTransactionService_ListIsScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := core.Scope{TenantID: "t2", UserID: "u1"}

	if _, err := f.tx.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.tx.Create(ctx, other, input("Rent", "900", core.Expense, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := f.tx.List(ctx, other, ports.TransactionFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || !list[0].Amount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("List() = %+v, want only the other tenant's transaction", list)
	}
}

// pausingStore returns the first listing only after release is closed, so a
// write can land between the read and the cache fill.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (s *pausingStore) ListTransactions(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) ([]core.Transaction, error) {
	list, err := s.Store.ListTransactions(ctx, scope, filter)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return list, err
}

func TestTransactionService_ListDoesNotCacheStaleRead(t *testing.T) {
	ctx := context.Background()
	txCache, err := cache.NewTransactionCache(100, time.Minute)
	if err != nil {
		t.Fatalf("NewTransactionCache() error = %v", err)
	}
	t.Cleanup(txCache.Close)

	store := &pausingStore{Store: memory.New(), loaded: make(chan struct{}), release: make(chan struct{})}
	svc := NewTransactionService(store, txCache, nil)
	filter := ports.MonthFilter(core.NewDate(2024, 3, 1))

	done := make(chan []core.Transaction)
	go func() {
		list, err := svc.List(ctx, testScope, filter)
		if err != nil {
			t.Errorf("List() error = %v", err)
		}
		done <- list
	}()

	<-store.loaded
	if _, err := svc.Create(ctx, testScope, input("Rent", "1500", core.Expense, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	close(store.release)
	if stale := <-done; len(stale) != 0 {
		t.Fatalf("first List() = %d items, want the pre-create read", len(stale))
	}

	list, err := svc.List(ctx, testScope, filter)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() after create = %d items, want 1", len(list))
	}
}
