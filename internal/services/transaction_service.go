package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/ports"

	"github.com/google/uuid"
)

// Publisher emits change events. *amqp.Client implements it.
type Publisher interface {
	PublishTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error
}

// TransactionService orchestrates transaction operations across the store,
// the listing cache and the event publisher.
type TransactionService struct {
	store     ports.TransactionStore
	cache     *cache.TransactionCache
	publisher Publisher
	now       func() time.Time
}

// NewTransactionService wires a service. txCache and publisher may be nil.
func NewTransactionService(store ports.TransactionStore, txCache *cache.TransactionCache, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:     store,
		cache:     txCache,
		publisher: publisher,
		now:       time.Now,
	}
}

// List returns the scope's transactions inside filter, newest first.
func (s *TransactionService) List(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) ([]core.Transaction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var gen uint64
	if s.cache != nil {
		if list, ok := s.cache.Get(scope, filter); ok {
			slog.DebugContext(ctx, "Transaction list served from cache",
				"tenant_id", scope.TenantID,
				"range", filter.CacheKey(),
				"count", len(list))
			return list, nil
		}
		gen = s.cache.Generation(scope.TenantID)
	}

	list, err := s.store.ListTransactions(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if s.cache != nil && !s.cache.SetIfCurrent(scope, filter, list, gen) {
		slog.DebugContext(ctx, "Transaction list not cached, tenant changed while loading",
			"tenant_id", scope.TenantID)
	}
	return list, nil
}

func (s *TransactionService) Get(ctx context.Context, scope core.Scope, id string) (core.Transaction, error) {
	if err := scope.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.store.GetTransaction(ctx, scope, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Create validates and stores a new transaction. Defaults are filled and the
// recurrence fields are reconciled with the recurring flag first.
func (s *TransactionService) Create(ctx context.Context, scope core.Scope, in core.TransactionInput) (core.Transaction, error) {
	if err := scope.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in.ApplyDefaults()
	in.NormalizeRecurrence()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}

	now := s.now().UTC()
	t := core.Transaction{
		ID:        uuid.NewString(),
		TenantID:  scope.TenantID,
		UserID:    scope.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}.WithInput(in)

	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.afterMutation(ctx, scope, saved.ID, amqp.OperationCreated, saved.TransactionDate)
	return saved, nil
}

// Update applies a partial patch. Turning is_recurring off clears the rule.
func (s *TransactionService) Update(ctx context.Context, scope core.Scope, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := scope.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cur, err := s.store.GetTransaction(ctx, scope, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	in := patch.Apply(cur)
	in.ApplyDefaults()
	in.NormalizeRecurrence()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}

	next := cur.WithInput(in)
	next.UpdatedAt = s.now().UTC()
	saved, err := s.store.UpdateTransaction(ctx, next)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.afterMutation(ctx, scope, saved.ID, amqp.OperationUpdated, saved.TransactionDate)
	if cur.TransactionDate.YearMonth() != saved.TransactionDate.YearMonth() {
		// the old month lost a transaction too
		s.publish(ctx, scope, saved.ID, amqp.OperationUpdated, cur.TransactionDate)
	}
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, scope core.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	cur, err := s.store.GetTransaction(ctx, scope, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, scope, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.afterMutation(ctx, scope, id, amqp.OperationDeleted, cur.TransactionDate)
	return nil
}

// InvalidateTenant drops cached listings after changes made elsewhere.
func (s *TransactionService) InvalidateTenant(tenantID string) {
	if s.cache != nil {
		s.cache.InvalidateTenant(tenantID)
	}
}

func (s *TransactionService) afterMutation(ctx context.Context, scope core.Scope, id string, op amqp.Operation, date core.Date) {
	s.InvalidateTenant(scope.TenantID)
	s.publish(ctx, scope, id, op, date)
}

// publish is best effort: the store already holds the change.
func (s *TransactionService) publish(ctx context.Context, scope core.Scope, id string, op amqp.Operation, date core.Date) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping change event", "transaction_id", id)
		return
	}
	msg := amqp.NewTransactionChangedMessage(scope, id, op, date)
	if err := s.publisher.PublishTransactionChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"transaction_id", id,
			"operation", op,
			"error", err)
	}
}
