package cli

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"finance/internal/config"
	"finance/internal/core"
	"finance/internal/storage/memory"

	"github.com/shopspring/decimal"
)

func TestSetupLogger_InstallsDefault(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("test")
	if slog.Default().Handler() != logger.Handler() {
		t.Error("SetupLogger did not install the default logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

func TestInitAMQP_Disabled(t *testing.T) {
	if c := InitAMQP(slog.Default(), &config.Config{}); c != nil {
		t.Error("expected nil client when AMQP is not configured")
	}
}

func TestInitServices(t *testing.T) {
	cfg := &config.Config{CacheMaxItems: 100, CacheTTL: time.Minute}
	svcs := InitServices(slog.Default(), cfg, memory.New(), nil)
	defer svcs.Close()

	if svcs.Cache == nil {
		t.Fatal("expected a cache when CacheMaxItems > 0")
	}

	scope := core.Scope{TenantID: "t1", UserID: "u1"}
	tx, err := svcs.Transactions.Create(context.Background(), scope, core.TransactionInput{
		Description:     "Rent",
		Amount:          decimal.NewFromInt(1500),
		Type:            core.Expense,
		TransactionDate: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sum, err := svcs.Summary.MonthSummary(context.Background(), scope, tx.TransactionDate)
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if !sum.TotalExpenses.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("TotalExpenses = %s, want 1500", sum.TotalExpenses)
	}
}

func TestInitServices_NoCache(t *testing.T) {
	svcs := InitServices(slog.Default(), &config.Config{}, memory.New(), nil)
	defer svcs.Close()
	if svcs.Cache != nil {
		t.Error("expected no cache when CacheMaxItems is 0")
	}
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	parent, stop := context.WithCancelCause(context.Background())
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, slog.Default(), time.Second, func() { close(cleaned) })

	stop(errors.New("consumer failed"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete after parent was cancelled")
	}
	select {
	case <-cleaned:
	default:
		t.Error("cleanup did not run")
	}
	if ctx.Err() == nil {
		t.Error("returned context still live")
	}
	if err := context.Cause(parent); err == nil || err.Error() != "consumer failed" {
		t.Errorf("Cause() = %v", err)
	}
}
