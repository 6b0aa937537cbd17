package cache

import (
	"testing"
	"time"

	"finance/internal/core"
	"finance/internal/ports"

	"github.com/shopspring/decimal"
)

func TestRistrettoSetGetDelete(t *testing.T) {
	c, err := NewRistretto[string](100, 0)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("a", "1")
	if got, ok := c.Get("a"); !ok || got != "1" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss after Delete")
	}
	if c.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", c.Size())
	}
}

func TestRistrettoDeletePrefix(t *testing.T) {
	c, err := NewRistretto[int](100, time.Minute)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("x:1", 1)
	c.Set("x:2", 2)
	c.Set("y:1", 3)
	if n := c.DeletePrefix("x:"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("x:1"); ok {
		t.Fatal("x:1 survived")
	}
	if got, ok := c.Get("y:1"); !ok || got != 3 {
		t.Fatalf("Get(y:1) = %d, %v", got, ok)
	}
}

func TestNewRistrettoRejectsZeroSize(t *testing.T) {
	if _, err := NewRistretto[int](0, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestTransactionCacheInvalidateTenant(t *testing.T) {
	tc, err := NewTransactionCache(100, 0)
	if err != nil {
		t.Fatalf("NewTransactionCache: %v", err)
	}
	defer tc.Close()

	feb := ports.MonthFilter(core.NewDate(2025, 2, 1))
	list := []core.Transaction{{ID: "1", Amount: decimal.NewFromInt(5), Type: core.Expense}}
	a1 := core.Scope{TenantID: "a", UserID: "1"}
	a2 := core.Scope{TenantID: "a", UserID: "2"}
	b1 := core.Scope{TenantID: "b", UserID: "1"}

	tc.Set(a1, feb, list)
	tc.Set(a2, ports.TransactionFilter{}, list)
	tc.Set(b1, feb, list)

	got, ok := tc.Get(a1, feb)
	if !ok || len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("Get(a1) = %+v, %v", got, ok)
	}
	if _, ok := tc.Get(a1, ports.TransactionFilter{}); ok {
		t.Fatal("different range must miss")
	}

	if n := tc.InvalidateTenant("a"); n != 2 {
		t.Fatalf("InvalidateTenant() = %d, want 2", n)
	}
	if _, ok := tc.Get(a1, feb); ok {
		t.Fatal("tenant a entry survived invalidation")
	}
	if _, ok := tc.Get(b1, feb); !ok {
		t.Fatal("tenant b entry was dropped")
	}
}

func TestTransactionCacheReturnsCopies(t *testing.T) {
	tc, err := NewTransactionCache(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tc.Close()
	scope := core.Scope{UserID: "u"}
	tc.Set(scope, ports.TransactionFilter{}, []core.Transaction{{ID: "orig"}})

	got, _ := tc.Get(scope, ports.TransactionFilter{})
	got[0].ID = "mutated"
	again, _ := tc.Get(scope, ports.TransactionFilter{})
	if again[0].ID != "orig" {
		t.Fatalf("cached slice was mutated through Get: %q", again[0].ID)
	}
}

func TestRistrettoForgetsKeysLeavingTheStore(t *testing.T) {
	c, err := NewRistretto[string](100, 0)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("a", "1")
	c.Set("a", "2")
	if got, ok := c.Get("a"); !ok || got != "2" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() after overwrite = %d, want 1", c.Size())
	}

	// Removal behind the wrapper's back, as eviction or expiry would do.
	c.store.Del("a")
	if c.Size() != 0 {
		t.Fatalf("Size() after store removal = %d, want 0", c.Size())
	}
}

func TestRistrettoClear(t *testing.T) {
	c, err := NewRistretto[int](100, 0)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a survived Clear")
	}
}

func TestTransactionCacheSetIfCurrent(t *testing.T) {
	tc, err := NewTransactionCache(100, 0)
	if err != nil {
		t.Fatalf("NewTransactionCache: %v", err)
	}
	defer tc.Close()

	scope := core.Scope{TenantID: "a", UserID: "1"}
	other := core.Scope{TenantID: "b", UserID: "1"}
	list := []core.Transaction{{ID: "1"}}

	gen := tc.Generation("a")
	otherGen := tc.Generation("b")
	tc.InvalidateTenant("a")

	if tc.SetIfCurrent(scope, ports.TransactionFilter{}, list, gen) {
		t.Fatal("SetIfCurrent stored a listing read before invalidation")
	}
	if _, ok := tc.Get(scope, ports.TransactionFilter{}); ok {
		t.Fatal("stale listing is cached")
	}
	if !tc.SetIfCurrent(other, ports.TransactionFilter{}, list, otherGen) {
		t.Fatal("invalidating tenant a blocked tenant b")
	}
	if !tc.SetIfCurrent(scope, ports.TransactionFilter{}, list, tc.Generation("a")) {
		t.Fatal("SetIfCurrent with the current generation was refused")
	}
	if _, ok := tc.Get(scope, ports.TransactionFilter{}); !ok {
		t.Fatal("expected cached listing")
	}
}
