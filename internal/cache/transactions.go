package cache

import (
	"strconv"
	"sync"
	"time"

	"finance/internal/core"
	"finance/internal/ports"
)

// TransactionCache caches transaction listings per scope and date range.
// Every tenant carries a generation that InvalidateTenant bumps, so a listing
// read before an invalidation is never stored after it.
type TransactionCache struct {
	c *Ristretto[[]core.Transaction]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewTransactionCache(maxItems int64, ttl time.Duration) (*TransactionCache, error) {
	c, err := NewRistretto[[]core.Transaction](maxItems, ttl)
	if err != nil {
		return nil, err
	}
	return &TransactionCache{c: c, gens: make(map[string]uint64)}, nil
}

func tenantPrefix(tenantID string) string {
	return "tx:" + strconv.Quote(tenantID) + ":"
}

// Key builds the cache key of a listing.
func Key(scope core.Scope, filter ports.TransactionFilter) string {
	return tenantPrefix(scope.TenantID) + strconv.Quote(scope.UserID) + ":" + filter.CacheKey()
}

func (tc *TransactionCache) Get(scope core.Scope, filter ports.TransactionFilter) ([]core.Transaction, bool) {
	list, ok := tc.c.Get(Key(scope, filter))
	if !ok {
		return nil, false
	}
	return append([]core.Transaction(nil), list...), true
}

func (tc *TransactionCache) Set(scope core.Scope, filter ports.TransactionFilter, list []core.Transaction) {
	tc.c.Set(Key(scope, filter), append([]core.Transaction(nil), list...))
}

// Generation returns the tenant's current generation. Read it before loading
// a listing and hand it to SetIfCurrent.
func (tc *TransactionCache) Generation(tenantID string) uint64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.gens[tenantID]
}

// SetIfCurrent stores the listing only when the tenant has not been
// invalidated since gen was read. It reports whether the listing was stored.
func (tc *TransactionCache) SetIfCurrent(scope core.Scope, filter ports.TransactionFilter, list []core.Transaction, gen uint64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.gens[scope.TenantID] != gen {
		return false
	}
	tc.Set(scope, filter, list)
	return true
}

// InvalidateTenant drops every cached listing of the tenant.
func (tc *TransactionCache) InvalidateTenant(tenantID string) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.gens[tenantID]++
	return tc.c.DeletePrefix(tenantPrefix(tenantID))
}

func (tc *TransactionCache) Size() int {
	return tc.c.Size()
}

func (tc *TransactionCache) Close() {
	tc.c.Close()
}
