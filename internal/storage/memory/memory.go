package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"finance/internal/core"
	"finance/internal/ports"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Store keeps every entity in process memory. It implements the same store
// ports as the SQL repository and is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	categories   map[string]core.Category
	subs         map[string]core.Subcategory
	cards        map[string]core.CreditCard
}

var (
	_ ports.TransactionStore = (*Store)(nil)
	_ ports.RecurringStore   = (*Store)(nil)
	_ ports.CategoryStore    = (*Store)(nil)
	_ ports.SubcategoryStore = (*Store)(nil)
	_ ports.CreditCardStore  = (*Store)(nil)
)

// Seed is the YAML layout of a seed file.
type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
}

type SeedCategory struct {
	core.CategoryInput `yaml:",inline"`
	Subcategories      []string `yaml:"subcategories"`
}

var defaultSeed = Seed{Categories: []SeedCategory{
	{CategoryInput: core.CategoryInput{Name: "Salary", Type: core.Income, Color: "#22C55E"}},
	{CategoryInput: core.CategoryInput{Name: "Housing", Type: core.Expense}, Subcategories: []string{"Rent", "Utilities"}},
	{CategoryInput: core.CategoryInput{Name: "Food", Type: core.Expense}, Subcategories: []string{"Groceries", "Restaurants"}},
	{CategoryInput: core.CategoryInput{Name: "Transport", Type: core.Expense}},
}}

func New() *Store {
	return &Store{
		transactions: map[string]core.Transaction{},
		categories:   map[string]core.Category{},
		subs:         map[string]core.Subcategory{},
		cards:        map[string]core.CreditCard{},
	}
}

// NewFromFile creates a store seeded with the categories of a YAML file for
// tenantID. A missing file seeds the default categories.
func NewFromFile(path, tenantID string) (*Store, error) {
	seed := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read seed file: %w", err)
		default:
			var parsed Seed
			if err := yaml.Unmarshal(b, &parsed); err != nil {
				return nil, fmt.Errorf("parse seed file %s: %w", path, err)
			}
			if len(parsed.Categories) > 0 {
				seed = parsed
			}
		}
	}
	s := New()
	if err := s.apply(seed, tenantID); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) apply(seed Seed, tenantID string) error {
	now := time.Now().UTC()
	seen := map[string]struct{}{}
	for _, sc := range seed.Categories {
		in := sc.CategoryInput
		in.ApplyDefaults()
		if err := in.Validate(); err != nil {
			return fmt.Errorf("seed category %q: %w", sc.Name, err)
		}
		key := strings.ToLower(in.Name) + "|" + string(in.Type)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c := core.Category{
			ID: uuid.NewString(), TenantID: tenantID, Name: in.Name, Type: in.Type,
			Color: in.Color, Icon: in.Icon, CreatedAt: now, UpdatedAt: now,
		}
		s.categories[c.ID] = c
		for _, name := range dedupe(sc.Subcategories) {
			sub := core.Subcategory{
				ID: uuid.NewString(), TenantID: tenantID, ParentCategoryID: c.ID,
				Name: name, CreatedAt: now, UpdatedAt: now,
			}
			s.subs[sub.ID] = sub
		}
	}
	return nil
}

func owned(tenantID, userID string, scope core.Scope) bool {
	return tenantID == scope.TenantID && userID == scope.UserID
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, scope core.Scope, filter ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if owned(t.TenantID, t.UserID, scope) && filter.Contains(t.TransactionDate) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.TransactionDate.Compare(a.TransactionDate.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, scope core.Scope, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || !owned(t.TenantID, t.UserID, scope) {
		return core.Transaction{}, notFound("transaction", id)
	}
	return t, nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[t.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrDuplicate)
	}
	if t.RecurringParentID != nil {
		for _, other := range s.transactions {
			if other.RecurringParentID != nil && *other.RecurringParentID == *t.RecurringParentID &&
				other.TransactionDate.Equal(t.TransactionDate.Time) {
				return core.Transaction{}, fmt.Errorf("occurrence of %s on %s: %w", *t.RecurringParentID, t.TransactionDate, core.ErrDuplicate)
			}
		}
	}
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[t.ID]
	if !ok || !owned(cur.TenantID, cur.UserID, core.Scope{TenantID: t.TenantID, UserID: t.UserID}) {
		return core.Transaction{}, notFound("transaction", t.ID)
	}
	// bookkeeping and identity are owned by the store
	t.CreatedAt = cur.CreatedAt
	t.RecurringParentID = cur.RecurringParentID
	t.OccurrencesCount = cur.OccurrencesCount
	t.LastOccurrenceDate = cur.LastOccurrenceDate
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, scope core.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || !owned(t.TenantID, t.UserID, scope) {
		return notFound("transaction", id)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListRecurringTemplates(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.IsRecurring && t.Rule().Active() {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *Store) RecordOccurrence(_ context.Context, templateID string, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[templateID]
	if !ok {
		return notFound("transaction", templateID)
	}
	t.OccurrencesCount++
	d := date
	t.LastOccurrenceDate = &d
	s.transactions[templateID] = t
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context, tenantID string, typ *core.TransactionType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.TenantID != tenantID || (typ != nil && c.Type != *typ) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, tenantID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.TenantID != tenantID {
		return core.Category{}, notFound("category", id)
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[c.ID]
	if !ok || cur.TenantID != c.TenantID {
		return core.Category{}, notFound("category", c.ID)
	}
	c.CreatedAt = cur.CreatedAt
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.TenantID != tenantID {
		return notFound("category", id)
	}
	delete(s.categories, id)
	for sid, sub := range s.subs {
		if sub.TenantID == tenantID && sub.ParentCategoryID == id {
			delete(s.subs, sid)
		}
	}
	for tid, t := range s.transactions {
		if t.TenantID == tenantID && t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID, t.SubcategoryID = nil, nil
			s.transactions[tid] = t
		}
	}
	return nil
}

// Subcategories

func (s *Store) ListSubcategories(_ context.Context, tenantID string, parentID *string) ([]core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subcategory
	for _, sc := range s.subs {
		if sc.TenantID != tenantID || (parentID != nil && sc.ParentCategoryID != *parentID) {
			continue
		}
		out = append(out, sc)
	}
	slices.SortFunc(out, func(a, b core.Subcategory) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetSubcategory(_ context.Context, tenantID, id string) (core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.subs[id]
	if !ok || sc.TenantID != tenantID {
		return core.Subcategory{}, notFound("subcategory", id)
	}
	return sc, nil
}

func (s *Store) CreateSubcategory(_ context.Context, sc core.Subcategory) (core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sc.ID] = sc
	return sc, nil
}

func (s *Store) UpdateSubcategory(_ context.Context, sc core.Subcategory) (core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[sc.ID]
	if !ok || cur.TenantID != sc.TenantID {
		return core.Subcategory{}, notFound("subcategory", sc.ID)
	}
	sc.CreatedAt = cur.CreatedAt
	s.subs[sc.ID] = sc
	return sc, nil
}

func (s *Store) DeleteSubcategory(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.subs[id]
	if !ok || sc.TenantID != tenantID {
		return notFound("subcategory", id)
	}
	delete(s.subs, id)
	for tid, t := range s.transactions {
		if t.TenantID == tenantID && t.SubcategoryID != nil && *t.SubcategoryID == id {
			t.SubcategoryID = nil
			s.transactions[tid] = t
		}
	}
	return nil
}

// Credit cards

func (s *Store) ListCreditCards(_ context.Context, scope core.Scope) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CreditCard
	for _, c := range s.cards {
		if owned(c.TenantID, c.UserID, scope) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.CreditCard) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetCreditCard(_ context.Context, scope core.Scope, id string) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok || !owned(c.TenantID, c.UserID, scope) {
		return core.CreditCard{}, notFound("credit card", id)
	}
	return c, nil
}

func (s *Store) CreateCreditCard(_ context.Context, c core.CreditCard) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCreditCard(_ context.Context, c core.CreditCard) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cards[c.ID]
	if !ok || !owned(cur.TenantID, cur.UserID, core.Scope{TenantID: c.TenantID, UserID: c.UserID}) {
		return core.CreditCard{}, notFound("credit card", c.ID)
	}
	c.CreatedAt = cur.CreatedAt
	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCreditCard(_ context.Context, scope core.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok || !owned(c.TenantID, c.UserID, scope) {
		return notFound("credit card", id)
	}
	delete(s.cards, id)
	for tid, t := range s.transactions {
		if owned(t.TenantID, t.UserID, scope) && t.CreditCardID != nil && *t.CreditCardID == id {
			t.CreditCardID = nil
			s.transactions[tid] = t
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
