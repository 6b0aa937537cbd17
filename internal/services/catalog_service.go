package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance/internal/core"
	"finance/internal/ports"

	"github.com/google/uuid"
)

// CatalogService manages categories, subcategories and credit cards.
type CatalogService struct {
	categories    ports.CategoryStore
	subcategories ports.SubcategoryStore
	cards         ports.CreditCardStore
	transactions  *TransactionService
	now           func() time.Time
}

// NewCatalogService wires the catalog. transactions is used to drop cached
// listings when a delete detaches references; it may be nil.
func NewCatalogService(categories ports.CategoryStore, subcategories ports.SubcategoryStore, cards ports.CreditCardStore, transactions *TransactionService) *CatalogService {
	return &CatalogService{
		categories:    categories,
		subcategories: subcategories,
		cards:         cards,
		transactions:  transactions,
		now:           time.Now,
	}
}

func (s *CatalogService) invalidate(tenantID string) {
	if s.transactions != nil {
		s.transactions.InvalidateTenant(tenantID)
	}
}

// Categories

func (s *CatalogService) ListCategories(ctx context.Context, scope core.Scope, typ *core.TransactionType) ([]core.Category, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if typ != nil && !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	list, err := s.categories.ListCategories(ctx, scope.TenantID, typ)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return list, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, scope core.Scope, in core.CategoryInput) (core.Category, error) {
	if err := scope.Validate(); err != nil {
		return core.Category{}, err
	}
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("invalid category: %w", err)
	}
	now := s.now().UTC()
	c, err := s.categories.CreateCategory(ctx, core.Category{
		ID:        uuid.NewString(),
		TenantID:  scope.TenantID,
		Name:      in.Name,
		Type:      in.Type,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "type", c.Type)
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, scope core.Scope, id string, in core.CategoryInput) (core.Category, error) {
	if err := scope.Validate(); err != nil {
		return core.Category{}, err
	}
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("invalid category: %w", err)
	}
	cur, err := s.categories.GetCategory(ctx, scope.TenantID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	cur.Name, cur.Type, cur.Color, cur.Icon = in.Name, in.Type, in.Color, in.Icon
	cur.UpdatedAt = s.now().UTC()
	c, err := s.categories.UpdateCategory(ctx, cur)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes the category and its subcategories. Transactions
// keep existing without a category.
func (s *CatalogService) DeleteCategory(ctx context.Context, scope core.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.categories.DeleteCategory(ctx, scope.TenantID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.invalidate(scope.TenantID)
	return nil
}

// Subcategories

func (s *CatalogService) ListSubcategories(ctx context.Context, scope core.Scope, parentID *string) ([]core.Subcategory, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	list, err := s.subcategories.ListSubcategories(ctx, scope.TenantID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	return list, nil
}

func (s *CatalogService) CreateSubcategory(ctx context.Context, scope core.Scope, in core.SubcategoryInput) (core.Subcategory, error) {
	if err := scope.Validate(); err != nil {
		return core.Subcategory{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return core.Subcategory{}, fmt.Errorf("invalid subcategory: %w", err)
	}
	if _, err := s.categories.GetCategory(ctx, scope.TenantID, in.ParentCategoryID); err != nil {
		return core.Subcategory{}, fmt.Errorf("parent category: %w", err)
	}
	now := s.now().UTC()
	sc, err := s.subcategories.CreateSubcategory(ctx, core.Subcategory{
		ID:               uuid.NewString(),
		TenantID:         scope.TenantID,
		ParentCategoryID: in.ParentCategoryID,
		Name:             in.Name,
		Icon:             in.Icon,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("save subcategory: %w", err)
	}
	return sc, nil
}

func (s *CatalogService) UpdateSubcategory(ctx context.Context, scope core.Scope, id string, in core.SubcategoryInput) (core.Subcategory, error) {
	if err := scope.Validate(); err != nil {
		return core.Subcategory{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return core.Subcategory{}, fmt.Errorf("invalid subcategory: %w", err)
	}
	cur, err := s.subcategories.GetSubcategory(ctx, scope.TenantID, id)
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("get subcategory: %w", err)
	}
	if in.ParentCategoryID != cur.ParentCategoryID {
		if _, err := s.categories.GetCategory(ctx, scope.TenantID, in.ParentCategoryID); err != nil {
			return core.Subcategory{}, fmt.Errorf("parent category: %w", err)
		}
	}
	cur.ParentCategoryID, cur.Name, cur.Icon = in.ParentCategoryID, in.Name, in.Icon
	cur.UpdatedAt = s.now().UTC()
	sc, err := s.subcategories.UpdateSubcategory(ctx, cur)
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("update subcategory: %w", err)
	}
	return sc, nil
}

func (s *CatalogService) DeleteSubcategory(ctx context.Context, scope core.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.subcategories.DeleteSubcategory(ctx, scope.TenantID, id); err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	s.invalidate(scope.TenantID)
	return nil
}

// Credit cards

func (s *CatalogService) ListCreditCards(ctx context.Context, scope core.Scope) ([]core.CreditCard, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	list, err := s.cards.ListCreditCards(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	return list, nil
}

func (s *CatalogService) GetCreditCard(ctx context.Context, scope core.Scope, id string) (core.CreditCard, error) {
	if err := scope.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	c, err := s.cards.GetCreditCard(ctx, scope, id)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get credit card: %w", err)
	}
	return c, nil
}

func (s *CatalogService) CreateCreditCard(ctx context.Context, scope core.Scope, in core.CreditCardInput) (core.CreditCard, error) {
	if err := scope.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("invalid credit card: %w", err)
	}
	now := s.now().UTC()
	c := core.CreditCard{
		ID:        uuid.NewString(),
		TenantID:  scope.TenantID,
		UserID:    scope.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyCardInput(&c, in)
	saved, err := s.cards.CreateCreditCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("save credit card: %w", err)
	}
	slog.InfoContext(ctx, "Credit card created", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

func (s *CatalogService) UpdateCreditCard(ctx context.Context, scope core.Scope, id string, in core.CreditCardInput) (core.CreditCard, error) {
	if err := scope.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("invalid credit card: %w", err)
	}
	cur, err := s.cards.GetCreditCard(ctx, scope, id)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get credit card: %w", err)
	}
	applyCardInput(&cur, in)
	cur.UpdatedAt = s.now().UTC()
	saved, err := s.cards.UpdateCreditCard(ctx, cur)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update credit card: %w", err)
	}
	return saved, nil
}

func (s *CatalogService) DeleteCreditCard(ctx context.Context, scope core.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.cards.DeleteCreditCard(ctx, scope, id); err != nil {
		return fmt.Errorf("delete credit card: %w", err)
	}
	s.invalidate(scope.TenantID)
	return nil
}

func applyCardInput(c *core.CreditCard, in core.CreditCardInput) {
	c.Name = in.Name
	c.LastFourDigits = in.LastFourDigits
	c.CardType = in.CardType
	c.BankName = in.BankName
	c.CreditLimit = in.CreditLimit
	c.ClosingDay = in.ClosingDay
	c.DueDay = in.DueDay
	c.Color = in.Color
	c.Icon = in.Icon
}
