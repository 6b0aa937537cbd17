package services

import (
	"context"
	"errors"
	"testing"

	"finance/internal/core"
	"finance/internal/ports"

	"github.com/shopspring/decimal"
)

func TestCatalogService_Categories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	housing, err := f.catalog.CreateCategory(ctx, testScope, core.CategoryInput{Name: " Housing ", Type: core.Expense})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if housing.Name != "Housing" || housing.Color != core.DefaultCategoryColor {
		t.Errorf("defaults not applied: %+v", housing)
	}
	if _, err := f.catalog.CreateCategory(ctx, testScope, core.CategoryInput{Name: "Salary", Type: core.Income, Color: "#22C55E"}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	expense := core.Expense
	list, err := f.catalog.ListCategories(ctx, testScope, &expense)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != housing.ID {
		t.Errorf("ListCategories(expense) = %+v", list)
	}

	bad := core.TransactionType("transfer")
	if _, err := f.catalog.ListCategories(ctx, testScope, &bad); !errors.Is(err, core.ErrInvalidType) {
		t.Errorf("ListCategories(bad) error = %v, want ErrInvalidType", err)
	}

	updated, err := f.catalog.UpdateCategory(ctx, testScope, housing.ID, core.CategoryInput{Name: "Home", Type: core.Expense, Color: "#000000"})
	if err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	if updated.Name != "Home" || updated.Color != "#000000" {
		t.Errorf("UpdateCategory() = %+v", updated)
	}

	tests := []struct {
		name    string
		in      core.CategoryInput
		wantErr error
	}{
		{"empty name", core.CategoryInput{Name: " ", Type: core.Expense}, core.ErrEmptyName},
		{"bad type", core.CategoryInput{Name: "X", Type: "other"}, core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.catalog.CreateCategory(ctx, testScope, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateCategory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalogService_DeleteCategoryDetachesTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cat, err := f.catalog.CreateCategory(ctx, testScope, core.CategoryInput{Name: "Food", Type: core.Expense})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	sub, err := f.catalog.CreateSubcategory(ctx, testScope, core.SubcategoryInput{ParentCategoryID: cat.ID, Name: "Groceries"})
	if err != nil {
		t.Fatalf("CreateSubcategory() error = %v", err)
	}
	in := input("Market", "120", core.Expense, core.NewDate(2024, 3, 3))
	in.CategoryID = &cat.ID
	in.SubcategoryID = &sub.ID
	tx, err := f.tx.Create(ctx, testScope, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// prime the listing cache
	if _, err := f.tx.List(ctx, testScope, ports.TransactionFilter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := f.catalog.DeleteCategory(ctx, testScope, cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	list, err := f.tx.List(ctx, testScope, ports.TransactionFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != tx.ID {
		t.Fatalf("List() = %+v", list)
	}
	if list[0].CategoryID != nil || list[0].SubcategoryID != nil {
		t.Errorf("category references not cleared: %v %v", list[0].CategoryID, list[0].SubcategoryID)
	}

	subs, err := f.catalog.ListSubcategories(ctx, testScope, &cat.ID)
	if err != nil {
		t.Fatalf("ListSubcategories() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subcategories survived parent delete: %+v", subs)
	}
}

func TestCatalogService_Subcategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.catalog.CreateSubcategory(ctx, testScope, core.SubcategoryInput{ParentCategoryID: "missing", Name: "Rent"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("CreateSubcategory(missing parent) error = %v, want ErrNotFound", err)
	}

	a, _ := f.catalog.CreateCategory(ctx, testScope, core.CategoryInput{Name: "Housing", Type: core.Expense})
	b, _ := f.catalog.CreateCategory(ctx, testScope, core.CategoryInput{Name: "Bills", Type: core.Expense})

	sub, err := f.catalog.CreateSubcategory(ctx, testScope, core.SubcategoryInput{ParentCategoryID: a.ID, Name: " Rent "})
	if err != nil {
		t.Fatalf("CreateSubcategory() error = %v", err)
	}
	if sub.Name != "Rent" {
		t.Errorf("Name = %q, want trimmed", sub.Name)
	}

	moved, err := f.catalog.UpdateSubcategory(ctx, testScope, sub.ID, core.SubcategoryInput{ParentCategoryID: b.ID, Name: "Rent"})
	if err != nil {
		t.Fatalf("UpdateSubcategory() error = %v", err)
	}
	if moved.ParentCategoryID != b.ID {
		t.Errorf("ParentCategoryID = %q, want %q", moved.ParentCategoryID, b.ID)
	}

	all, err := f.catalog.ListSubcategories(ctx, testScope, nil)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListSubcategories(nil) = %v, %v", all, err)
	}

	if err := f.catalog.DeleteSubcategory(ctx, testScope, sub.ID); err != nil {
		t.Fatalf("DeleteSubcategory() error = %v", err)
	}
	if err := f.catalog.DeleteSubcategory(ctx, testScope, sub.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteSubcategory() error = %v, want ErrNotFound", err)
	}
}

func TestCatalogService_CreditCards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	valid := core.CreditCardInput{
		Name:           "Gold",
		LastFourDigits: "1234",
		CardType:       "visa",
		CreditLimit:    decimal.NewFromInt(5000),
		ClosingDay:     25,
		DueDay:         5,
	}
	card, err := f.catalog.CreateCreditCard(ctx, testScope, valid)
	if err != nil {
		t.Fatalf("CreateCreditCard() error = %v", err)
	}
	if card.Color != core.DefaultCreditCardColor || card.UserID != testScope.UserID {
		t.Errorf("CreateCreditCard() = %+v", card)
	}

	other := core.Scope{TenantID: testScope.TenantID, UserID: "u2"}
	if _, err := f.catalog.GetCreditCard(ctx, other, card.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetCreditCard(other user) error = %v, want ErrNotFound", err)
	}

	next := valid
	next.CreditLimit = decimal.NewFromInt(8000)
	updated, err := f.catalog.UpdateCreditCard(ctx, testScope, card.ID, next)
	if err != nil {
		t.Fatalf("UpdateCreditCard() error = %v", err)
	}
	if !updated.CreditLimit.Equal(decimal.NewFromInt(8000)) {
		t.Errorf("CreditLimit = %s, want 8000", updated.CreditLimit)
	}

	tests := []struct {
		name    string
		mutate  func(*core.CreditCardInput)
		wantErr error
	}{
		{"short digits", func(in *core.CreditCardInput) { in.LastFourDigits = "123" }, core.ErrInvalidCard},
		{"letters in digits", func(in *core.CreditCardInput) { in.LastFourDigits = "12a4" }, core.ErrInvalidCard},
		{"negative limit", func(in *core.CreditCardInput) { in.CreditLimit = decimal.NewFromInt(-1) }, core.ErrInvalidCard},
		{"closing day zero", func(in *core.CreditCardInput) { in.ClosingDay = 0 }, core.ErrInvalidDay},
		{"due day 32", func(in *core.CreditCardInput) { in.DueDay = 32 }, core.ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := f.catalog.CreateCreditCard(ctx, testScope, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateCreditCard() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := f.catalog.DeleteCreditCard(ctx, testScope, card.ID); err != nil {
		t.Fatalf("DeleteCreditCard() error = %v", err)
	}
	cards, err := f.catalog.ListCreditCards(ctx, testScope)
	if err != nil || len(cards) != 0 {
		t.Errorf("ListCreditCards() = %v, %v; want empty", cards, err)
	}
}
