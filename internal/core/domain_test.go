package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T { return &v }

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, 2, 29)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("got %s", b)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip changed date: %v", back)
	}
	if err := json.Unmarshal([]byte(`"29/02/2024"`), &back); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	first, last := MonthRange(NewDate(2023, 2, 14))
	if first.String() != "2023-02-01" || last.String() != "2023-02-28" {
		t.Fatalf("MonthRange() = %s..%s", first, last)
	}
	_, last = MonthRange(NewDate(2024, 2, 1))
	if last.Day() != 29 {
		t.Fatalf("leap February last day = %d, want 29", last.Day())
	}
}

func TestScopeValidate(t *testing.T) {
	if err := (Scope{TenantID: "t"}).Validate(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := (Scope{UserID: "u"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func validInput() TransactionInput {
	return TransactionInput{
		Description:     "Rent",
		Amount:          decimal.NewFromInt(1200),
		Type:            Expense,
		TransactionDate: NewDate(2025, 3, 1),
	}
}

func TestTransactionInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TransactionInput)
		wantErr error
	}{
		{"valid", func(*TransactionInput) {}, nil},
		{"empty description", func(in *TransactionInput) { in.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, ErrInvalidType},
		{"bad status", func(in *TransactionInput) { in.Status = "paid" }, ErrInvalidStatus},
		{"installments overflow", func(in *TransactionInput) {
			in.InstallmentCount = 2
			in.InstallmentCurrent = 3
		}, ErrInstallments},
		{"custom without day", func(in *TransactionInput) {
			in.IsRecurring = true
			in.RecurringType = ptr(RecurrenceCustom)
		}, ErrInvalidRule},
		{"zero month cap", func(in *TransactionInput) {
			in.IsRecurring = true
			in.RecurringType = ptr(RecurrenceDay15)
			in.RecurringMonths = ptr(0)
		}, ErrInvalidRule},
		{"unknown recurrence", func(in *TransactionInput) {
			in.IsRecurring = true
			in.RecurringType = ptr(RecurrenceType("weekly"))
		}, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	long := validInput()
	long.Description = strings.Repeat("x", 201)
	if err := long.Validate(); err == nil {
		t.Fatal("expected error for long description")
	}
}

func TestTransactionInputApplyDefaults(t *testing.T) {
	in := validInput()
	in.Description = "  Rent  "
	in.ApplyDefaults()
	if in.Status != StatusDue {
		t.Errorf("Status = %q, want %q", in.Status, StatusDue)
	}
	if in.InstallmentCount != 1 || in.InstallmentCurrent != 1 {
		t.Errorf("installments = %d/%d, want 1/1", in.InstallmentCurrent, in.InstallmentCount)
	}
	if in.Description != "Rent" {
		t.Errorf("Description = %q", in.Description)
	}
}

func TestNormalizeRecurrenceTurnedOff(t *testing.T) {
	in := validInput()
	in.IsRecurring = true
	in.RecurringType = ptr(RecurrenceCustom)
	in.RecurringDay = ptr(10)
	in.RecurringMonths = ptr(6)

	in.IsRecurring = false
	in.NormalizeRecurrence()

	if in.RecurringType != nil || in.RecurringDay != nil || in.RecurringMonths != nil {
		t.Fatalf("expected recurrence fields cleared, got %v %v %v", in.RecurringType, in.RecurringDay, in.RecurringMonths)
	}
}

func TestNormalizeRecurrenceTurnedOn(t *testing.T) {
	in := validInput()
	in.IsRecurring = true
	in.NormalizeRecurrence()
	if in.RecurringType == nil || *in.RecurringType != RecurrenceDay15 {
		t.Fatalf("RecurringType = %v, want day_15", in.RecurringType)
	}
	if in.RecurringDay == nil || *in.RecurringDay != 15 {
		t.Fatalf("RecurringDay = %v, want 15", in.RecurringDay)
	}
}

func TestTransactionPatchApply(t *testing.T) {
	tx := Transaction{
		ID:              "t1",
		Description:     "Gym",
		Amount:          decimal.NewFromInt(40),
		Type:            Expense,
		TransactionDate: NewDate(2025, 1, 5),
		Status:          StatusDue,
		CategoryID:      ptr("c1"),
		IsRecurring:     true,
		RecurringType:   ptr(RecurrenceCustom),
		RecurringDay:    ptr(5),
	}
	in := TransactionPatch{
		Status:        ptr(StatusPaid),
		ClearCategory: true,
		IsRecurring:   ptr(false),
	}.Apply(tx)

	if in.Status != StatusPaid {
		t.Errorf("Status = %q", in.Status)
	}
	if in.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil", *in.CategoryID)
	}
	if in.Description != "Gym" || !in.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("untouched fields changed: %+v", in)
	}
	if in.IsRecurring {
		t.Errorf("IsRecurring = true, want false")
	}
}

func TestCategoryInput(t *testing.T) {
	in := CategoryInput{Name: " Food ", Type: Expense}
	in.ApplyDefaults()
	if in.Name != "Food" || in.Color != DefaultCategoryColor {
		t.Fatalf("ApplyDefaults() = %+v", in)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if err := (CategoryInput{Name: "x", Type: "other"}).Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if err := (CategoryInput{Type: Income}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestCreditCardInputValidate(t *testing.T) {
	good := CreditCardInput{
		Name:           "Visa",
		LastFourDigits: "1234",
		CardType:       "credit",
		CreditLimit:    decimal.NewFromInt(5000),
		ClosingDay:     25,
		DueDay:         5,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreditCardInput)
	}{
		{"no name", func(c *CreditCardInput) { c.Name = "" }},
		{"three digits", func(c *CreditCardInput) { c.LastFourDigits = "123" }},
		{"letters", func(c *CreditCardInput) { c.LastFourDigits = "12a4" }},
		{"negative limit", func(c *CreditCardInput) { c.CreditLimit = decimal.NewFromInt(-1) }},
		{"closing day", func(c *CreditCardInput) { c.ClosingDay = 0 }},
		{"due day", func(c *CreditCardInput) { c.DueDay = 32 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good
			tt.mutate(&in)
			if err := in.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
