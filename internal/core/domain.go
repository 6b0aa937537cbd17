package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Status values use the wire representation of the finance service.
const (
	StatusPaid    TransactionStatus = "pago"
	StatusDue     TransactionStatus = "a_pagar"
	StatusOverdue TransactionStatus = "em_atraso"
)

const (
	DateLayout = "2006-01-02"

	DefaultCategoryColor   = "#6366F1"
	DefaultCreditCardColor = "#0EA5E9"

	maxDescriptionLength = 200
)

type (
	TransactionType   string
	TransactionStatus string

	// Date is a calendar date without time of day, always UTC.
	Date struct {
		time.Time
	}

	// Scope identifies on whose behalf an operation runs. Callers resolve it
	// from their auth/tenant context and pass it explicitly.
	Scope struct {
		TenantID string
		UserID   string
	}

	Transaction struct {
		ID                  string            `json:"id"`
		TenantID            string            `json:"tenant_id"`
		UserID              string            `json:"user_id"`
		CategoryID          *string           `json:"category_id"`
		SubcategoryID       *string           `json:"subcategory_id"`
		CreditCardID        *string           `json:"credit_card_id"`
		Description         string            `json:"description"`
		Amount              decimal.Decimal   `json:"amount"`
		Type                TransactionType   `json:"type"`
		TransactionDate     Date              `json:"transaction_date"`
		DueDate             *Date             `json:"due_date"`
		Status              TransactionStatus `json:"status"`
		AssignedTo          *string           `json:"assigned_to"`
		Notes               *string           `json:"notes"`
		InstallmentCount    int               `json:"installment_count"`
		InstallmentCurrent  int               `json:"installment_current"`
		IsRecurring         bool              `json:"is_recurring"`
		RecurringType       *RecurrenceType   `json:"recurring_type"`
		RecurringDay        *int              `json:"recurring_day"`
		RecurringMonths     *int              `json:"recurring_months"`
		RecurringParentID   *string           `json:"recurring_parent_id,omitempty"`
		OccurrencesCount    int               `json:"occurrences_generated,omitempty"`
		LastOccurrenceDate  *Date             `json:"last_occurrence_date,omitempty"`
		Icon                *string           `json:"icon"`
		CreatedAt           time.Time         `json:"created_at"`
		UpdatedAt           time.Time         `json:"updated_at"`
	}

	// TransactionInput is the creation payload.
	TransactionInput struct {
		Description        string             `json:"description"`
		Amount             decimal.Decimal    `json:"amount"`
		Type               TransactionType    `json:"type"`
		TransactionDate    Date               `json:"transaction_date"`
		DueDate            *Date              `json:"due_date,omitempty"`
		CreditCardID       *string            `json:"credit_card_id,omitempty"`
		CategoryID         *string            `json:"category_id,omitempty"`
		SubcategoryID      *string            `json:"subcategory_id,omitempty"`
		Status             TransactionStatus  `json:"status,omitempty"`
		AssignedTo         *string            `json:"assigned_to,omitempty"`
		Notes              *string            `json:"notes,omitempty"`
		InstallmentCount   int                `json:"installment_count,omitempty"`
		InstallmentCurrent int                `json:"installment_current,omitempty"`
		IsRecurring        bool               `json:"is_recurring"`
		RecurringType      *RecurrenceType    `json:"recurring_type,omitempty"`
		RecurringDay       *int               `json:"recurring_day,omitempty"`
		RecurringMonths    *int               `json:"recurring_months,omitempty"`
		RecurringParentID  *string            `json:"recurring_parent_id,omitempty"`
		Icon               *string            `json:"icon,omitempty"`
	}

	// TransactionPatch carries a partial update. Nil fields are left untouched.
	// Clear* flags null out optional references.
	TransactionPatch struct {
		Description        *string
		Amount             *decimal.Decimal
		Type               *TransactionType
		TransactionDate    *Date
		DueDate            *Date
		ClearDueDate       bool
		CreditCardID       *string
		ClearCreditCard    bool
		CategoryID         *string
		ClearCategory      bool
		SubcategoryID      *string
		ClearSubcategory   bool
		Status             *TransactionStatus
		AssignedTo         *string
		Notes              *string
		InstallmentCount   *int
		InstallmentCurrent *int
		IsRecurring        *bool
		RecurringType      *RecurrenceType
		RecurringDay       *int
		RecurringMonths    *int
		Icon               *string
	}

	Category struct {
		ID        string          `json:"id"`
		TenantID  string          `json:"tenant_id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color"`
		Icon      *string         `json:"icon"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	CategoryInput struct {
		Name  string          `json:"name" yaml:"name"`
		Type  TransactionType `json:"type" yaml:"type"`
		Color string          `json:"color,omitempty" yaml:"color"`
		Icon  *string         `json:"icon,omitempty" yaml:"icon"`
	}

	Subcategory struct {
		ID               string    `json:"id"`
		TenantID         string    `json:"tenant_id"`
		ParentCategoryID string    `json:"parent_category_id"`
		Name             string    `json:"name"`
		Icon             *string   `json:"icon"`
		CreatedAt        time.Time `json:"created_at"`
		UpdatedAt        time.Time `json:"updated_at"`
	}

	SubcategoryInput struct {
		ParentCategoryID string  `json:"parent_category_id"`
		Name             string  `json:"name"`
		Icon             *string `json:"icon,omitempty"`
	}

	CreditCard struct {
		ID             string          `json:"id"`
		TenantID       string          `json:"tenant_id"`
		UserID         string          `json:"user_id"`
		Name           string          `json:"name"`
		LastFourDigits string          `json:"last_four_digits"`
		CardType       string          `json:"card_type"`
		BankName       *string         `json:"bank_name"`
		CreditLimit    decimal.Decimal `json:"credit_limit"`
		ClosingDay     int             `json:"closing_day"`
		DueDay         int             `json:"due_day"`
		Color          string          `json:"color"`
		Icon           *string         `json:"icon"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	CreditCardInput struct {
		Name           string          `json:"name"`
		LastFourDigits string          `json:"last_four_digits"`
		CardType       string          `json:"card_type"`
		BankName       *string         `json:"bank_name,omitempty"`
		CreditLimit    decimal.Decimal `json:"credit_limit"`
		ClosingDay     int             `json:"closing_day"`
		DueDay         int             `json:"due_day"`
		Color          string          `json:"color,omitempty"`
		Icon           *string         `json:"icon,omitempty"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid transaction status")
	ErrInvalidCard      = errors.New("invalid credit card")
	ErrInstallments     = errors.New("invalid installments")
	ErrUnauthenticated  = errors.New("user not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// YearMonth formats the date as YYYY-MM.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first and last day of the month containing d.
func MonthRange(d Date) (Date, Date) {
	first := NewDate(d.Year(), d.Month(), 1)
	last := NewDate(d.Year(), d.Month(), DaysIn(d.Year(), d.Month()))
	return first, last
}

// DaysIn returns the number of days of the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrUnauthenticated
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusDue, StatusOverdue:
		return true
	}
	return false
}

// Rule extracts the recurrence rule embedded in the transaction.
func (t Transaction) Rule() RecurrenceRule {
	return ruleFrom(t.IsRecurring, t.RecurringType, t.RecurringDay, t.RecurringMonths)
}

// Rule extracts the recurrence rule embedded in the payload.
func (in TransactionInput) Rule() RecurrenceRule {
	return ruleFrom(in.IsRecurring, in.RecurringType, in.RecurringDay, in.RecurringMonths)
}

// ApplyDefaults fills the optional fields the service defaults.
func (in *TransactionInput) ApplyDefaults() {
	if in.Status == "" {
		in.Status = StatusDue
	}
	if in.InstallmentCount == 0 {
		in.InstallmentCount = 1
	}
	if in.InstallmentCurrent == 0 {
		in.InstallmentCurrent = 1
	}
	in.Description = strings.TrimSpace(in.Description)
}

// NormalizeRecurrence enforces the recurrence fields against IsRecurring.
func (in *TransactionInput) NormalizeRecurrence() {
	rule := SetRecurring(in.Rule(), in.IsRecurring)
	in.RecurringType, in.RecurringDay, in.RecurringMonths = rule.Fields()
}

func (in TransactionInput) Validate() error {
	if len(strings.TrimSpace(in.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(in.Description) > maxDescriptionLength {
		return errors.New("description too long (max 200 characters)")
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if err := in.TransactionDate.Validate(); err != nil {
		return fmt.Errorf("invalid transaction date: %w", err)
	}
	if in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}
	if in.InstallmentCount < 0 || in.InstallmentCurrent < 0 {
		return ErrInstallments
	}
	if in.InstallmentCount > 0 && in.InstallmentCurrent > in.InstallmentCount {
		return ErrInstallments
	}
	if in.IsRecurring {
		if _, err := ResolveDueDay(in.Rule()); err != nil && !errors.Is(err, ErrInactiveRule) {
			return err
		}
		if in.RecurringMonths != nil && *in.RecurringMonths < 1 {
			return fmt.Errorf("%w: recurring_months must be at least 1", ErrInvalidRule)
		}
	}
	return nil
}

// Apply merges the patch into the transaction's creatable fields.
func (p TransactionPatch) Apply(t Transaction) TransactionInput {
	in := t.Input()
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.TransactionDate != nil {
		in.TransactionDate = *p.TransactionDate
	}
	if p.DueDate != nil {
		in.DueDate = p.DueDate
	}
	if p.ClearDueDate {
		in.DueDate = nil
	}
	if p.CreditCardID != nil {
		in.CreditCardID = p.CreditCardID
	}
	if p.ClearCreditCard {
		in.CreditCardID = nil
	}
	if p.CategoryID != nil {
		in.CategoryID = p.CategoryID
	}
	if p.ClearCategory {
		in.CategoryID = nil
	}
	if p.SubcategoryID != nil {
		in.SubcategoryID = p.SubcategoryID
	}
	if p.ClearSubcategory {
		in.SubcategoryID = nil
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.AssignedTo != nil {
		in.AssignedTo = p.AssignedTo
	}
	if p.Notes != nil {
		in.Notes = p.Notes
	}
	if p.InstallmentCount != nil {
		in.InstallmentCount = *p.InstallmentCount
	}
	if p.InstallmentCurrent != nil {
		in.InstallmentCurrent = *p.InstallmentCurrent
	}
	if p.IsRecurring != nil {
		in.IsRecurring = *p.IsRecurring
	}
	if p.RecurringType != nil {
		in.RecurringType = p.RecurringType
	}
	if p.RecurringDay != nil {
		in.RecurringDay = p.RecurringDay
	}
	if p.RecurringMonths != nil {
		in.RecurringMonths = p.RecurringMonths
	}
	if p.Icon != nil {
		in.Icon = p.Icon
	}
	return in
}

// Input returns the creatable fields of the transaction.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Description:        t.Description,
		Amount:             t.Amount,
		Type:               t.Type,
		TransactionDate:    t.TransactionDate,
		DueDate:            t.DueDate,
		CreditCardID:       t.CreditCardID,
		CategoryID:         t.CategoryID,
		SubcategoryID:      t.SubcategoryID,
		Status:             t.Status,
		AssignedTo:         t.AssignedTo,
		Notes:              t.Notes,
		InstallmentCount:   t.InstallmentCount,
		InstallmentCurrent: t.InstallmentCurrent,
		IsRecurring:        t.IsRecurring,
		RecurringType:      t.RecurringType,
		RecurringDay:       t.RecurringDay,
		RecurringMonths:    t.RecurringMonths,
		RecurringParentID:  t.RecurringParentID,
		Icon:               t.Icon,
	}
}

// WithInput overwrites the creatable fields of t with in.
func (t Transaction) WithInput(in TransactionInput) Transaction {
	t.Description = in.Description
	t.Amount = in.Amount
	t.Type = in.Type
	t.TransactionDate = in.TransactionDate
	t.DueDate = in.DueDate
	t.CreditCardID = in.CreditCardID
	t.CategoryID = in.CategoryID
	t.SubcategoryID = in.SubcategoryID
	t.Status = in.Status
	t.AssignedTo = in.AssignedTo
	t.Notes = in.Notes
	t.InstallmentCount = in.InstallmentCount
	t.InstallmentCurrent = in.InstallmentCurrent
	t.IsRecurring = in.IsRecurring
	t.RecurringType = in.RecurringType
	t.RecurringDay = in.RecurringDay
	t.RecurringMonths = in.RecurringMonths
	t.RecurringParentID = in.RecurringParentID
	t.Icon = in.Icon
	return t
}

func (in *CategoryInput) ApplyDefaults() {
	in.Name = strings.TrimSpace(in.Name)
	if strings.TrimSpace(in.Color) == "" {
		in.Color = DefaultCategoryColor
	}
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (in SubcategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(in.ParentCategoryID) == "" {
		return errors.New("parent category is required")
	}
	return nil
}

func (in *CreditCardInput) ApplyDefaults() {
	in.Name = strings.TrimSpace(in.Name)
	if strings.TrimSpace(in.Color) == "" {
		in.Color = DefaultCreditCardColor
	}
}

func (in CreditCardInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.LastFourDigits) != 4 {
		return fmt.Errorf("%w: last four digits must have 4 characters", ErrInvalidCard)
	}
	for _, r := range in.LastFourDigits {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: last four digits must be numeric", ErrInvalidCard)
		}
	}
	if in.CreditLimit.IsNegative() {
		return fmt.Errorf("%w: credit limit cannot be negative", ErrInvalidCard)
	}
	if in.ClosingDay < 1 || in.ClosingDay > 31 {
		return fmt.Errorf("%w: closing day", ErrInvalidDay)
	}
	if in.DueDay < 1 || in.DueDay > 31 {
		return fmt.Errorf("%w: due day", ErrInvalidDay)
	}
	return nil
}
