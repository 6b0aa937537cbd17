package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finance/internal/core"
	"finance/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const timestampLayout = time.RFC3339Nano

// Repository implements the store ports over database/sql. SQLite and
// PostgreSQL share the schema; only placeholders differ.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	pool    *pgxpool.Pool
}

var (
	_ ports.TransactionStore = (*Repository)(nil)
	_ ports.RecurringStore   = (*Repository)(nil)
	_ ports.CategoryStore    = (*Repository)(nil)
	_ ports.SubcategoryStore = (*Repository)(nil)
	_ ports.CreditCardStore  = (*Repository)(nil)
)

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// single writer avoids SQLITE_BUSY under concurrent service calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: DialectSQLite}, nil
}

// NewPostgresRepository connects a pgx pool and exposes it as *sql.DB.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	return &Repository{db: db, dialect: DialectPostgres, pool: pool}, nil
}

func (r *Repository) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}

// Dialect reports which database the repository talks to.
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// mustAffect maps a zero-row write to core.ErrNotFound.
func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// Transactions

const transactionColumns = `id, tenant_id, user_id, category_id, subcategory_id, credit_card_id,
	description, amount, type, transaction_date, due_date, status, assigned_to, notes,
	installment_count, installment_current, is_recurring, recurring_type, recurring_day,
	recurring_months, recurring_parent_id, occurrences_generated, last_occurrence_date,
	icon, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                                         core.Transaction
		categoryID, subcategoryID, creditCardID   sql.NullString
		dueDate, assignedTo, notes, recurringType sql.NullString
		parentID, lastOccurrence, icon            sql.NullString
		recurringDay, recurringMonths             sql.NullInt64
		txDate, createdAt, updatedAt, typ, status string
	)
	err := s.Scan(&t.ID, &t.TenantID, &t.UserID, &categoryID, &subcategoryID, &creditCardID,
		&t.Description, &t.Amount, &typ, &txDate, &dueDate, &status, &assignedTo, &notes,
		&t.InstallmentCount, &t.InstallmentCurrent, &t.IsRecurring, &recurringType, &recurringDay,
		&recurringMonths, &parentID, &t.OccurrencesCount, &lastOccurrence,
		&icon, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Type = core.TransactionType(typ)
	t.Status = core.TransactionStatus(status)
	t.CategoryID = fromNullString(categoryID)
	t.SubcategoryID = fromNullString(subcategoryID)
	t.CreditCardID = fromNullString(creditCardID)
	t.AssignedTo = fromNullString(assignedTo)
	t.Notes = fromNullString(notes)
	t.RecurringParentID = fromNullString(parentID)
	t.Icon = fromNullString(icon)
	t.RecurringDay = fromNullInt(recurringDay)
	t.RecurringMonths = fromNullInt(recurringMonths)
	if recurringType.Valid {
		rt := core.RecurrenceType(recurringType.String)
		t.RecurringType = &rt
	}
	if t.TransactionDate, err = core.ParseDate(txDate); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction_date: %w", err)
	}
	if t.DueDate, err = fromNullDate(dueDate); err != nil {
		return core.Transaction{}, fmt.Errorf("due_date: %w", err)
	}
	if t.LastOccurrenceDate, err = fromNullDate(lastOccurrence); err != nil {
		return core.Transaction{}, fmt.Errorf("last_occurrence_date: %w", err)
	}
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, scope core.Scope, filter ports.TransactionFilter) ([]core.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = ? AND user_id = ?`
	args := []any{scope.TenantID, scope.UserID}
	if filter.StartDate != nil {
		q += ` AND transaction_date >= ?`
		args = append(args, filter.StartDate.String())
	}
	if filter.EndDate != nil {
		q += ` AND transaction_date <= ?`
		args = append(args, filter.EndDate.String())
	}
	q += ` ORDER BY transaction_date DESC, created_at DESC`
	return r.listTransactions(ctx, q, args...)
}

func (r *Repository) listTransactions(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, scope core.Scope, id string) (core.Transaction, error) {
	row := r.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		id, scope.TenantID, scope.UserID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	_, err := r.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.UserID, t.CategoryID, t.SubcategoryID, t.CreditCardID,
		t.Description, t.Amount, string(t.Type), t.TransactionDate.String(), toNullDate(t.DueDate), string(t.Status),
		t.AssignedTo, t.Notes, t.InstallmentCount, t.InstallmentCurrent, t.IsRecurring,
		toNullRecurrence(t.RecurringType), t.RecurringDay, t.RecurringMonths, t.RecurringParentID,
		t.OccurrencesCount, toNullDate(t.LastOccurrenceDate), t.Icon,
		formatTimestamp(t.CreatedAt), formatTimestamp(t.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Transaction{}, fmt.Errorf("create transaction %s: %w", t.ID, core.ErrDuplicate)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"tenant_id", t.TenantID,
		"type", t.Type,
		"amount", t.Amount.String(),
		"date", t.TransactionDate.String(),
		"dialect", r.dialect)

	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.exec(ctx, `UPDATE transactions SET
		category_id = ?, subcategory_id = ?, credit_card_id = ?, description = ?, amount = ?, type = ?,
		transaction_date = ?, due_date = ?, status = ?, assigned_to = ?, notes = ?,
		installment_count = ?, installment_current = ?, is_recurring = ?, recurring_type = ?,
		recurring_day = ?, recurring_months = ?, icon = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		t.CategoryID, t.SubcategoryID, t.CreditCardID, t.Description, t.Amount, string(t.Type),
		t.TransactionDate.String(), toNullDate(t.DueDate), string(t.Status), t.AssignedTo, t.Notes,
		t.InstallmentCount, t.InstallmentCurrent, t.IsRecurring, toNullRecurrence(t.RecurringType),
		t.RecurringDay, t.RecurringMonths, t.Icon, formatTimestamp(t.UpdatedAt),
		t.ID, t.TenantID, t.UserID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := mustAffect(res, "transaction", t.ID); err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, core.Scope{TenantID: t.TenantID, UserID: t.UserID}, t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, scope core.Scope, id string) error {
	res, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		id, scope.TenantID, scope.UserID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return mustAffect(res, "transaction", id)
}

// ListRecurringTemplates implements ports.RecurringStore
func (r *Repository) ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error) {
	return r.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE is_recurring = ? AND recurring_type IS NOT NULL AND recurring_type <> ?
		ORDER BY created_at`, true, string(core.RecurrenceNone))
}

// RecordOccurrence implements ports.RecurringStore
func (r *Repository) RecordOccurrence(ctx context.Context, templateID string, date core.Date) error {
	res, err := r.exec(ctx, `UPDATE transactions
		SET occurrences_generated = occurrences_generated + 1, last_occurrence_date = ?
		WHERE id = ?`, date.String(), templateID)
	if err != nil {
		return fmt.Errorf("record occurrence: %w", err)
	}
	return mustAffect(res, "transaction", templateID)
}

// Categories

const categoryColumns = `id, tenant_id, name, type, color, icon, created_at, updated_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c                         core.Category
		typ, createdAt, updatedAt string
		icon                      sql.NullString
	)
	if err := s.Scan(&c.ID, &c.TenantID, &c.Name, &typ, &c.Color, &icon, &createdAt, &updatedAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	c.Icon = fromNullString(icon)
	var err error
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Category{}, err
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, tenantID string, typ *core.TransactionType) ([]core.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories WHERE tenant_id = ?`
	args := []any{tenantID}
	if typ != nil {
		q += ` AND type = ?`
		args = append(args, string(*typ))
	}
	q += ` ORDER BY name`

	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, tenantID, id string) (core.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ? AND tenant_id = ?`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	_, err := r.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, string(c.Type), c.Color, c.Icon,
		formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.exec(ctx, `UPDATE categories SET name = ?, type = ?, color = ?, icon = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		c.Name, string(c.Type), c.Color, c.Icon, formatTimestamp(c.UpdatedAt), c.ID, c.TenantID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := mustAffect(res, "category", c.ID); err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, c.TenantID, c.ID)
}

// DeleteCategory removes the category with its subcategories and detaches
// transactions that referenced it.
func (r *Repository) DeleteCategory(ctx context.Context, tenantID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`UPDATE transactions SET category_id = NULL, subcategory_id = NULL WHERE tenant_id = ? AND category_id = ?`,
		`DELETE FROM subcategories WHERE tenant_id = ? AND parent_category_id = ?`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, r.rebind(s), tenantID, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM categories WHERE id = ? AND tenant_id = ?`), id, tenantID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := mustAffect(res, "category", id); err != nil {
		return err
	}
	return tx.Commit()
}

// Subcategories

const subcategoryColumns = `id, tenant_id, parent_category_id, name, icon, created_at, updated_at`

func scanSubcategory(s rowScanner) (core.Subcategory, error) {
	var (
		sc                   core.Subcategory
		createdAt, updatedAt string
		icon                 sql.NullString
	)
	if err := s.Scan(&sc.ID, &sc.TenantID, &sc.ParentCategoryID, &sc.Name, &icon, &createdAt, &updatedAt); err != nil {
		return core.Subcategory{}, err
	}
	sc.Icon = fromNullString(icon)
	var err error
	if sc.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Subcategory{}, err
	}
	if sc.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return core.Subcategory{}, err
	}
	return sc, nil
}

func (r *Repository) ListSubcategories(ctx context.Context, tenantID string, parentID *string) ([]core.Subcategory, error) {
	q := `SELECT ` + subcategoryColumns + ` FROM subcategories WHERE tenant_id = ?`
	args := []any{tenantID}
	if parentID != nil {
		q += ` AND parent_category_id = ?`
		args = append(args, *parentID)
	}
	q += ` ORDER BY name`

	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	var out []core.Subcategory
	for rows.Next() {
		sc, err := scanSubcategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *Repository) GetSubcategory(ctx context.Context, tenantID, id string) (core.Subcategory, error) {
	sc, err := scanSubcategory(r.queryRow(ctx, `SELECT `+subcategoryColumns+` FROM subcategories WHERE id = ? AND tenant_id = ?`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subcategory{}, fmt.Errorf("subcategory %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("get subcategory: %w", err)
	}
	return sc, nil
}

func (r *Repository) CreateSubcategory(ctx context.Context, sc core.Subcategory) (core.Subcategory, error) {
	_, err := r.exec(ctx, `INSERT INTO subcategories (`+subcategoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.TenantID, sc.ParentCategoryID, sc.Name, sc.Icon,
		formatTimestamp(sc.CreatedAt), formatTimestamp(sc.UpdatedAt))
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("create subcategory: %w", err)
	}
	return sc, nil
}

func (r *Repository) UpdateSubcategory(ctx context.Context, sc core.Subcategory) (core.Subcategory, error) {
	res, err := r.exec(ctx, `UPDATE subcategories SET parent_category_id = ?, name = ?, icon = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		sc.ParentCategoryID, sc.Name, sc.Icon, formatTimestamp(sc.UpdatedAt), sc.ID, sc.TenantID)
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("update subcategory: %w", err)
	}
	if err := mustAffect(res, "subcategory", sc.ID); err != nil {
		return core.Subcategory{}, err
	}
	return r.GetSubcategory(ctx, sc.TenantID, sc.ID)
}

func (r *Repository) DeleteSubcategory(ctx context.Context, tenantID, id string) error {
	if _, err := r.exec(ctx, `UPDATE transactions SET subcategory_id = NULL WHERE tenant_id = ? AND subcategory_id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("detach subcategory: %w", err)
	}
	res, err := r.exec(ctx, `DELETE FROM subcategories WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	return mustAffect(res, "subcategory", id)
}

// Credit cards

const creditCardColumns = `id, tenant_id, user_id, name, last_four_digits, card_type, bank_name,
	credit_limit, closing_day, due_day, color, icon, created_at, updated_at`

func scanCreditCard(s rowScanner) (core.CreditCard, error) {
	var (
		c                    core.CreditCard
		bankName, icon       sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&c.ID, &c.TenantID, &c.UserID, &c.Name, &c.LastFourDigits, &c.CardType, &bankName,
		&c.CreditLimit, &c.ClosingDay, &c.DueDay, &c.Color, &icon, &createdAt, &updatedAt)
	if err != nil {
		return core.CreditCard{}, err
	}
	c.BankName = fromNullString(bankName)
	c.Icon = fromNullString(icon)
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.CreditCard{}, err
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return core.CreditCard{}, err
	}
	return c, nil
}

func (r *Repository) ListCreditCards(ctx context.Context, scope core.Scope) ([]core.CreditCard, error) {
	rows, err := r.query(ctx, `SELECT `+creditCardColumns+` FROM credit_cards WHERE tenant_id = ? AND user_id = ? ORDER BY name`,
		scope.TenantID, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		c, err := scanCreditCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCreditCard(ctx context.Context, scope core.Scope, id string) (core.CreditCard, error) {
	c, err := scanCreditCard(r.queryRow(ctx, `SELECT `+creditCardColumns+` FROM credit_cards WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		id, scope.TenantID, scope.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditCard{}, fmt.Errorf("credit card %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get credit card: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCreditCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	_, err := r.exec(ctx, `INSERT INTO credit_cards (`+creditCardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.UserID, c.Name, c.LastFourDigits, c.CardType, c.BankName,
		c.CreditLimit, c.ClosingDay, c.DueDay, c.Color, c.Icon,
		formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt))
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("create credit card: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCreditCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	res, err := r.exec(ctx, `UPDATE credit_cards SET name = ?, last_four_digits = ?, card_type = ?, bank_name = ?,
		credit_limit = ?, closing_day = ?, due_day = ?, color = ?, icon = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		c.Name, c.LastFourDigits, c.CardType, c.BankName, c.CreditLimit, c.ClosingDay, c.DueDay,
		c.Color, c.Icon, formatTimestamp(c.UpdatedAt), c.ID, c.TenantID, c.UserID)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update credit card: %w", err)
	}
	if err := mustAffect(res, "credit card", c.ID); err != nil {
		return core.CreditCard{}, err
	}
	return r.GetCreditCard(ctx, core.Scope{TenantID: c.TenantID, UserID: c.UserID}, c.ID)
}

func (r *Repository) DeleteCreditCard(ctx context.Context, scope core.Scope, id string) error {
	if _, err := r.exec(ctx, `UPDATE transactions SET credit_card_id = NULL WHERE tenant_id = ? AND user_id = ? AND credit_card_id = ?`,
		scope.TenantID, scope.UserID, id); err != nil {
		return fmt.Errorf("detach credit card: %w", err)
	}
	res, err := r.exec(ctx, `DELETE FROM credit_cards WHERE id = ? AND tenant_id = ? AND user_id = ?`,
		id, scope.TenantID, scope.UserID)
	if err != nil {
		return fmt.Errorf("delete credit card: %w", err)
	}
	return mustAffect(res, "credit card", id)
}

// Column helpers

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func fromNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func fromNullDate(ns sql.NullString) (*core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toNullDate(d *core.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func toNullRecurrence(t *core.RecurrenceType) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
