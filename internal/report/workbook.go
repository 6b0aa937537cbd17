package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet      = "Summary"
	categoriesSheet   = "Categories"
	transactionsSheet = "Transactions"
	upcomingSheet     = "Upcoming"
	cardsSheet        = "Credit cards"

	// built-in "#,##0.00"
	amountNumFmt = 4
)

// SaveWorkbook writes r as an xlsx file at path.
func SaveWorkbook(path string, r *Report) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// WriteWorkbook streams r as xlsx to w.
func WriteWorkbook(w io.Writer, r *Report) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type workbook struct {
	f      *excelize.File
	header int
	amount int
}

func buildWorkbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	wb := &workbook{f: f}

	var err error
	if wb.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	if wb.amount, err = f.NewStyle(&excelize.Style{NumFmt: amountNumFmt}); err != nil {
		f.Close()
		return nil, fmt.Errorf("amount style: %w", err)
	}

	steps := []func(*Report) error{
		wb.summary,
		wb.categories,
		wb.transactions,
	}
	if len(r.Upcoming) > 0 {
		steps = append(steps, wb.upcoming)
	}
	if len(r.Cards) > 0 {
		steps = append(steps, wb.cards)
	}
	for _, step := range steps {
		if err := step(r); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (wb *workbook) sheet(name string) error {
	if name == summarySheet {
		return wb.f.SetSheetName(wb.f.GetSheetName(0), name)
	}
	_, err := wb.f.NewSheet(name)
	return err
}

// rows writes a bold header followed by data rows, starting at A1. Columns
// listed in amountCols (1-based) get the amount number format.
func (wb *workbook) rows(sheet string, header []any, data [][]any, amountCols ...int) error {
	if err := wb.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := wb.f.SetCellStyle(sheet, "A1", last, wb.header); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, row := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	if len(data) == 0 {
		return nil
	}
	for _, col := range amountCols {
		top, _ := excelize.CoordinatesToCellName(col, 2)
		bottom, _ := excelize.CoordinatesToCellName(col, len(data)+1)
		if err := wb.f.SetCellStyle(sheet, top, bottom, wb.amount); err != nil {
			return fmt.Errorf("%s amount style: %w", sheet, err)
		}
	}
	return nil
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func (wb *workbook) summary(r *Report) error {
	if err := wb.sheet(summarySheet); err != nil {
		return err
	}
	s := r.Summary
	data := [][]any{
		{"Tenant", r.Scope.TenantID},
		{"User", r.Scope.UserID},
		{"From", r.From.String()},
		{"To", r.To.String()},
		{"Income", amount(s.TotalIncome)},
		{"Expenses", amount(s.TotalExpenses)},
		{"Balance", amount(s.TotalBalance)},
		{"Invested", amount(s.Invested)},
		{"Available", amount(s.AvailableBalance)},
	}
	if err := wb.rows(summarySheet, []any{"Figure", "Value"}, data); err != nil {
		return err
	}
	// rows 6..10 hold the amounts
	return wb.f.SetCellStyle(summarySheet, "B6", "B10", wb.amount)
}

func (wb *workbook) categories(r *Report) error {
	if err := wb.sheet(categoriesSheet); err != nil {
		return err
	}
	data := make([][]any, 0, len(r.Categories))
	for _, c := range r.Categories {
		data = append(data, []any{c.Category, amount(c.Amount), c.Percentage.InexactFloat64(), c.Color})
	}
	return wb.rows(categoriesSheet, []any{"Category", "Amount", "Share %", "Color"}, data, 2)
}

func (wb *workbook) transactions(r *Report) error {
	if err := wb.sheet(transactionsSheet); err != nil {
		return err
	}
	data := make([][]any, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		data = append(data, []any{
			t.TransactionDate.String(),
			t.Description,
			string(t.Type),
			amount(t.Amount),
			string(t.Status),
			due,
			fmt.Sprintf("%d/%d", t.InstallmentCurrent, t.InstallmentCount),
			t.IsRecurring,
		})
	}
	header := []any{"Date", "Description", "Type", "Amount", "Status", "Due", "Installment", "Recurring"}
	return wb.rows(transactionsSheet, header, data, 4)
}

func (wb *workbook) upcoming(r *Report) error {
	if err := wb.sheet(upcomingSheet); err != nil {
		return err
	}
	var data [][]any
	for _, u := range r.Upcoming {
		for _, d := range u.Dates {
			data = append(data, []any{d.String(), u.Template.Description, string(u.Template.Type), amount(u.Template.Amount), ruleLabel(u.Template.Rule())})
		}
	}
	return wb.rows(upcomingSheet, []any{"Date", "Description", "Type", "Amount", "Rule"}, data, 4)
}

func (wb *workbook) cards(r *Report) error {
	if err := wb.sheet(cardsSheet); err != nil {
		return err
	}
	data := make([][]any, 0, len(r.Cards))
	for _, c := range r.Cards {
		data = append(data, []any{
			c.Card.Name,
			c.Card.LastFourDigits,
			c.Card.CardType,
			c.Card.ClosingDay,
			c.Card.DueDay,
			amount(c.Usage.MonthlyValue),
			amount(c.Usage.RemainingLimit),
			amount(c.Usage.TotalLimit),
		})
	}
	header := []any{"Card", "Last digits", "Type", "Closing day", "Due day", "Charged", "Remaining", "Limit"}
	return wb.rows(cardsSheet, header, data, 6, 7, 8)
}
