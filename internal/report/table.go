package report

import (
	"fmt"
	"io"
	"strings"

	"finance/internal/core"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// PrintSummary renders the totals of r.
func PrintSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Summary for %s (%s)\n", r.Scope.UserID, r.period())

	t := newTable(w)
	t.AppendHeader(table.Row{"Figure", "Amount"})
	t.AppendRows([]table.Row{
		{"Income", core.FormatAmount(r.Summary.TotalIncome)},
		{"Expenses", core.FormatAmount(r.Summary.TotalExpenses)},
		{"Balance", balance(r.Summary.TotalBalance.IsNegative(), core.FormatAmount(r.Summary.TotalBalance))},
		{"Invested", core.FormatAmount(r.Summary.Invested)},
	})
	t.AppendFooter(table.Row{text.Bold.Sprint("Available"), text.Bold.Sprint(core.FormatAmount(r.Summary.AvailableBalance))})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

func balance(negative bool, s string) string {
	if negative {
		return text.FgRed.Sprint(s)
	}
	return text.FgGreen.Sprint(s)
}

// PrintCategories renders the expense breakdown of r.
func PrintCategories(w io.Writer, r *Report) {
	if len(r.Categories) == 0 {
		fmt.Fprintln(w, "No expenses in range.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "Amount", "Share"})
	for _, c := range r.Categories {
		t.AppendRow(table.Row{c.Category, core.FormatAmount(c.Amount), c.Percentage.StringFixed(2) + "%"})
	}
	t.AppendSeparator()
	t.AppendFooter(table.Row{text.Bold.Sprint("Total"), text.Bold.Sprint(core.FormatAmount(r.Summary.TotalExpenses)), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
}

// PrintUpcoming renders the pending occurrences of recurring templates.
func PrintUpcoming(w io.Writer, r *Report) {
	if len(r.Upcoming) == 0 {
		fmt.Fprintln(w, "No upcoming recurring transactions.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Description", "Type", "Rule", "Amount", "Next dates"})
	for _, u := range r.Upcoming {
		dates := make([]string, len(u.Dates))
		for i, d := range u.Dates {
			dates[i] = d.String()
		}
		t.AppendRow(table.Row{
			u.Template.Description,
			string(u.Template.Type),
			ruleLabel(u.Template.Rule()),
			core.FormatAmount(u.Template.Amount),
			strings.Join(dates, ", "),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	t.Render()
}

// PrintCreditCards renders the usage of every card in the range.
func PrintCreditCards(w io.Writer, r *Report) {
	if len(r.Cards) == 0 {
		fmt.Fprintln(w, "No credit cards.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Card", "Type", "Closing", "Due", "Charged", "Remaining", "Limit"})
	for _, c := range r.Cards {
		t.AppendRow(table.Row{
			cardLabel(c.Card),
			c.Card.CardType,
			c.Card.ClosingDay,
			c.Card.DueDay,
			core.FormatAmount(c.Usage.MonthlyValue),
			balance(c.Usage.RemainingLimit.IsNegative(), core.FormatAmount(c.Usage.RemainingLimit)),
			core.FormatAmount(c.Usage.TotalLimit),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func cardLabel(c core.CreditCard) string {
	if c.LastFourDigits == "" {
		return c.Name
	}
	return fmt.Sprintf("%s *%s", c.Name, c.LastFourDigits)
}

func ruleLabel(r core.RecurrenceRule) string {
	label := r.Type.String()
	if r.Type == core.RecurrenceCustom && r.Day != nil {
		label = fmt.Sprintf("%s (day %d)", label, *r.Day)
	}
	if r.Months != nil {
		label = fmt.Sprintf("%s x%d", label, *r.Months)
	}
	return label
}
