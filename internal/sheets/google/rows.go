package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finance/internal/core"
)

const (
	monthLayout = "2006-01"
	lastColumn  = "I"
)

func summaryHeader() []any {
	return []any{"Month", "Tenant", "User", "Income", "Expenses", "Balance", "Invested", "Available", "Updated"}
}

func summaryRow(month string, scope core.Scope, s core.FinanceSummary, now time.Time) []any {
	return []any{
		// leading quote keeps USER_ENTERED from turning the month into a date
		"'" + month,
		scope.TenantID,
		scope.UserID,
		core.FormatAmount(s.TotalIncome),
		core.FormatAmount(s.TotalExpenses),
		core.FormatAmount(s.TotalBalance),
		core.FormatAmount(s.Invested),
		core.FormatAmount(s.AvailableBalance),
		now.UTC().Format(time.RFC3339),
	}
}

// findSummaryRow returns the 1-based row holding (month, tenant, user), or 0.
// The first row is the header.
func findSummaryRow(rows [][]any, month string, scope core.Scope) int {
	for i, r := range rows {
		if i == 0 {
			continue
		}
		cells := toStrings(r)
		if len(cells) < 3 {
			continue
		}
		if strings.TrimPrefix(cells[0], "'") == month && cells[1] == scope.TenantID && cells[2] == scope.UserID {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
