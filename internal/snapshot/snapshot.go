// Package snapshot defines the read-only view of the caller's expense data
// that accompanies every chat request. The orchestrator never writes to the
// underlying stores; it only reads this value, which the caller rebuilds
// from its authoritative data on each request.
package snapshot

import "strconv"

// Budget status values.
const (
	StatusSafe    = "safe"
	StatusWarning = "warning"
	StatusDanger  = "danger"
)

// Expense is one expense row as the client store presents it.
type Expense struct {
	ID           string  `json:"id"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Date         string  `json:"date"` // YYYY-MM-DD
}

// Category is a known expense category with a stable identifier.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Budget is one budget row. A nil CategoryID denotes the total budget
// across all categories.
type Budget struct {
	CategoryID   *string `json:"categoryId"`
	CategoryName *string `json:"categoryName"`
	Amount       float64 `json:"amount"`
	Period       string  `json:"period"` // monthly or weekly
	Spent        float64 `json:"spent"`
	Percentage   float64 `json:"percentage"`
	Status       string  `json:"status"`
}

// Settings carries the display settings active on the client.
type Settings struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
}

// Stats holds pre-aggregated totals for the current periods.
type Stats struct {
	MonthlyTotal     float64 `json:"monthlyTotal"`
	WeeklyTotal      float64 `json:"weeklyTotal"`
	TodayTotal       float64 `json:"todayTotal"`
	TransactionCount int     `json:"transactionCount"`
	TopCategory      string  `json:"topCategory,omitempty"`
}

// Data is the immutable context snapshot for one request.
type Data struct {
	Expenses   []Expense  `json:"expenses"`
	Categories []Category `json:"categories"`
	Budgets    []Budget   `json:"budgets"`
	Settings   Settings   `json:"settings"`
	Stats      Stats      `json:"stats"`
	Today      string     `json:"today"` // YYYY-MM-DD
}

// CategoryName resolves a category id to its display name.
// Falls back to the raw id when the id is unknown.
func (d *Data) CategoryName(id string) string {
	for _, c := range d.Categories {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// HasCategory reports whether id names a known category.
func (d *Data) HasCategory(id string) bool {
	for _, c := range d.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// FormatAmount renders a monetary value with exactly two decimals.
// Stored amounts keep full precision; rounding happens only here.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// BudgetProgress computes the spend percentage and status for a budget.
// The percentage is capped at 100. A non-positive budget amount yields
// zero percent and a safe status rather than a division error.
func BudgetProgress(amount, spent float64) (percentage float64, status string) {
	if amount <= 0 {
		return 0, StatusSafe
	}

	ratio := spent / amount
	if ratio > 1 {
		ratio = 1
	}
	percentage = ratio * 100

	switch {
	case spent >= amount:
		return percentage, StatusDanger
	case percentage >= 80:
		return percentage, StatusWarning
	default:
		return percentage, StatusSafe
	}
}
