// Package prompts assembles the system prompt sent with every
// completion request. The prompt grounds the model in the caller's
// expense snapshot so that small-talk answers come straight from
// context while anything numeric goes through a tool call.
package prompts

import (
	"fmt"
	"strings"

	"github.com/rhassine/expense-tracker/internal/snapshot"
)

// recentExpenseWindow caps how many expenses are inlined into the
// prompt. The full list is always reachable through search_expenses.
const recentExpenseWindow = 15

// System renders the full system prompt for one request against the
// supplied snapshot.
func System(data *snapshot.Data) string {
	var b strings.Builder

	b.WriteString("You are a helpful financial assistant inside a personal expense tracker. ")
	b.WriteString("You answer questions about the user's spending, budgets, and expenses.\n\n")

	writeContext(&b, data)
	writeStats(&b, data)
	writeCategories(&b, data)
	writeBudgets(&b, data)
	writeRecentExpenses(&b, data)
	writeRules(&b)

	return b.String()
}

func writeContext(b *strings.Builder, data *snapshot.Data) {
	b.WriteString("## Context\n\n")
	fmt.Fprintf(b, "- Today's date: %s\n", data.Today)
	fmt.Fprintf(b, "- Currency: %s\n", data.Settings.Currency)
	if data.Settings.Locale != "" {
		fmt.Fprintf(b, "- Locale: %s\n", data.Settings.Locale)
	}
	b.WriteString("\n")
}

func writeStats(b *strings.Builder, data *snapshot.Data) {
	s := data.Stats
	b.WriteString("## Quick stats\n\n")
	fmt.Fprintf(b, "- Spent today: %s %s\n", snapshot.FormatAmount(s.TodayTotal), data.Settings.Currency)
	fmt.Fprintf(b, "- Spent this week: %s %s\n", snapshot.FormatAmount(s.WeeklyTotal), data.Settings.Currency)
	fmt.Fprintf(b, "- Spent this month: %s %s\n", snapshot.FormatAmount(s.MonthlyTotal), data.Settings.Currency)
	fmt.Fprintf(b, "- Total transactions: %d\n", s.TransactionCount)
	if s.TopCategory != "" {
		fmt.Fprintf(b, "- Top category: %s\n", s.TopCategory)
	}
	b.WriteString("\n")
}

func writeCategories(b *strings.Builder, data *snapshot.Data) {
	b.WriteString("## Categories\n\n")
	if len(data.Categories) == 0 {
		b.WriteString("No categories defined.\n\n")
		return
	}
	for _, c := range data.Categories {
		fmt.Fprintf(b, "- %s (id: %s)\n", c.Name, c.ID)
	}
	b.WriteString("\n")
}

func writeBudgets(b *strings.Builder, data *snapshot.Data) {
	b.WriteString("## Budgets\n\n")
	if len(data.Budgets) == 0 {
		b.WriteString("No budgets configured.\n\n")
		return
	}
	for _, budget := range data.Budgets {
		name := "Total"
		if budget.CategoryName != nil && *budget.CategoryName != "" {
			name = *budget.CategoryName
		} else if budget.CategoryID != nil {
			name = data.CategoryName(*budget.CategoryID)
		}
		fmt.Fprintf(b, "- %s: %s / %s %s (%s, %.1f%% used, status: %s)\n",
			name,
			snapshot.FormatAmount(budget.Spent),
			snapshot.FormatAmount(budget.Amount),
			data.Settings.Currency,
			budget.Period,
			budget.Percentage,
			budget.Status,
		)
	}
	b.WriteString("\n")
}

func writeRecentExpenses(b *strings.Builder, data *snapshot.Data) {
	b.WriteString("## Recent expenses\n\n")
	if len(data.Expenses) == 0 {
		b.WriteString("No expenses recorded yet.\n\n")
		return
	}

	n := len(data.Expenses)
	if n > recentExpenseWindow {
		fmt.Fprintf(b, "Showing %d of %d expenses. Use search_expenses for the rest.\n\n", recentExpenseWindow, n)
		n = recentExpenseWindow
	}
	for _, e := range data.Expenses[:n] {
		fmt.Fprintf(b, "- %s: %s %s - %s (%s)\n",
			e.Date,
			snapshot.FormatAmount(e.Amount),
			data.Settings.Currency,
			e.Description,
			data.CategoryName(e.CategoryID),
		)
	}
	b.WriteString("\n")
}

func writeRules(b *strings.Builder) {
	b.WriteString(`## Rules

1. Reply in the same language the user writes in.
2. Never invent amounts, totals, or dates. If a figure is not in this
   prompt, call a tool to compute it from the data.
3. When the user asks to record an expense, present the proposed expense
   back to the user (amount, description, category, date) and ask for
   confirmation first. Only after the user explicitly confirms, call
   create_expense to validate and hand it off. Never call create_expense
   before the user has confirmed; the application saves whatever the
   tool returns.
4. Use category ids (not names) as tool arguments.
5. Keep answers short and conversational. Format amounts with two
   decimals and the user's currency.
`)
}
