package tools

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rhassine/expense-tracker/internal/snapshot"
)

// allCategories is the display sentinel when no category filter is given.
const allCategories = "All categories"

// Default result caps.
const (
	defaultSearchLimit = 10
	defaultTopLimit    = 5
)

// Argument helpers. JSON objects decode numbers as float64 and leave
// every field untyped, so each tool pulls what it needs with an ok flag.

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func numberArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && int(v) > 0 {
		return int(v)
	}
	return def
}

// parsePeriod validates the period argument against the subset a tool
// admits and resolves it against the snapshot's today.
func parsePeriod(args map[string]any, data *snapshot.Data, allowed ...snapshot.Period) (snapshot.Period, snapshot.Interval, time.Time, error) {
	raw, ok := stringArg(args, "period")
	if !ok {
		return "", snapshot.Interval{}, time.Time{}, fmt.Errorf("period is required")
	}

	period := snapshot.Period(raw)
	permitted := false
	for _, p := range allowed {
		if p == period {
			permitted = true
			break
		}
	}
	if !permitted {
		return "", snapshot.Interval{}, time.Time{}, fmt.Errorf("invalid period %q", raw)
	}

	today, err := snapshot.ParseDate(data.Today)
	if err != nil {
		return "", snapshot.Interval{}, time.Time{}, fmt.Errorf("snapshot date: %w", err)
	}

	interval, err := snapshot.Resolve(period, today)
	if err != nil {
		return "", snapshot.Interval{}, time.Time{}, err
	}
	return period, interval, today, nil
}

func getSpendingSummary(args map[string]any, data *snapshot.Data) Result {
	period, interval, _, err := parsePeriod(args, data,
		snapshot.PeriodToday, snapshot.PeriodThisWeek, snapshot.PeriodThisMonth,
		snapshot.PeriodLastMonth, snapshot.PeriodAllTime)
	if err != nil {
		return Errorf("%v", err)
	}

	categoryID, hasCategory := stringArg(args, "categoryId")

	var total float64
	count := 0
	for _, e := range data.Expenses {
		if !interval.Contains(e.Date) {
			continue
		}
		if hasCategory && e.CategoryID != categoryID {
			continue
		}
		total += e.Amount
		count++
	}

	category := allCategories
	if hasCategory {
		category = data.CategoryName(categoryID)
	}

	return Result{Value: map[string]any{
		"period":   string(period),
		"category": category,
		"total":    snapshot.FormatAmount(total),
		"count":    count,
		"currency": data.Settings.Currency,
	}}
}

func getBudgetStatus(args map[string]any, data *snapshot.Data) Result {
	categoryID, hasCategory := stringArg(args, "categoryId")

	name := "Total"
	if hasCategory {
		name = data.CategoryName(categoryID)
	}

	var budget *snapshot.Budget
	for i := range data.Budgets {
		b := &data.Budgets[i]
		if hasCategory {
			if b.CategoryID != nil && *b.CategoryID == categoryID {
				budget = b
				break
			}
		} else if b.CategoryID == nil {
			budget = b
			break
		}
	}

	if budget == nil {
		return Result{Value: map[string]any{
			"hasBudget": false,
			"message":   fmt.Sprintf("No budget set for %s", name),
		}}
	}

	percentage, status := snapshot.BudgetProgress(budget.Amount, budget.Spent)

	out := map[string]any{
		"hasBudget":  true,
		"category":   name,
		"period":     budget.Period,
		"amount":     snapshot.FormatAmount(budget.Amount),
		"spent":      snapshot.FormatAmount(budget.Spent),
		"remaining":  snapshot.FormatAmount(budget.Amount - budget.Spent),
		"percentage": round1(percentage),
		"status":     status,
		"currency":   data.Settings.Currency,
	}

	// Weekly budgets roll over too quickly for a countdown to be useful.
	if budget.Period == "monthly" {
		if today, err := snapshot.ParseDate(data.Today); err == nil {
			out["daysRemaining"] = snapshot.DaysLeftInMonth(today)
		}
	}

	return Result{Value: out}
}

func searchExpenses(args map[string]any, data *snapshot.Data) Result {
	query, hasQuery := stringArg(args, "query")
	categoryID, hasCategory := stringArg(args, "categoryId")
	minAmount, hasMin := numberArg(args, "minAmount")
	maxAmount, hasMax := numberArg(args, "maxAmount")
	limit := intArg(args, "limit", defaultSearchLimit)

	needle := strings.ToLower(query)

	// Store order is preserved; no re-sorting.
	var matches []map[string]any
	for _, e := range data.Expenses {
		if hasQuery && !strings.Contains(strings.ToLower(e.Description), needle) {
			continue
		}
		if hasCategory && e.CategoryID != categoryID {
			continue
		}
		if hasMin && e.Amount < minAmount {
			continue
		}
		if hasMax && e.Amount > maxAmount {
			continue
		}
		matches = append(matches, expenseRow(e))
		if len(matches) >= limit {
			break
		}
	}

	return Result{Value: map[string]any{
		"count":    len(matches),
		"expenses": matches,
		"currency": data.Settings.Currency,
	}}
}

func getTopExpenses(args map[string]any, data *snapshot.Data) Result {
	period, interval, _, err := parsePeriod(args, data,
		snapshot.PeriodThisWeek, snapshot.PeriodThisMonth,
		snapshot.PeriodLastMonth, snapshot.PeriodAllTime)
	if err != nil {
		return Errorf("%v", err)
	}
	limit := intArg(args, "limit", defaultTopLimit)

	var inPeriod []snapshot.Expense
	for _, e := range data.Expenses {
		if interval.Contains(e.Date) {
			inPeriod = append(inPeriod, e)
		}
	}

	// Stable sort: equal amounts keep their original relative order.
	sort.SliceStable(inPeriod, func(i, j int) bool {
		return inPeriod[i].Amount > inPeriod[j].Amount
	})
	if len(inPeriod) > limit {
		inPeriod = inPeriod[:limit]
	}

	rows := make([]map[string]any, 0, len(inPeriod))
	for _, e := range inPeriod {
		rows = append(rows, expenseRow(e))
	}

	return Result{Value: map[string]any{
		"period":   string(period),
		"count":    len(rows),
		"expenses": rows,
		"currency": data.Settings.Currency,
	}}
}

func getCategoryBreakdown(args map[string]any, data *snapshot.Data) Result {
	period, interval, _, err := parsePeriod(args, data,
		snapshot.PeriodThisWeek, snapshot.PeriodThisMonth,
		snapshot.PeriodLastMonth, snapshot.PeriodAllTime)
	if err != nil {
		return Errorf("%v", err)
	}

	type bucket struct {
		name  string
		total float64
		count int
	}

	// Accumulate in discovery order so that ties sort deterministically.
	var buckets []*bucket
	index := make(map[string]*bucket)
	var periodTotal float64

	for _, e := range data.Expenses {
		if !interval.Contains(e.Date) {
			continue
		}
		b, ok := index[e.CategoryID]
		if !ok {
			b = &bucket{name: e.CategoryName}
			index[e.CategoryID] = b
			buckets = append(buckets, b)
		}
		b.total += e.Amount
		b.count++
		periodTotal += e.Amount
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].total > buckets[j].total
	})

	rows := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		percentage := 0.0
		if periodTotal > 0 {
			percentage = round1(b.total / periodTotal * 100)
		}
		rows = append(rows, map[string]any{
			"category":   b.name,
			"total":      snapshot.FormatAmount(b.total),
			"count":      b.count,
			"percentage": percentage,
		})
	}

	// Sum first, round once: the overall total is independent of how the
	// per-category figures round.
	return Result{Value: map[string]any{
		"period":     string(period),
		"total":      snapshot.FormatAmount(periodTotal),
		"categories": rows,
		"currency":   data.Settings.Currency,
	}}
}

// createExpense validates and projects a proposal. It has no write access
// to any store: a valid call produces data the caller may apply, nothing
// more. Calling it twice with the same input yields two identical
// proposals and no state change.
func createExpense(args map[string]any, data *snapshot.Data) Result {
	amount, ok := numberArg(args, "amount")
	if !ok {
		return Errorf("amount is required")
	}
	if amount <= 0 {
		return Errorf("amount must be positive")
	}

	description, _ := stringArg(args, "description")
	description = strings.TrimSpace(description)
	if description == "" {
		return Errorf("description is required")
	}

	categoryID, _ := stringArg(args, "categoryId")
	if !data.HasCategory(categoryID) {
		return Errorf("unknown category %q", categoryID)
	}

	date, ok := stringArg(args, "date")
	if !ok {
		return Errorf("date is required")
	}
	if _, err := snapshot.ParseDate(date); err != nil {
		return Errorf("%v", err)
	}

	proposal := Proposal{
		Amount:       amount,
		Description:  description,
		CategoryID:   categoryID,
		CategoryName: data.CategoryName(categoryID),
		Date:         date,
	}

	return Result{
		Value: map[string]any{
			"success": true,
			"expense": proposal,
		},
		Proposal: &proposal,
	}
}

func expenseRow(e snapshot.Expense) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"amount":      snapshot.FormatAmount(e.Amount),
		"description": e.Description,
		"category":    e.CategoryName,
		"date":        e.Date,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
