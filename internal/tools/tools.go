// Package tools defines the closed set of operations the language model
// may request against an expense snapshot, and executes them.
//
// Every tool is deterministic and sandboxed: execution is a pure function
// of (tool name, arguments, snapshot) and never throws. Failures are
// reported as error-flagged results so the orchestration loop can always
// continue and let the model recover conversationally.
package tools

import (
	"fmt"

	"github.com/rhassine/expense-tracker/internal/snapshot"
)

// Tool names. create_expense is the only tool with mutating semantics,
// and even it only returns a proposal — the caller applies it.
const (
	NameSpendingSummary   = "get_spending_summary"
	NameBudgetStatus      = "get_budget_status"
	NameSearchExpenses    = "search_expenses"
	NameTopExpenses       = "get_top_expenses"
	NameCategoryBreakdown = "get_category_breakdown"
	NameCreateExpense     = "create_expense"
)

// Definition is the vendor-neutral description of one tool. Each
// completion-endpoint adapter serializes this into its own wire shape;
// the registry itself knows nothing about vendors.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema for the arguments object
}

// Result is the outcome of one tool execution. It is always returned,
// never panicked or errored, so the loop can relay it to the model.
type Result struct {
	Value   any
	IsError bool

	// Proposal is set only by a successful create_expense call. It is the
	// single artifact allowed to cross the trust boundary back to the
	// caller, which decides whether to apply it to its store.
	Proposal *Proposal
}

// Proposal describes an expense the model wants created. The orchestrator
// never applies it; the caller owns the expense store.
type Proposal struct {
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Date         string  `json:"date"`
}

// Errorf builds an error-flagged result with a formatted message.
func Errorf(format string, args ...any) Result {
	return Result{
		Value:   map[string]any{"error": fmt.Sprintf(format, args...)},
		IsError: true,
	}
}

// handler executes one tool against a snapshot. Arguments arrive as the
// decoded (but otherwise untrusted) JSON object from the model.
type handler func(args map[string]any, data *snapshot.Data) Result

// tool ties a definition to its handler.
type tool struct {
	def     Definition
	handler handler
}

// Registry holds the closed tool set. The set is fixed at construction;
// there is no dynamic registration at runtime.
type Registry struct {
	tools map[string]*tool
	order []string // registration order, for deterministic Definitions()
}

// NewRegistry builds the registry with all six built-in tools.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]*tool)}
	r.registerBuiltins()
	return r
}

func (r *Registry) register(def Definition, h handler) {
	r.tools[def.Name] = &tool{def: def, handler: h}
	r.order = append(r.order, def.Name)
}

// Definitions returns all tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Execute runs a tool by name. An unknown name yields an error result,
// not a Go error: the model asked for something outside the closed set
// and should be told so in-band.
func (r *Registry) Execute(name string, args map[string]any, data *snapshot.Data) Result {
	t, ok := r.tools[name]
	if !ok {
		return Errorf("unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.handler(args, data)
}

func (r *Registry) registerBuiltins() {
	periodProp := func(values ...string) map[string]any {
		return map[string]any{
			"type":        "string",
			"enum":        values,
			"description": "Reporting period, relative to today",
		}
	}

	r.register(Definition{
		Name:        NameSpendingSummary,
		Description: "Get total spending and transaction count for a period, optionally filtered to one category.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": periodProp("today", "this_week", "this_month", "last_month", "all_time"),
				"categoryId": map[string]any{
					"type":        "string",
					"description": "Optional category id to filter by",
				},
			},
			"required": []string{"period"},
		},
	}, getSpendingSummary)

	r.register(Definition{
		Name:        NameBudgetStatus,
		Description: "Check a budget: amount, spent so far, remaining, and status. Omit categoryId for the total budget.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"categoryId": map[string]any{
					"type":        "string",
					"description": "Category id of the budget; omit for the overall total budget",
				},
			},
		},
	}, getBudgetStatus)

	r.register(Definition{
		Name:        NameSearchExpenses,
		Description: "Search expenses by description text, category, and amount range.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Text to match against expense descriptions (case-insensitive substring)",
				},
				"categoryId": map[string]any{
					"type":        "string",
					"description": "Optional category id to filter by",
				},
				"minAmount": map[string]any{
					"type":        "number",
					"description": "Minimum amount, inclusive",
				},
				"maxAmount": map[string]any{
					"type":        "number",
					"description": "Maximum amount, inclusive",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 10)",
				},
			},
		},
	}, searchExpenses)

	r.register(Definition{
		Name:        NameTopExpenses,
		Description: "List the largest expenses in a period, sorted by amount descending.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": periodProp("this_week", "this_month", "last_month", "all_time"),
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 5)",
				},
			},
			"required": []string{"period"},
		},
	}, getTopExpenses)

	r.register(Definition{
		Name:        NameCategoryBreakdown,
		Description: "Break spending for a period down by category with totals, counts, and percentages.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": periodProp("this_week", "this_month", "last_month", "all_time"),
			},
			"required": []string{"period"},
		},
	}, getCategoryBreakdown)

	r.register(Definition{
		Name:        NameCreateExpense,
		Description: "Propose a new expense after the user has explicitly confirmed it. The expense is not saved until the user's app applies the proposal.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{
					"type":        "number",
					"description": "Expense amount, must be positive",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Short description of the expense",
				},
				"categoryId": map[string]any{
					"type":        "string",
					"description": "Id of an existing category",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Expense date as YYYY-MM-DD",
				},
			},
			"required": []string{"amount", "description", "categoryId", "date"},
		},
	}, createExpense)
}
