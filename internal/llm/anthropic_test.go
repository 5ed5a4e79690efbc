package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhassine/expense-tracker/internal/tools"
)

func TestConvertToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are a financial assistant."},
		{Role: "user", Content: "how much did I spend?"},
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{
			{ID: "toolu_1", Name: "get_spending_summary", Arguments: `{"period":"today"}`},
		}},
		{Role: "tool", Content: `{"isError":false,"result":{"total":"25.00"}}`, ToolCallID: "toolu_1"},
		{Role: "assistant", Content: "25.00 EUR today."},
	}

	converted, system := convertToAnthropic(messages)

	if system != "You are a financial assistant." {
		t.Errorf("system = %q", system)
	}
	if len(converted) != 4 {
		t.Fatalf("got %d messages, want 4", len(converted))
	}

	// Tool request becomes an assistant message with a tool_use block.
	blocks, ok := converted[1].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content is %T, want blocks", converted[1].Content)
	}
	if len(blocks) != 1 || blocks[0].Type != "tool_use" {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].ID != "toolu_1" || blocks[0].Name != "get_spending_summary" {
		t.Errorf("tool_use = %+v", blocks[0])
	}
	if string(blocks[0].Input) != `{"period":"today"}` {
		t.Errorf("input = %s", blocks[0].Input)
	}

	// Tool result becomes a user message with a tool_result block.
	if converted[2].Role != "user" {
		t.Errorf("tool result role = %q, want user", converted[2].Role)
	}
	resBlocks := converted[2].Content.([]anthropicContent)
	if resBlocks[0].Type != "tool_result" || resBlocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result = %+v", resBlocks[0])
	}
}

func TestConvertToAnthropicFallbackID(t *testing.T) {
	converted, _ := convertToAnthropic([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{Name: "search_expenses", Arguments: ""}}},
	})
	blocks := converted[0].Content.([]anthropicContent)
	if blocks[0].ID != "toolu_search_expenses_0" {
		t.Errorf("fallback id = %q", blocks[0].ID)
	}
	if string(blocks[0].Input) != "{}" {
		t.Errorf("empty arguments = %s, want {}", blocks[0].Input)
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	defs := []tools.Definition{
		{Name: "get_budget_status", Description: "Check a budget.", InputSchema: map[string]any{"type": "object"}},
		{Name: "bare"},
	}

	converted := convertToolsToAnthropic(defs)
	if len(converted) != 2 {
		t.Fatalf("got %d tools, want 2", len(converted))
	}
	if converted[0].Name != "get_budget_status" {
		t.Errorf("name = %q", converted[0].Name)
	}
	if converted[1].InputSchema == nil {
		t.Error("nil schema not defaulted")
	}
	if convertToolsToAnthropic(nil) != nil {
		t.Error("empty definitions should serialize to nil")
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Model: "claude-sonnet-4-20250514",
		Content: []anthropicContent{
			{Type: "text", Text: "Let me check."},
			{Type: "tool_use", ID: "toolu_1", Name: "get_top_expenses", Input: json.RawMessage(`{"period":"this_month"}`)},
		},
		Usage: anthropicUsage{InputTokens: 120, OutputTokens: 30},
	}

	c := convertFromAnthropic(resp)
	if c.Message.Content != "Let me check." {
		t.Errorf("content = %q", c.Message.Content)
	}
	if !c.IsToolRequest() {
		t.Fatal("IsToolRequest() = false")
	}
	if c.Message.ToolCalls[0].Arguments != `{"period":"this_month"}` {
		t.Errorf("arguments = %q", c.Message.ToolCalls[0].Arguments)
	}
	if c.InputTokens != 120 || c.OutputTokens != 30 {
		t.Errorf("tokens = %d/%d", c.InputTokens, c.OutputTokens)
	}
}

func TestAnthropicCompleteStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"throttled", http.StatusTooManyRequests, ErrRateLimited},
		{"bad key", http.StatusUnauthorized, ErrNotConfigured},
		{"forbidden", http.StatusForbidden, ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewAnthropicClient("test-key", "test-model", nil)
			c.apiURL = srv.URL

			_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnthropicCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request decode failed: %v", err)
		}
		if req.MaxTokens == 0 {
			t.Error("max_tokens not set")
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Model:   "test-model",
			Content: []anthropicContent{{Type: "text", Text: "hello"}},
			Usage:   anthropicUsage{InputTokens: 5, OutputTokens: 2},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "test-model", nil)
	c.apiURL = srv.URL

	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if got.Message.Content != "hello" {
		t.Errorf("content = %q", got.Message.Content)
	}
}

func TestAnthropicCompleteMissingKey(t *testing.T) {
	c := NewAnthropicClient("", "test-model", nil)
	if _, err := c.Complete(context.Background(), nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
