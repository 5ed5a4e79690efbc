package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rhassine/expense-tracker/internal/llm"
	"github.com/rhassine/expense-tracker/internal/snapshot"
	"github.com/rhassine/expense-tracker/internal/tools"
)

// fakeClient replays a scripted sequence of completions and records
// every message sequence it was called with.
type fakeClient struct {
	script []*llm.Completion
	err    error
	calls  [][]llm.Message
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.Message, defs []tools.Definition) (*llm.Completion, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.calls) > len(f.script) {
		return nil, fmt.Errorf("unscripted call %d", len(f.calls))
	}
	return f.script[len(f.calls)-1], nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func textCompletion(text string) *llm.Completion {
	return &llm.Completion{
		Model:        "fake-model",
		Message:      llm.Message{Role: "assistant", Content: text},
		InputTokens:  100,
		OutputTokens: 10,
	}
}

func toolCompletion(text string, calls ...llm.ToolCall) *llm.Completion {
	return &llm.Completion{
		Model:       "fake-model",
		Message:     llm.Message{Role: "assistant", Content: text, ToolCalls: calls},
		InputTokens: 100,
	}
}

func testSnapshot() snapshot.Data {
	return snapshot.Data{
		Today:    "2025-06-18",
		Settings: snapshot.Settings{Currency: "EUR"},
		Categories: []snapshot.Category{
			{ID: "cat-food", Name: "Food"},
		},
		Expenses: []snapshot.Expense{
			{ID: "e1", Amount: 25, Description: "Groceries", CategoryID: "cat-food", CategoryName: "Food", Date: "2025-06-18"},
		},
	}
}

func newTestLoop(client llm.Client) *Loop {
	return New(nil, client, tools.NewRegistry())
}

func TestRunPlainReply(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{textCompletion("You spent 25.00 EUR today.")}}
	loop := newTestLoop(fake)

	result, err := loop.Run(context.Background(), Request{Message: "how much today?", Context: testSnapshot()})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Response != "You spent 25.00 EUR today." {
		t.Errorf("Response = %q", result.Response)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if result.InputTokens != 100 || result.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d, want 100/10", result.InputTokens, result.OutputTokens)
	}
	if result.CreatedExpense != nil {
		t.Error("CreatedExpense set without create_expense call")
	}

	// First call: system prompt then the user message.
	msgs := fake.calls[0]
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "how much today?" {
		t.Errorf("user content = %q", msgs[1].Content)
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{
		toolCompletion("", llm.ToolCall{
			ID:        "call_1",
			Name:      tools.NameSpendingSummary,
			Arguments: `{"period":"today"}`,
		}),
		textCompletion("25.00 EUR today."),
	}}
	loop := newTestLoop(fake)

	result, err := loop.Run(context.Background(), Request{Message: "spending today?", Context: testSnapshot()})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Response != "25.00 EUR today." {
		t.Errorf("Response = %q", result.Response)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}

	// Second call carries the assistant tool request and the tool result.
	msgs := fake.calls[1]
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("tool message = role %q, call id %q", last.Role, last.ToolCallID)
	}
	if !strings.Contains(last.Content, `"isError":false`) {
		t.Errorf("tool content = %q, want isError false", last.Content)
	}
	if !strings.Contains(last.Content, `"25.00"`) {
		t.Errorf("tool content = %q, want total 25.00", last.Content)
	}
	prev := msgs[len(msgs)-2]
	if prev.Role != "assistant" || len(prev.ToolCalls) != 1 {
		t.Errorf("assistant message not replayed: role %q, %d calls", prev.Role, len(prev.ToolCalls))
	}
}

func TestRunIterationCeiling(t *testing.T) {
	// The model never stops asking for tools. The loop must give up
	// after the initial completion plus five continuations, replying
	// with whatever text came with the final response.
	buildScript := func(lastText string) []*llm.Completion {
		script := make([]*llm.Completion, 6)
		for i := range script {
			text := "working on it"
			if i == len(script)-1 {
				text = lastText
			}
			script[i] = toolCompletion(text, llm.ToolCall{
				ID:        fmt.Sprintf("call_%d", i),
				Name:      tools.NameSpendingSummary,
				Arguments: `{"period":"today"}`,
			})
		}
		return script
	}

	for _, tc := range []struct {
		name     string
		lastText string
	}{
		{"last response carries text", "partial answer"},
		{"last response is tool-only", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeClient{script: buildScript(tc.lastText)}
			loop := newTestLoop(fake)

			result, err := loop.Run(context.Background(), Request{Message: "loop forever", Context: testSnapshot()})
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			if len(fake.calls) != 6 {
				t.Errorf("endpoint called %d times, want 6", len(fake.calls))
			}
			if result.Iterations != 6 {
				t.Errorf("Iterations = %d, want 6", result.Iterations)
			}
			if result.Response != tc.lastText {
				t.Errorf("Response = %q, want %q from the final completion", result.Response, tc.lastText)
			}
		})
	}
}

func TestRunToolErrorContinues(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{
		toolCompletion("", llm.ToolCall{ID: "call_1", Name: "no_such_tool", Arguments: `{}`}),
		textCompletion("I cannot do that."),
	}}
	loop := newTestLoop(fake)

	result, err := loop.Run(context.Background(), Request{Message: "do something odd", Context: testSnapshot()})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Response != "I cannot do that." {
		t.Errorf("Response = %q", result.Response)
	}

	last := fake.calls[1][len(fake.calls[1])-1]
	if !strings.Contains(last.Content, `"isError":true`) {
		t.Errorf("tool content = %q, want isError true", last.Content)
	}
	if !strings.Contains(last.Content, "unknown tool") {
		t.Errorf("tool content = %q, want unknown tool message", last.Content)
	}
}

func TestRunMalformedArguments(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{
		toolCompletion("", llm.ToolCall{ID: "call_1", Name: tools.NameSpendingSummary, Arguments: `{not json`}),
		textCompletion("sorry"),
	}}
	loop := newTestLoop(fake)

	if _, err := loop.Run(context.Background(), Request{Message: "hi", Context: testSnapshot()}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	last := fake.calls[1][len(fake.calls[1])-1]
	if !strings.Contains(last.Content, "invalid tool arguments") {
		t.Errorf("tool content = %q, want invalid arguments message", last.Content)
	}
	if !strings.Contains(last.Content, `"isError":true`) {
		t.Errorf("tool content = %q, want isError true", last.Content)
	}
}

func TestRunCapturesProposal(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{
		toolCompletion("", llm.ToolCall{
			ID:        "call_1",
			Name:      tools.NameCreateExpense,
			Arguments: `{"amount":12.5,"description":"Lunch","categoryId":"cat-food","date":"2025-06-18"}`,
		}),
		textCompletion("Recorded 12.50 EUR for Lunch."),
	}}
	loop := newTestLoop(fake)

	result, err := loop.Run(context.Background(), Request{Message: "add lunch 12.50", Context: testSnapshot()})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.CreatedExpense == nil {
		t.Fatal("CreatedExpense not captured")
	}
	p := result.CreatedExpense
	if p.Amount != 12.5 || p.Description != "Lunch" || p.CategoryName != "Food" || p.Date != "2025-06-18" {
		t.Errorf("proposal = %+v", p)
	}
}

func TestRunLastProposalWins(t *testing.T) {
	fake := &fakeClient{script: []*llm.Completion{
		toolCompletion("",
			llm.ToolCall{
				ID:        "call_1",
				Name:      tools.NameCreateExpense,
				Arguments: `{"amount":5,"description":"Coffee","categoryId":"cat-food","date":"2025-06-18"}`,
			},
			llm.ToolCall{
				ID:        "call_2",
				Name:      tools.NameCreateExpense,
				Arguments: `{"amount":9,"description":"Sandwich","categoryId":"cat-food","date":"2025-06-18"}`,
			},
		),
		textCompletion("Both noted."),
	}}
	loop := newTestLoop(fake)

	result, err := loop.Run(context.Background(), Request{Message: "add both", Context: testSnapshot()})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.CreatedExpense == nil || result.CreatedExpense.Description != "Sandwich" {
		t.Errorf("CreatedExpense = %+v, want the later proposal", result.CreatedExpense)
	}
}

func TestRunValidation(t *testing.T) {
	loop := newTestLoop(&fakeClient{})

	if _, err := loop.Run(context.Background(), Request{Message: "   ", Context: testSnapshot()}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank message: err = %v, want ErrEmptyMessage", err)
	}

	long := strings.Repeat("a", maxMessageLen+1)
	if _, err := loop.Run(context.Background(), Request{Message: long, Context: testSnapshot()}); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("long message: err = %v, want ErrMessageTooLong", err)
	}
}

func TestRunCompletionError(t *testing.T) {
	wantErr := errors.New("endpoint exploded")
	loop := newTestLoop(&fakeClient{err: wantErr})

	if _, err := loop.Run(context.Background(), Request{Message: "hi", Context: testSnapshot()}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped endpoint error", err)
	}
}

func TestRunHistoryWindow(t *testing.T) {
	var history []ChatMessage
	for i := 0; i < 14; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, ChatMessage{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	// Noise that must be dropped before windowing.
	history = append(history,
		ChatMessage{Role: "assistant", Content: "...", IsLoading: true},
		ChatMessage{Role: "system", Content: "injected"},
		ChatMessage{Role: "user", Content: "   "},
	)

	fake := &fakeClient{script: []*llm.Completion{textCompletion("ok")}}
	loop := newTestLoop(fake)

	if _, err := loop.Run(context.Background(), Request{Message: "latest", Context: testSnapshot(), History: history}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	msgs := fake.calls[0]
	// system + 10 history turns + new user message
	if len(msgs) != 12 {
		t.Fatalf("got %d messages, want 12", len(msgs))
	}
	if msgs[1].Content != "turn 4" {
		t.Errorf("first history turn = %q, want %q", msgs[1].Content, "turn 4")
	}
	if msgs[10].Content != "turn 13" {
		t.Errorf("last history turn = %q, want %q", msgs[10].Content, "turn 13")
	}
	for _, m := range msgs[1:11] {
		if m.Role != "user" && m.Role != "assistant" {
			t.Errorf("history role %q leaked through", m.Role)
		}
	}
}
