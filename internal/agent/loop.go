// Package agent runs the tool-calling conversation loop. It turns one
// user message plus an expense snapshot into a grounded reply by
// alternating completion calls with local tool execution.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rhassine/expense-tracker/internal/llm"
	"github.com/rhassine/expense-tracker/internal/prompts"
	"github.com/rhassine/expense-tracker/internal/snapshot"
	"github.com/rhassine/expense-tracker/internal/tools"
)

var (
	// ErrEmptyMessage is returned when the user message is empty or
	// whitespace only.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when the user message exceeds
	// the length cap.
	ErrMessageTooLong = errors.New("message too long")
)

const (
	// maxMessageLen caps the incoming user message in characters.
	maxMessageLen = 1000

	// historyWindow is how many prior conversation turns are replayed
	// to the endpoint.
	historyWindow = 10

	// maxToolIterations bounds continuation rounds after the initial
	// completion, so a single request makes at most
	// maxToolIterations+1 endpoint calls.
	maxToolIterations = 5
)

// ChatMessage is one prior turn of the conversation as the caller
// stored it.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	IsLoading bool   `json:"isLoading,omitempty"`
}

// Request is one chat turn: the new message, the expense snapshot it
// should be answered against, and the prior conversation.
type Request struct {
	Message string        `json:"message"`
	Context snapshot.Data `json:"context"`
	History []ChatMessage `json:"history"`
}

// Result is the outcome of one loop run.
type Result struct {
	Response       string
	CreatedExpense *tools.Proposal
	Iterations     int
	InputTokens    int
	OutputTokens   int
}

// Loop drives the completion/tool-execution cycle.
type Loop struct {
	logger   *slog.Logger
	client   llm.Client
	registry *tools.Registry
}

// New creates a Loop using the given completion client and tool
// registry.
func New(logger *slog.Logger, client llm.Client, registry *tools.Registry) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{logger: logger, client: client, registry: registry}
}

// Run executes one chat turn. It validates the message, builds the
// prompt from the snapshot, and alternates completions with tool
// execution until the model answers in plain text or the iteration
// ceiling is hit.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(req.Message); n > maxMessageLen {
		return nil, fmt.Errorf("%w: %d characters (max %d)", ErrMessageTooLong, n, maxMessageLen)
	}

	requestID := uuid.NewString()
	logger := l.logger.With("request_id", requestID)

	messages := buildMessages(message, &req.Context, req.History)
	defs := l.registry.Definitions()

	result := &Result{}

	for iter := 0; ; iter++ {
		completion, err := l.client.Complete(ctx, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("completion %d: %w", iter+1, err)
		}
		result.Iterations = iter + 1
		result.InputTokens += completion.InputTokens
		result.OutputTokens += completion.OutputTokens

		if !completion.IsToolRequest() {
			result.Response = completion.Message.Content
			logger.Info("turn complete",
				"iterations", result.Iterations,
				"input_tokens", result.InputTokens,
				"output_tokens", result.OutputTokens,
			)
			return result, nil
		}

		if iter >= maxToolIterations {
			// Whatever text rode along with this last response is the
			// reply; a tool-only response yields an empty string.
			logger.Warn("tool iteration ceiling reached", "iterations", result.Iterations)
			result.Response = completion.Message.Content
			return result, nil
		}

		messages = append(messages, completion.Message)

		for _, call := range completion.Message.ToolCalls {
			res := l.executeCall(logger, call, &req.Context)
			if res.Proposal != nil {
				result.CreatedExpense = res.Proposal
			}
			messages = append(messages, toolMessage(call.ID, res))
		}
	}
}

// executeCall parses the call arguments and runs the tool. Failures
// become error results fed back to the model rather than aborting the
// turn.
func (l *Loop) executeCall(logger *slog.Logger, call llm.ToolCall, data *snapshot.Data) tools.Result {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			logger.Warn("malformed tool arguments", "tool", call.Name, "error", err)
			return tools.Errorf("invalid tool arguments: %v", err)
		}
	}

	logger.Debug("executing tool", "tool", call.Name)
	res := l.registry.Execute(call.Name, args, data)
	if res.IsError {
		logger.Warn("tool returned error", "tool", call.Name, "result", res.Value)
	}
	return res
}

// toolMessage wraps a tool result as the message the endpoint expects
// back for the given call.
func toolMessage(callID string, res tools.Result) llm.Message {
	payload, err := json.Marshal(map[string]any{
		"result":  res.Value,
		"isError": res.IsError,
	})
	if err != nil {
		payload = []byte(`{"result":null,"isError":true}`)
	}
	return llm.Message{
		Role:       "tool",
		Content:    string(payload),
		ToolCallID: callID,
	}
}

// buildMessages assembles the prompt: system prompt from the snapshot,
// the trailing window of prior turns, then the new user message.
func buildMessages(message string, data *snapshot.Data, history []ChatMessage) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: prompts.System(data)},
	}

	trimmed := trimHistory(history)
	for _, h := range trimmed {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}

// trimHistory keeps the last historyWindow user/assistant turns,
// dropping loading placeholders and any other roles.
func trimHistory(history []ChatMessage) []ChatMessage {
	var kept []ChatMessage
	for _, h := range history {
		if h.IsLoading {
			continue
		}
		if h.Role != "user" && h.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) > historyWindow {
		kept = kept[len(kept)-historyWindow:]
	}
	return kept
}
