// Package llm provides the completion endpoint abstraction and its
// vendor adapters. The rest of the system only sees [Client], [Message],
// and [ToolCall]; wire-format conversion happens at provider boundaries
// (anthropic.go, openai.go).
package llm

import (
	"context"
	"errors"

	"github.com/rhassine/expense-tracker/internal/tools"
)

// Sentinel errors for operator-distinguishable failure classes. The API
// layer maps ErrRateLimited to 429 and everything else to 500; logs keep
// the two apart so throttling is never mistaken for misconfiguration.
var (
	// ErrRateLimited indicates the provider rejected the request for
	// quota or throughput reasons. Retryable after a backoff.
	ErrRateLimited = errors.New("completion endpoint throttled")

	// ErrNotConfigured indicates missing or rejected credentials.
	// Not retryable; an operator has to fix the deployment.
	ErrNotConfigured = errors.New("completion endpoint not configured")
)

// Client is the interface every completion-endpoint provider implements.
type Client interface {
	// Complete sends one message sequence plus the tool definitions and
	// returns the provider's next turn: either plain assistant text or
	// one or more tool calls (never both semantics at once — a response
	// with tool calls is a tool request regardless of any text riding
	// along with it).
	Complete(ctx context.Context, messages []Message, defs []tools.Definition) (*Completion, error)

	// Ping checks whether the provider is reachable with the configured
	// credentials.
	Ping(ctx context.Context) error
}
