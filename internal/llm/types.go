package llm

// Message is one entry in the conversation sequence sent to a provider.
// Roles are system, user, assistant, and tool.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result messages
}

// ToolCall is an invocation the model requested. Arguments is the raw
// JSON payload exactly as the provider produced it — untrusted until the
// executor has parsed and validated it.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is the unified response from any provider.
type Completion struct {
	Model   string
	Message Message

	// Token usage (provider-neutral, zero when unreported)
	InputTokens  int
	OutputTokens int
}

// IsToolRequest reports whether the provider asked for tool executions
// rather than producing a final reply.
func (c *Completion) IsToolRequest() bool {
	return len(c.Message.ToolCalls) > 0
}
