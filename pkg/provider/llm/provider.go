// Package llm is the chat-completion abstraction used by the demos.
//
// A [Provider] hides one model API (OpenAI, an any-llm backend, a mock)
// behind two calls: [Provider.Complete] for a whole answer and
// [Provider.StreamCompletion] for incremental text. Both carry tool
// definitions to the model and surface the tool calls it requests; executing
// those calls is the caller's job.
package llm

import "context"

// Usage is the token accounting for one request. Counts are in the
// provider's own token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the sum of u and o. Use it to total a multi-round exchange.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// CompletionRequest is one model round trip. Messages must not be empty.
type CompletionRequest struct {
	Messages []Message

	// Tools offered to the model for this round. Empty disables tool calling.
	Tools []ToolDefinition

	// Temperature nil keeps the provider default; a pointer to 0 asks for
	// greedy decoding.
	Temperature *float64

	// MaxTokens caps the answer length. Zero keeps the provider default.
	MaxTokens int

	// SystemPrompt is sent ahead of Messages. Providers without a dedicated
	// field prepend it as a RoleSystem message.
	SystemPrompt string

	// ParallelToolCalls nil keeps the provider default.
	ParallelToolCalls *bool
}

// Finish reasons reported on the last [Chunk].
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
	FinishError     = "error"
)

// Chunk is one fragment of a streamed answer. The final chunk has a
// FinishReason and, for tool rounds, the complete ToolCalls.
type Chunk struct {
	Text         string
	FinishReason string
	ToolCalls    []ToolCall
}

// CompletionResponse is a whole answer. Content is empty when the model only
// asked for tools.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is a chat-completion backend. Implementations are safe for
// concurrent use and return promptly once ctx is cancelled.
type Provider interface {
	// StreamCompletion starts a streamed answer. The returned channel is
	// never nil on success and is closed when the answer ends or ctx is
	// done. Failures after the stream started arrive as a chunk with
	// FinishReason [FinishError]. Callers must drain the channel.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete waits for the whole answer.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the prompt size of messages. Estimates may
	// overcount but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities is constant for the provider's lifetime.
	Capabilities() ModelCapabilities
}
