package llm

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation.
type Message struct {
	Role    string
	Content string

	// Name is the tool name on RoleTool messages. Other roles leave it empty.
	Name string

	// ToolCalls holds the calls an assistant message asked for.
	ToolCalls []ToolCall

	// ToolCallID links a RoleTool message to the [ToolCall] it answers.
	ToolCallID string
}

// ToolResult builds the RoleTool message that answers call with content.
// content is whatever the model should see: a tool's JSON result or a
// policy-violation report.
func ToolResult(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Name: call.Name, ToolCallID: call.ID, Content: content}
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object the model produced; it is not validated here.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition advertises a callable tool to the model. Parameters is a
// JSON Schema object describing the arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ModelCapabilities describes a model's limits and features.
type ModelCapabilities struct {
	ContextWindow       int
	MaxOutputTokens     int
	SupportsToolCalling bool
	SupportsVision      bool
	SupportsStreaming   bool
}
