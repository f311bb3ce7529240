package mcphost

import (
	"context"
	"fmt"

	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// builtinServerName is the pseudo server name used for in-process tools.
const builtinServerName = "builtin"

// BuiltinTool is a tool implemented as a Go function running in-process.
//
// Built-in tools skip the MCP protocol round-trip but are otherwise treated
// like external tools: the same policy filter, statistics and metrics apply.
type BuiltinTool struct {
	// Definition is the descriptor advertised to the model.
	Definition llm.ToolDefinition

	// Handler runs the tool. args is the raw JSON object sent by the model.
	// A returned error is reported to the model as a failed tool result.
	Handler func(ctx context.Context, args string) (string, error)
}

// RegisterBuiltin registers an in-process tool, replacing any tool with the
// same name.
func (h *Host) RegisterBuiltin(tool BuiltinTool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("mcp host: builtin tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp host: builtin tool %q must have a non-nil handler", tool.Definition.Name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[tool.Definition.Name] = &toolEntry{
		def:          tool.Definition,
		serverName:   builtinServerName,
		measurements: newRollingWindow(h.windowSize),
		builtinFn:    tool.Handler,
	}
	return nil
}
