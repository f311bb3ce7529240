// Package mock provides an in-memory test double for the [mcp.Host] interface.
//
// [Host] records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. It is safe for
// concurrent use.
//
// Typical usage:
//
//	h := &mock.Host{}
//	h.ToolsResult = []llm.ToolDefinition{{Name: "GetWeather"}}
//	h.ExecuteToolFunc = func(_ context.Context, name, args string) (*mcp.ToolResult, error) {
//	    return &mcp.ToolResult{Content: "Madrid: ☀️ +21°C"}, nil
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Host is a configurable test double for [mcp.Host].
type Host struct {
	mu    sync.Mutex
	calls []Call

	// RegisterServerErr is returned by [Host.RegisterServer] when non-nil.
	RegisterServerErr error

	// ToolsResult is returned by [Host.Tools].
	ToolsResult []llm.ToolDefinition

	// ExecuteToolFunc, when set, decides every [Host.ExecuteTool] outcome
	// and takes precedence over ExecuteToolResult and ExecuteToolErr. It is
	// called without the mock's lock held.
	ExecuteToolFunc func(ctx context.Context, name, args string) (*mcp.ToolResult, error)

	// ExecuteToolResult is returned by [Host.ExecuteTool] when ExecuteToolErr
	// is nil. Nil yields a zero-value result.
	ExecuteToolResult *mcp.ToolResult

	// ExecuteToolErr is returned by [Host.ExecuteTool] when non-nil.
	ExecuteToolErr error

	// CloseErr is returned by [Host.Close] when non-nil.
	CloseErr error
}

var _ mcp.Host = (*Host)(nil)

// Calls returns a copy of all recorded method invocations.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

// CallCount returns how many times the named method was invoked.
func (h *Host) CallCount(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func (h *Host) record(method string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Method: method, Args: args})
}

// RegisterServer implements [mcp.Host].
func (h *Host) RegisterServer(_ context.Context, cfg mcp.ServerConfig) error {
	h.record("RegisterServer", cfg)
	return h.RegisterServerErr
}

// Tools implements [mcp.Host].
func (h *Host) Tools() []llm.ToolDefinition {
	h.record("Tools")
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ToolsResult == nil {
		return []llm.ToolDefinition{}
	}
	return slices.Clone(h.ToolsResult)
}

// ExecuteTool implements [mcp.Host].
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.record("ExecuteTool", name, args)
	if h.ExecuteToolFunc != nil {
		return h.ExecuteToolFunc(ctx, name, args)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ExecuteToolErr != nil {
		return nil, h.ExecuteToolErr
	}
	if h.ExecuteToolResult == nil {
		return &mcp.ToolResult{}, nil
	}
	cp := *h.ExecuteToolResult
	return &cp, nil
}

// Close implements [mcp.Host].
func (h *Host) Close() error {
	h.record("Close")
	return h.CloseErr
}
