// Package mcp defines the tool host that sits between the chat runner and
// the tools the model may call.
//
// A [Host] holds a catalogue of tools. Some run in-process, others live on
// external Model Context Protocol servers. Every call is routed through the
// host's invocation policy filter before the tool body runs.
//
// Lifecycle:
//
//  1. Register tools (in-process builtins or [Host.RegisterServer]).
//  2. Advertise [Host.Tools] to the model.
//  3. Run model-requested calls with [Host.ExecuteTool].
//  4. Call [Host.Close] to release server connections.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"

	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies the server. Must be unique within a [Host].
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable and arguments for [TransportStdio].
	Command string

	// URL is the endpoint for [TransportStreamableHTTP].
	URL string

	// Env holds additional environment variables for a stdio server process.
	Env map[string]string
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output. When IsError is true it holds
	// the error message instead.
	Content string

	// IsError marks an application-level tool failure. Policy violations and
	// transport failures are reported through the Go error instead.
	IsError bool

	// DurationMs is the wall-clock time of the call in milliseconds.
	DurationMs int64
}

// Host manages the tool catalogue and executes tool calls.
type Host interface {
	// RegisterServer connects to the MCP server described by cfg and imports
	// its tools. Re-registering a name replaces the old connection.
	RegisterServer(ctx context.Context, cfg ServerConfig) error

	// Tools returns every registered tool definition sorted by name.
	Tools() []llm.ToolDefinition

	// ExecuteTool runs the named tool with JSON-encoded args after the
	// policy filter allowed it.
	//
	// A denied call returns an error wrapping policy.ErrPolicyViolation.
	// An unknown tool name or a tool that fails on its own returns a
	// non-nil *ToolResult with IsError set and a nil error.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// Close shuts down all server connections. The Host must not be used
	// afterwards.
	Close() error
}
