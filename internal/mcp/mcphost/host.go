// Package mcphost provides the concrete [mcp.Host].
//
// It keeps a concurrent-safe registry of in-process tools and tools imported
// from external MCP servers (stdio or streamable HTTP, via the official MCP
// Go SDK). Every call passes through the host's [policy.Filter] first; the
// filter can be swapped at runtime with [Host.SetFilter].
//
// Typical usage:
//
//	h := mcphost.New(mcphost.WithFilter(policy.NewFilter(policy.DefaultRuleSet())))
//	defer h.Close()
//
//	_ = h.RegisterBuiltin(mcphost.BuiltinTool{Definition: def, Handler: fn})
//	_ = h.RegisterServer(ctx, mcp.ServerConfig{
//	    Name:      "files",
//	    Transport: mcp.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-files",
//	})
//
//	result, err := h.ExecuteTool(ctx, "GetWeather", `{"city":"Madrid"}`)
package mcphost

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/observe"
	"github.com/MrWong99/funcall/internal/policy"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// toolEntry holds all metadata for a single registered tool.
type toolEntry struct {
	def          llm.ToolDefinition
	serverName   string
	measurements *rollingWindow
	denied       atomic.Int64

	// builtinFn is non-nil for in-process tools registered via RegisterBuiltin.
	builtinFn func(ctx context.Context, args string) (string, error)
}

// serverConn holds a live connection to an external MCP server.
type serverConn struct {
	session *mcpsdk.ClientSession
}

// Host is the concrete implementation of [mcp.Host].
//
// The zero value is not usable; create instances with [New].
type Host struct {
	mu      sync.RWMutex
	tools   map[string]*toolEntry // key: tool name
	servers map[string]serverConn // key: server name

	// client is shared by all server sessions.
	client *mcpsdk.Client

	filter     atomic.Pointer[policy.Filter]
	metrics    *observe.Metrics
	windowSize int
}

var _ mcp.Host = (*Host)(nil)

// Option is a functional option for [New].
type Option func(*Host)

// WithFilter sets the policy filter every call passes through. Without it
// the host enforces [policy.DefaultRuleSet].
func WithFilter(f *policy.Filter) Option {
	return func(h *Host) {
		if f != nil {
			h.filter.Store(f)
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// WithWindowSize sets how many recent calls per tool feed [Host.Stats].
func WithWindowSize(n int) Option {
	return func(h *Host) {
		h.windowSize = n
	}
}

// New creates a ready-to-use Host.
func New(opts ...Option) *Host {
	h := &Host{
		tools:      make(map[string]*toolEntry),
		servers:    make(map[string]serverConn),
		windowSize: defaultWindowSize,
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "funcall-mcphost", Version: "1.0.0"},
			nil,
		),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.filter.Load() == nil {
		h.filter.Store(policy.NewFilter(policy.DefaultRuleSet(), policy.WithMetrics(h.metrics)))
	}
	return h
}

// SetFilter atomically replaces the policy filter. Calls already inside the
// old filter finish with it.
func (h *Host) SetFilter(f *policy.Filter) {
	if f == nil {
		return
	}
	h.filter.Store(f)
}

// Filter returns the policy filter currently in force.
func (h *Host) Filter() *policy.Filter {
	return h.filter.Load()
}

// RegisterServer connects to the MCP server described by cfg and imports its
// tools. If a server with the same Name is already registered, the old
// connection is closed and its tools are replaced.
//
// For [mcp.TransportStdio], cfg.Command is split on whitespace into the
// executable and its arguments and cfg.Env is appended to the parent
// environment. For [mcp.TransportStreamableHTTP], cfg.URL is the endpoint.
func (h *Host) RegisterServer(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp host: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("mcp host: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp host: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	return h.Connect(ctx, cfg.Name, transport)
}

// Connect attaches an already constructed MCP transport under name and
// imports the server's tools. [Host.RegisterServer] uses it after building
// the transport from a config; tests use it with in-memory transports.
func (h *Host) Connect(ctx context.Context, name string, transport mcpsdk.Transport) error {
	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: failed to connect to server %q: %w", name, err)
	}

	var discovered []*mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: failed to list tools for server %q: %w", name, err)
		}
		discovered = append(discovered, tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[name]; ok {
		_ = old.session.Close()
		for toolName, t := range h.tools {
			if t.serverName == name {
				delete(h.tools, toolName)
			}
		}
	}
	h.servers[name] = serverConn{session: session}

	for _, t := range discovered {
		if existing, ok := h.tools[t.Name]; ok && existing.serverName != name {
			slog.Warn("mcp host: tool name collision, replacing",
				"tool", t.Name, "old_server", existing.serverName, "new_server", name)
		}
		h.tools[t.Name] = &toolEntry{
			def: llm.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaToMap(t.InputSchema),
			},
			serverName:   name,
			measurements: newRollingWindow(h.windowSize),
		}
	}
	slog.Info("mcp server registered", "server", name, "tools", len(discovered))
	return nil
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// Tools returns every registered tool definition sorted by name.
func (h *Host) Tools() []llm.ToolDefinition {
	h.mu.RLock()
	defs := make([]llm.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	h.mu.RUnlock()

	slices.SortFunc(defs, func(a, b llm.ToolDefinition) int { return cmp.Compare(a.Name, b.Name) })
	return defs
}

// ExecuteTool runs the named tool through the policy filter.
//
// Unknown tool names, malformed argument JSON and application-level tool
// failures come back as a *ToolResult with IsError set so the model can
// react. Policy violations
// are returned unchanged as the error, as are transport failures of
// external servers.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		slog.Warn("mcp host: model requested unknown tool", "tool", name)
		h.metrics.RecordToolCall(ctx, name, "unknown")
		return &mcp.ToolResult{Content: fmt.Sprintf("function %s not found", name), IsError: true}, nil
	}

	ctx, span := observe.StartSpan(ctx, "mcp.ExecuteTool",
		trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.server", entry.serverName),
		),
	)
	toolAttr := metric.WithAttributes(attribute.String("tool", name))
	h.metrics.ToolsInFlight.Add(ctx, 1, toolAttr)
	defer h.metrics.ToolsInFlight.Add(ctx, -1, toolAttr)

	start := time.Now()

	arguments, err := policy.ParseArguments(args)
	if err != nil {
		msg := fmt.Sprintf("invalid arguments for tool %s: %v", name, err)
		entry.measurements.Record(0, true)
		h.metrics.RecordToolCall(ctx, name, "error")
		observe.EndSpan(span, err)
		return &mcp.ToolResult{Content: msg, IsError: true}, nil
	}

	var result *mcp.ToolResult
	_, err = h.filter.Load().Invoke(ctx, policy.Invocation{Function: name, Arguments: arguments},
		func(ctx context.Context, _ policy.Invocation) (string, error) {
			var execErr error
			if entry.builtinFn != nil {
				result = executeBuiltin(ctx, entry, args)
			} else {
				result, execErr = h.executeMCPTool(ctx, entry, arguments)
			}
			if execErr != nil {
				return "", execErr
			}
			return result.Content, nil
		},
	)

	elapsed := time.Since(start)
	h.metrics.ToolExecutionDuration.Record(ctx, elapsed.Seconds(), toolAttr)

	if err != nil {
		if errors.Is(err, policy.ErrPolicyViolation) {
			entry.denied.Add(1)
			h.metrics.RecordToolCall(ctx, name, "denied")
		} else {
			entry.measurements.Record(elapsed.Milliseconds(), true)
			h.metrics.RecordToolCall(ctx, name, "error")
		}
		observe.EndSpan(span, err)
		return nil, err
	}

	entry.measurements.Record(elapsed.Milliseconds(), result.IsError)
	status := "ok"
	if result.IsError {
		status = "error"
	}
	h.metrics.RecordToolCall(ctx, name, status)
	span.SetAttributes(attribute.Bool("tool.is_error", result.IsError))
	observe.EndSpan(span, nil)

	result.DurationMs = elapsed.Milliseconds()
	return result, nil
}

// executeBuiltin calls the in-process handler for a builtin tool.
func executeBuiltin(ctx context.Context, entry *toolEntry, args string) *mcp.ToolResult {
	output, err := entry.builtinFn(ctx, args)
	if err != nil {
		return &mcp.ToolResult{Content: err.Error(), IsError: true}
	}
	return &mcp.ToolResult{Content: output}
}

// executeMCPTool routes the call to the owning server session.
func (h *Host) executeMCPTool(ctx context.Context, entry *toolEntry, args policy.Arguments) (*mcp.ToolResult, error) {
	h.mu.RLock()
	conn, ok := h.servers[entry.serverName]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mcp host: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: map[string]any(args),
	})
	if err != nil {
		return nil, fmt.Errorf("mcp host: call to tool %q failed: %w", entry.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return &mcp.ToolResult{Content: sb.String(), IsError: callResult.IsError}, nil
}

// Stats returns the rolling statistics of the named tool.
func (h *Host) Stats(name string) (mcp.ToolStats, bool) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		return mcp.ToolStats{}, false
	}
	return statsOf(entry), true
}

// AllStats returns the statistics of every tool sorted by name.
func (h *Host) AllStats() []mcp.ToolStats {
	h.mu.RLock()
	out := make([]mcp.ToolStats, 0, len(h.tools))
	for _, e := range h.tools {
		out = append(out, statsOf(e))
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b mcp.ToolStats) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func statsOf(e *toolEntry) mcp.ToolStats {
	return mcp.ToolStats{
		Name:      e.def.Name,
		Server:    e.serverName,
		CallCount: e.measurements.Count(),
		ErrorRate: e.measurements.ErrorRate(),
		P50Ms:     e.measurements.P50(),
		P99Ms:     e.measurements.P99(),
		Denied:    int(e.denied.Load()),
	}
}

// Close shuts down all server connections and clears the registry.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, conn := range h.servers {
		if err := conn.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp host: error closing server %q: %w", name, err))
		}
		delete(h.servers, name)
	}
	h.tools = make(map[string]*toolEntry)
	return errors.Join(errs...)
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
