package demo

import (
	"context"
	"fmt"
	"slices"

	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// scopedHost exposes a subset of a host's tools.
type scopedHost struct {
	mcp.Host
	allowed []string
}

func scope(h mcp.Host, names ...string) mcp.Host {
	return &scopedHost{Host: h, allowed: names}
}

func (s *scopedHost) Tools() []llm.ToolDefinition {
	var out []llm.ToolDefinition
	for _, d := range s.Host.Tools() {
		if slices.Contains(s.allowed, d.Name) {
			out = append(out, d)
		}
	}
	return out
}

func (s *scopedHost) ExecuteTool(ctx context.Context, name, args string) (*mcp.ToolResult, error) {
	if !slices.Contains(s.allowed, name) {
		return &mcp.ToolResult{Content: fmt.Sprintf("tool %s is not available", name), IsError: true}, nil
	}
	return s.Host.ExecuteTool(ctx, name, args)
}

// Close is a no-op: the scope does not own the underlying host.
func (s *scopedHost) Close() error { return nil }
