// Package tools defines the shared [Tool] type used by the built-in tool
// packages. Each sub-package exports a constructor returning [Tool] values
// ready for registration with the tool host.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// Tool is a built-in tool: the schema advertised to the model plus the
// function that runs when the model calls it.
type Tool struct {
	// Definition is the tool's model-facing name, description and JSON
	// Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with the model's JSON-encoded args.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Schema infers the JSON Schema of T's parameters for a tool definition.
// Field descriptions come from `jsonschema` struct tags.
func Schema[T any]() (map[string]any, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("tools: infer schema for %T: %w", *new(T), err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("tools: encode schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tools: decode schema: %w", err)
	}
	return m, nil
}

// MustSchema is like [Schema] but panics on error. Schemas are derived from
// static argument types, so a failure is a programming error.
func MustSchema[T any]() map[string]any {
	m, err := Schema[T]()
	if err != nil {
		panic(err)
	}
	return m
}

// Decode unmarshals the model's JSON args into T. Blank args decode to the
// zero value.
func Decode[T any](args string) (T, error) {
	var v T
	if args == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return v, fmt.Errorf("invalid arguments: %w", err)
	}
	return v, nil
}

// NewHTTPClient returns an HTTP client with the given timeout whose requests
// are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
