// Package chat drives conversations with a language model, including the
// automatic tool-calling loop.
//
// When the model answers with tool calls, the [Runner] executes them through
// an [mcp.Host] (and therefore through its policy filter), appends the
// assistant turn and one tool message per call to the history, and asks the
// model again. The loop ends with the first plain answer or after a bounded
// number of rounds.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/observe"
	"github.com/MrWong99/funcall/internal/policy"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// DefaultMaxRounds bounds the tool-calling loop.
const DefaultMaxRounds = 8

// ErrMaxRounds is returned when the model keeps requesting tools after the
// round limit.
var ErrMaxRounds = errors.New("chat: tool round limit reached")

// ViolationMode selects how a policy violation raised by a tool call is
// handled.
type ViolationMode int

const (
	// AbortOnViolation fails the whole prompt with the *policy.PolicyViolation.
	AbortOnViolation ViolationMode = iota

	// ReportViolation returns the violation text to the model as the tool
	// result and lets the conversation continue.
	ReportViolation
)

func (m ViolationMode) String() string {
	switch m {
	case AbortOnViolation:
		return "abort"
	case ReportViolation:
		return "report"
	default:
		return "unknown"
	}
}

// Runner sends prompts to a model and resolves its tool calls.
// A Runner is immutable after construction and safe for concurrent use.
type Runner struct {
	llm       llm.Provider
	host      mcp.Host
	provider  string
	maxRounds int
	mode      ViolationMode
	metrics   *observe.Metrics
}

// Option is a functional option for [NewRunner].
type Option func(*Runner)

// WithTools enables automatic tool calling against host.
func WithTools(host mcp.Host) Option {
	return func(r *Runner) {
		r.host = host
	}
}

// WithMaxRounds overrides [DefaultMaxRounds].
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithViolationMode sets the policy violation handling. Default:
// [AbortOnViolation].
func WithViolationMode(m ViolationMode) Option {
	return func(r *Runner) {
		r.mode = m
	}
}

// WithProviderName sets the provider label used in metrics.
func WithProviderName(name string) Option {
	return func(r *Runner) {
		r.provider = name
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a Runner backed by provider.
func NewRunner(provider llm.Provider, opts ...Option) *Runner {
	r := &Runner{
		llm:       provider,
		provider:  "llm",
		maxRounds: DefaultMaxRounds,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Host returns the tool host, or nil when tool calling is disabled.
func (r *Runner) Host() mcp.Host { return r.host }

// CallOption adjusts a single prompt.
type CallOption func(*callConfig)

type callConfig struct {
	temperature *float64
	maxTokens   int
	noTools     bool
}

// WithTemperature sets the sampling temperature for one call.
func WithTemperature(t float64) CallOption {
	return func(c *callConfig) {
		c.temperature = &t
	}
}

// WithMaxTokens caps the completion length for one call.
func WithMaxTokens(n int) CallOption {
	return func(c *callConfig) {
		c.maxTokens = n
	}
}

// WithoutTools hides the tool catalogue from the model for one call.
func WithoutTools() CallOption {
	return func(c *callConfig) {
		c.noTools = true
	}
}

// Prompt sends text as a one-shot conversation and returns the answer.
func (r *Runner) Prompt(ctx context.Context, text string, opts ...CallOption) (string, error) {
	h := NewHistory("")
	return r.Send(ctx, h, text, opts...)
}

// Send appends text as a user message to h and runs the conversation to the
// next assistant answer, which is also appended to h.
//
// On failure h keeps the user message but none of the intermediate tool
// traffic, so the history stays valid for the next turn.
func (r *Runner) Send(ctx context.Context, h *History, text string, opts ...CallOption) (string, error) {
	h.AddUser(text)
	return r.run(ctx, h, nil, opts)
}

// Stream runs the conversation in h to the next assistant answer, writing
// the answer text to w as it arrives. The final answer is appended to h.
func (r *Runner) Stream(ctx context.Context, h *History, w io.Writer, opts ...CallOption) (string, error) {
	if w == nil {
		w = io.Discard
	}
	return r.run(ctx, h, w, opts)
}

func (r *Runner) run(ctx context.Context, h *History, w io.Writer, opts []CallOption) (_ string, err error) {
	var cfg callConfig
	for _, o := range opts {
		o(&cfg)
	}

	ctx, span := observe.StartSpan(ctx, "chat.Run", trace.WithAttributes(
		attribute.String("llm.provider", r.provider),
		attribute.Bool("llm.stream", w != nil),
	))
	defer func() { observe.EndSpan(span, err) }()

	mark := h.Len()
	defer func() {
		if err != nil {
			h.truncate(mark)
		}
	}()

	var tools []llm.ToolDefinition
	if r.host != nil && !cfg.noTools {
		tools = r.host.Tools()
	}

	log := observe.Logger(ctx)
	var usage llm.Usage
	for round := 1; round <= r.maxRounds; round++ {
		req := llm.CompletionRequest{
			Messages:    h.Messages(),
			Tools:       tools,
			Temperature: cfg.temperature,
			MaxTokens:   cfg.maxTokens,
		}

		var resp *llm.CompletionResponse
		if w != nil {
			resp, err = r.stream(ctx, req, w)
		} else {
			resp, err = r.complete(ctx, req)
		}
		if err != nil {
			return "", err
		}
		usage = usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			h.AddAssistant(resp.Content)
			r.metrics.ChatRounds.Record(ctx, int64(round))
			span.SetAttributes(
				attribute.Int("chat.rounds", round),
				attribute.Int("llm.tokens.total", usage.TotalTokens),
			)
			log.Debug("answer complete", "rounds", round, "tokens", usage.TotalTokens)
			return resp.Content, nil
		}

		calls := withCallIDs(resp.ToolCalls)
		log.Debug("model requested tools", "round", round, "calls", len(calls))
		h.Add(llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})

		results, err := r.executeCalls(ctx, calls)
		if err != nil {
			return "", err
		}
		for i, c := range calls {
			h.Add(llm.ToolResult(c, results[i]))
		}
	}

	r.metrics.ChatRounds.Record(ctx, int64(r.maxRounds))
	return "", fmt.Errorf("%w (%d)", ErrMaxRounds, r.maxRounds)
}

// withCallIDs fills in missing call IDs so tool messages can reference them.
func withCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}

// executeCalls runs all calls of one model turn concurrently and returns
// their tool-message contents in call order.
func (r *Runner) executeCalls(ctx context.Context, calls []llm.ToolCall) ([]string, error) {
	if r.host == nil {
		return nil, fmt.Errorf("chat: model requested tool %q but no tools are configured", calls[0].Name)
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		g.Go(func() error {
			res, err := r.host.ExecuteTool(gctx, c.Name, c.Arguments)
			if err != nil {
				if v, ok := policy.AsViolation(err); ok && r.mode == ReportViolation {
					results[i] = v.Error()
					return nil
				}
				return err
			}
			if res.IsError {
				results[i] = "Error: " + res.Content
				return nil
			}
			results[i] = res.Content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := r.llm.Complete(ctx, req)
	r.record(ctx, start, "complete", err)
	if err != nil {
		return nil, fmt.Errorf("chat: completion: %w", err)
	}
	if resp == nil {
		resp = &llm.CompletionResponse{}
	}
	return resp, nil
}

// stream consumes one streamed completion, forwarding text to w and
// collecting tool calls.
func (r *Runner) stream(ctx context.Context, req llm.CompletionRequest, w io.Writer) (*llm.CompletionResponse, error) {
	start := time.Now()
	ch, err := r.llm.StreamCompletion(ctx, req)
	if err != nil {
		r.record(ctx, start, "stream", err)
		return nil, fmt.Errorf("chat: stream: %w", err)
	}

	var (
		sb       strings.Builder
		calls    []llm.ToolCall
		writeErr error
	)
	for chunk := range ch {
		if chunk.FinishReason == llm.FinishError {
			err = errors.New(chunk.Text)
			continue
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			if writeErr == nil {
				_, writeErr = io.WriteString(w, chunk.Text)
			}
		}
		calls = append(calls, chunk.ToolCalls...)
	}
	if err == nil {
		err = ctx.Err()
	}
	r.record(ctx, start, "stream", err)
	if err != nil {
		return nil, fmt.Errorf("chat: stream: %w", err)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("chat: write stream output: %w", writeErr)
	}
	return &llm.CompletionResponse{Content: sb.String(), ToolCalls: calls}, nil
}

func (r *Runner) record(ctx context.Context, start time.Time, kind string, err error) {
	r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("provider", r.provider),
		attribute.String("kind", kind),
	))
	status := "ok"
	if err != nil {
		status = "error"
		r.metrics.RecordProviderError(ctx, r.provider, "llm")
	}
	r.metrics.RecordProviderRequest(ctx, r.provider, "llm", status)
}
