// Package demo holds the runnable console demos. Each demo reads from
// [Env.In], writes to [Env.Out] and talks to the model through a
// [chat.Runner] built from the environment.
package demo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/funcall/internal/chat"
	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/observe"
	"github.com/MrWong99/funcall/internal/policy"
	"github.com/MrWong99/funcall/pkg/provider/image"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// Env is everything a demo may use.
type Env struct {
	LLM   llm.Provider
	Image image.Provider
	Host  mcp.Host
	In    io.Reader
	Out   io.Writer

	// ImageProvider labels image metrics.
	ImageProvider string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Metrics receives image generation timings. Defaults to
	// observe.DefaultMetrics.
	Metrics *observe.Metrics

	// RunnerOptions are applied to every runner a demo creates.
	RunnerOptions []chat.Option
}

// Demo is a named runnable demo.
type Demo struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env Env) error
}

var registry = []Demo{
	{"weather-chat", "Chat with history and the weather tool until you type quit", WeatherChat},
	{"basic-prompt", "One-shot prompts without history until you type quit", BasicPrompt},
	{"chat-history", "Chat with history and no tools until you type quit", ChatWithHistory},
	{"travel-streaming", "Stream a travel expert's answer to a seeded conversation", TravelStreaming},
	{"startup-ideas", "The same prompt at temperature 0 and 1", StartupIdeaSettings},
	{"summarize", "Summarise a fixed article in three bullet points", DocumentSummarization},
	{"currency-conversion", "Convert 500 USD to EUR, GBP and JPY in one prompt", CurrencyConversion},
	{"parallelism", "Five sequential prompts against one combined prompt", ParallelismComparison},
	{"security-filter", "Allowed, blocked and alerted tool calls", SecurityFilter},
	{"complex-security", "A multi-step request that hits the policy filter", ComplexSecurity},
	{"travel-lounge-image", "Generate the travel agency lounge image", TravelLoungeImage},
}

// All returns every demo in menu order.
func All() []Demo { return slices.Clone(registry) }

// Names returns every demo name in menu order.
func Names() []string {
	names := make([]string, len(registry))
	for i, d := range registry {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the demo with the given name.
func Lookup(name string) (Demo, bool) {
	for _, d := range registry {
		if d.Name == name {
			return d, true
		}
	}
	return Demo{}, false
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) metrics() *observe.Metrics {
	if e.Metrics != nil {
		return e.Metrics
	}
	return observe.DefaultMetrics()
}

// runner builds a runner offering only the named tools. Without names the
// model gets no tools at all.
func (e Env) runner(toolNames ...string) *chat.Runner {
	opts := slices.Clone(e.RunnerOptions)
	if len(toolNames) > 0 && e.Host != nil {
		opts = append(opts, chat.WithTools(scope(e.Host, toolNames...)))
	}
	return chat.NewRunner(e.LLM, opts...)
}

func (e Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

func (e Env) println(args ...any) {
	fmt.Fprintln(e.Out, args...)
}

func (e Env) stamp() string {
	return e.now().Format("15:04:05.000")
}

// repl prompts for lines until "quit" or end of input and hands each line to
// turn. Turn errors are printed and the loop continues.
func (e Env) repl(ctx context.Context, turn func(line string) (string, error)) error {
	sc := bufio.NewScanner(e.In)
	for {
		e.println("Enter your message:")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}
		answer, err := turn(line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.println(describeError(err))
			continue
		}
		e.println(answer)
	}
}

// describeError renders err for console output.
func describeError(err error) string {
	if v, ok := policy.AsViolation(err); ok {
		return "🚫 BLOCKED: " + v.Reason
	}
	if errors.Is(err, chat.ErrMaxRounds) {
		return "Error: the model kept calling tools without answering"
	}
	return "Error: " + err.Error()
}
