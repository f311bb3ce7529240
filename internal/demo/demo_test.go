package demo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/funcall/internal/chat"
	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/mcp/mcphost"
	mcpmock "github.com/MrWong99/funcall/internal/mcp/mock"
	"github.com/MrWong99/funcall/internal/observe"
	"github.com/MrWong99/funcall/pkg/provider/image"
	imagemock "github.com/MrWong99/funcall/pkg/provider/image/mock"
	"github.com/MrWong99/funcall/pkg/provider/llm"
	llmmock "github.com/MrWong99/funcall/pkg/provider/llm/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// newEnv returns an Env writing to out and reading input.
func newEnv(t *testing.T, p llm.Provider, input string, out *strings.Builder) Env {
	m := testMetrics(t)
	return Env{
		LLM:           p,
		In:            strings.NewReader(input),
		Out:           out,
		Metrics:       m,
		RunnerOptions: []chat.Option{chat.WithMetrics(m)},
	}
}

func answer(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text}
}

func calls(pairs ...string) *llm.CompletionResponse {
	resp := &llm.CompletionResponse{}
	for i := 0; i+1 < len(pairs); i += 2 {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{Name: pairs[i], Arguments: pairs[i+1]})
	}
	return resp
}

func toolNames(defs []llm.ToolDefinition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// guardedHost is a real host with the default policy filter and stub tools
// that record each call.
type guardedHost struct {
	*mcphost.Host
	mu   sync.Mutex
	runs []string
}

func newGuardedHost(t *testing.T) *guardedHost {
	t.Helper()
	g := &guardedHost{Host: mcphost.New(mcphost.WithMetrics(testMetrics(t)))}
	for _, name := range allTools {
		err := g.RegisterBuiltin(mcphost.BuiltinTool{
			Definition: llm.ToolDefinition{Name: name},
			Handler: func(_ context.Context, args string) (string, error) {
				g.mu.Lock()
				defer g.mu.Unlock()
				g.runs = append(g.runs, name+" "+args)
				return name + " ok", nil
			},
		})
		if err != nil {
			t.Fatalf("RegisterBuiltin(%s): %v", name, err)
		}
	}
	return g
}

func (g *guardedHost) ran() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.runs)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	names := Names()
	if len(names) != 11 {
		t.Fatalf("len(Names()) = %d, want 11", len(names))
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate demo %q", n)
		}
		seen[n] = true
		d, ok := Lookup(n)
		if !ok || d.Run == nil || d.Description == "" {
			t.Errorf("Lookup(%q) = %+v, %v", n, d, ok)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) succeeded")
	}

	all := All()
	all[0].Name = "changed"
	if Names()[0] == "changed" {
		t.Error("All() exposes the registry")
	}
}

func TestBasicPrompt_REPL(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{answer("Hi there"), answer("Bye")}}
	var out strings.Builder
	env := newEnv(t, p, "hello\n\n  goodbye \nquit\nnever sent\n", &out)

	if err := BasicPrompt(context.Background(), env); err != nil {
		t.Fatalf("BasicPrompt: %v", err)
	}
	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if len(reqs[1].Messages) != 1 || reqs[1].Messages[0].Content != "goodbye" {
		t.Errorf("second request = %+v, want a lone trimmed prompt", reqs[1].Messages)
	}
	want := "Enter your message:\nHi there\nEnter your message:\nEnter your message:\nBye\nEnter your message:\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestChatWithHistory_KeepsContext(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{answer("Nice to meet you, Ana"), answer("Your name is Ana")}}
	var out strings.Builder
	env := newEnv(t, p, "I am Ana\nWhat is my name?\n", &out)
	env.Host = &mcpmock.Host{ToolsResult: []llm.ToolDefinition{{Name: "GetWeather"}}}

	if err := ChatWithHistory(context.Background(), env); err != nil {
		t.Fatalf("ChatWithHistory: %v", err)
	}
	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if got := len(reqs[1].Messages); got != 3 {
		t.Errorf("second request has %d messages, want 3", got)
	}
	if len(reqs[0].Tools) != 0 {
		t.Errorf("tools offered = %v, want none", toolNames(reqs[0].Tools))
	}
}

func TestREPL_ErrorKeepsGoing(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	var out strings.Builder
	env := newEnv(t, p, "one\ntwo\n", &out)

	if err := BasicPrompt(context.Background(), env); err != nil {
		t.Fatalf("BasicPrompt: %v", err)
	}
	if n := strings.Count(out.String(), "Error: chat: completion: rate limited"); n != 2 {
		t.Errorf("error lines = %d, want 2; output:\n%s", n, out.String())
	}
}

func TestWeatherChat_OnlyWeatherTool(t *testing.T) {
	t.Parallel()
	g := newGuardedHost(t)
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		calls("GetWeather", `{"city":"Madrid"}`),
		answer("Sunny in Madrid"),
	}}
	var out strings.Builder
	env := newEnv(t, p, "Weather in Madrid?\nquit\n", &out)
	env.Host = g

	if err := WeatherChat(context.Background(), env); err != nil {
		t.Fatalf("WeatherChat: %v", err)
	}
	if got := toolNames(p.Requests()[0].Tools); !slices.Equal(got, []string{"GetWeather"}) {
		t.Errorf("tools = %v, want [GetWeather]", got)
	}
	if got := g.ran(); !slices.Equal(got, []string{`GetWeather {"city":"Madrid"}`}) {
		t.Errorf("ran = %v", got)
	}
	if !strings.Contains(out.String(), "Sunny in Madrid\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestScopedHost(t *testing.T) {
	t.Parallel()
	g := newGuardedHost(t)
	s := scope(g, "GetWeather")

	res, err := s.ExecuteTool(context.Background(), "ConvertCurrency", `{"amount":1}`)
	if err != nil || !res.IsError {
		t.Fatalf("out-of-scope call = %+v, %v; want an error result", res, err)
	}
	if len(g.ran()) != 0 {
		t.Error("out-of-scope tool ran")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if len(g.Tools()) != len(allTools) {
		t.Error("closing the scope changed the host")
	}
}

func TestTravelStreaming(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "Try the "}, {Text: "Faroe Islands."}, {FinishReason: "stop"}}}
	var out strings.Builder
	env := newEnv(t, p, "", &out)

	if err := TravelStreaming(context.Background(), env); err != nil {
		t.Fatalf("TravelStreaming: %v", err)
	}
	want := "assistant: " + travelGreeting + "\nuser: " + travelRequest + "\nassistant: Try the Faroe Islands.\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	msgs := p.StreamCalls[0].Req.Messages
	if len(msgs) != 3 || msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleAssistant || msgs[2].Content != travelRequest {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestStartupIdeaSettings(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{answer("Tutor bots"), answer("VR classrooms")}}
	var out strings.Builder
	env := newEnv(t, p, "", &out)

	if err := StartupIdeaSettings(context.Background(), env); err != nil {
		t.Fatalf("StartupIdeaSettings: %v", err)
	}
	reqs := p.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	for i, want := range []float64{0, 1} {
		if reqs[i].Temperature == nil || *reqs[i].Temperature != want {
			t.Errorf("request %d temperature = %v, want %v", i, reqs[i].Temperature, want)
		}
		if reqs[i].MaxTokens != 500 {
			t.Errorf("request %d max tokens = %d", i, reqs[i].MaxTokens)
		}
	}
	if out.String() != "Temperature 0:\nTutor bots\n\nTemperature 1:\nVR classrooms\n\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestDocumentSummarization(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: answer("- a\n- b\n- c")}
	var out strings.Builder
	env := newEnv(t, p, "", &out)

	if err := DocumentSummarization(context.Background(), env); err != nil {
		t.Fatalf("DocumentSummarization: %v", err)
	}
	prompt := p.Requests()[0].Messages[0].Content
	if !strings.HasPrefix(prompt, "Summarize this article in 3 bullet points:\n\nFunction calling in LLMs") {
		t.Errorf("prompt = %.80q", prompt)
	}
	if !strings.HasSuffix(out.String(), "- a\n- b\n- c\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCurrencyConversion(t *testing.T) {
	t.Parallel()
	g := newGuardedHost(t)
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		calls(
			"ConvertCurrency", `{"amount":500,"fromCurrency":"USD","toCurrency":"EUR"}`,
			"ConvertCurrency", `{"amount":500,"fromCurrency":"USD","toCurrency":"GBP"}`,
			"ConvertCurrency", `{"amount":500,"fromCurrency":"USD","toCurrency":"JPY"}`,
		),
		answer("EUR 460, GBP 395, JPY 74,750"),
	}}
	var out strings.Builder
	env := newEnv(t, p, "", &out)
	env.Host = g

	if err := CurrencyConversion(context.Background(), env); err != nil {
		t.Fatalf("CurrencyConversion: %v", err)
	}
	if got := toolNames(p.Requests()[0].Tools); slices.Contains(got, "GetWeather") || len(got) != 3 {
		t.Errorf("tools = %v, want the three currency tools", got)
	}
	if len(g.ran()) != 3 {
		t.Errorf("ran = %v, want 3 conversions", g.ran())
	}
	if !strings.HasSuffix(out.String(), "EUR 460, GBP 395, JPY 74,750\n") {
		t.Errorf("output = %q", out.String())
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestParallelismComparison(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: answer("done")}
	var out strings.Builder
	env := newEnv(t, p, "", &out)
	env.Host = newGuardedHost(t)
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), step: 500 * time.Millisecond}
	env.Now = clock.Now

	if err := ParallelismComparison(context.Background(), env); err != nil {
		t.Fatalf("ParallelismComparison: %v", err)
	}
	reqs := p.Requests()
	if len(reqs) != 6 {
		t.Fatalf("requests = %d, want 5 sequential and 1 combined", len(reqs))
	}
	if reqs[5].Messages[0].Content != parallelQuery {
		t.Errorf("combined prompt = %q", reqs[5].Messages[0].Content)
	}
	got := out.String()
	for _, want := range []string{
		"[09:30:00.500] Starting sequential calls...\n",
		"[09:30:01.000] Completed: Convert 1000 USD to EUR\nResult: done\n\n",
		"📊 SEQUENTIAL EXECUTION TIME: 3.50 seconds\n",
		"\n" + strings.Repeat("-", 60) + "\n",
		"🚀 PARALLEL EXECUTION TIME: 1.00 seconds\n",
		"--- PARALLEL RESULTS ---\ndone\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSecurityFilter(t *testing.T) {
	t.Parallel()
	g := newGuardedHost(t)
	p := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		calls("ConvertCurrency", `{"amount":500,"fromCurrency":"USD","toCurrency":"EUR"}`),
		answer("500 USD is 460 EUR"),
		calls("GetWeather", `{"city":"Madrid"}`),
		answer("Sunny"),
		calls("ConvertCurrency", `{"amount":1000,"fromCurrency":"USD","toCurrency":"BTC"}`),
		calls("GetWeather", `{"city":"Pyongyang"}`),
		calls("ConvertCurrency", `{"amount":500000,"fromCurrency":"USD","toCurrency":"EUR"}`),
		answer("500000 USD is 460000 EUR"),
	}}
	var out strings.Builder
	env := newEnv(t, p, "", &out)
	env.Host = g

	if err := SecurityFilter(context.Background(), env); err != nil {
		t.Fatalf("SecurityFilter: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Query: Convert 500 USD to EUR\nResult: 500 USD is 460 EUR\n\n",
		"Query: Get weather for Madrid\nResult: Sunny\n\n",
		"Query: Convert 1000 USD to BTC\n🚫 BLOCKED: Cryptocurrency conversion to BTC is blocked for security reasons.\n\n",
		"Query: Get weather for Pyongyang\n🚫 BLOCKED: Weather information for Pyongyang is restricted due to security policies.\n\n",
		"Query: Convert 500000 USD to EUR\nResult: 500000 USD is 460000 EUR\n\n",
		"=== Security Filter Demo Complete ===\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := len(g.ran()); n != 3 {
		t.Errorf("tool bodies ran %d times, want 3: %v", n, g.ran())
	}
}

func TestComplexSecurity(t *testing.T) {
	t.Parallel()

	t.Run("blocked", func(t *testing.T) {
		t.Parallel()
		g := newGuardedHost(t)
		p := &llmmock.Provider{Responses: []*llm.CompletionResponse{calls(
			"ConvertCurrency", `{"amount":1000,"fromCurrency":"USD","toCurrency":"EUR"}`,
			"ConvertCurrency", `{"amount":500,"fromCurrency":"USD","toCurrency":"BTC"}`,
			"GetWeather", `{"city":"London"}`,
		)}}
		var out strings.Builder
		env := newEnv(t, p, "", &out)
		env.Host = g

		if err := ComplexSecurity(context.Background(), env); err != nil {
			t.Fatalf("ComplexSecurity: %v", err)
		}
		want := "Operation stopped due to security violation: Cryptocurrency conversion to BTC is blocked for security reasons.\n"
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
		if strings.Contains(out.String(), "Final Result") {
			t.Error("blocked request printed a final result")
		}
		if len(p.Requests()) != 1 {
			t.Errorf("requests = %d, want 1", len(p.Requests()))
		}
	})

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		host := &mcpmock.Host{
			ToolsResult: []llm.ToolDefinition{{Name: "GetWeather"}},
			ExecuteToolFunc: func(context.Context, string, string) (*mcp.ToolResult, error) {
				return &mcp.ToolResult{Content: "London: 🌧 +12°C"}, nil
			},
		}
		p := &llmmock.Provider{Responses: []*llm.CompletionResponse{
			calls("GetWeather", `{"city":"London"}`),
			answer("All processed."),
		}}
		var out strings.Builder
		env := newEnv(t, p, "", &out)
		env.Host = host

		if err := ComplexSecurity(context.Background(), env); err != nil {
			t.Fatalf("ComplexSecurity: %v", err)
		}
		if !strings.Contains(out.String(), "Final Result:\nAll processed.\n\n=== Complex Security Demo Complete ===\n") {
			t.Errorf("output = %q", out.String())
		}
	})
}

func TestTravelLoungeImage(t *testing.T) {
	t.Parallel()

	t.Run("url", func(t *testing.T) {
		t.Parallel()
		img := &imagemock.Provider{Result: &image.Result{URL: "https://img.example/lounge.png"}}
		var out strings.Builder
		env := newEnv(t, nil, "", &out)
		env.Image = img

		if err := TravelLoungeImage(context.Background(), env); err != nil {
			t.Fatalf("TravelLoungeImage: %v", err)
		}
		req := img.Requests[0]
		if req.Width != 896 || req.Height != 512 || !strings.HasPrefix(req.Prompt, "Imagine a vibrant travel agency lounge") {
			t.Errorf("request = %+v", req)
		}
		if out.String() != "Image URL: https://img.example/lounge.png\n" {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()
		var out strings.Builder
		env := newEnv(t, nil, "", &out)
		env.Image = &imagemock.Provider{Err: errors.New("content policy")}
		if err := TravelLoungeImage(context.Background(), env); err == nil || !strings.Contains(err.Error(), "content policy") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		var out strings.Builder
		if err := TravelLoungeImage(context.Background(), newEnv(t, nil, "", &out)); err == nil {
			t.Error("expected error without an image provider")
		}
	})
}
