// Package app wires all funcall subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the policy filter, the
// tool host and the optional health and metrics server, Run executes one
// demo, Reload applies hot-reloadable config changes and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithHost, WithIO, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/funcall/internal/chat"
	"github.com/MrWong99/funcall/internal/config"
	"github.com/MrWong99/funcall/internal/demo"
	"github.com/MrWong99/funcall/internal/health"
	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/mcp/mcphost"
	"github.com/MrWong99/funcall/internal/mcp/tools"
	"github.com/MrWong99/funcall/internal/mcp/tools/currency"
	"github.com/MrWong99/funcall/internal/mcp/tools/weather"
	"github.com/MrWong99/funcall/internal/observe"
	"github.com/MrWong99/funcall/internal/policy"
	"github.com/MrWong99/funcall/pkg/provider/image"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// ErrAlreadyRunning is returned by [App.Run] while another demo is active.
var ErrAlreadyRunning = errors.New("app: a demo is already running")

// ErrUnknownDemo is returned by [App.Run] for a name not in the demo registry.
var ErrUnknownDemo = errors.New("app: unknown demo")

// rateBurst is the token bucket size for exchange-rate lookups.
const rateBurst = 10

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM     llm.Provider
	LLMName string

	Image     image.Provider
	ImageName string
}

// RunInfo describes the demo currently running.
type RunInfo struct {
	Demo      string
	StartedAt time.Time
}

// filterSetter is implemented by hosts whose policy filter can be swapped.
type filterSetter interface {
	SetFilter(f *policy.Filter)
}

// App owns all subsystem lifetimes.
type App struct {
	providers *Providers

	mu     sync.Mutex
	cfg    *config.Config
	active bool
	info   RunInfo

	host     mcp.Host
	checkers []health.Checker
	health   *health.Handler
	metrics  *observe.Metrics
	level    *slog.LevelVar
	server   *http.Server
	addr     string

	in  io.Reader
	out io.Writer

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHost injects a tool host instead of building one from config. The
// built-in tools are not registered on an injected host.
func WithHost(h mcp.Host) Option {
	return func(a *App) { a.host = h }
}

// WithIO sets the demo console. Defaults to stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithMetrics sets the metrics sink shared by every subsystem. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets Reload adjust the log level of a handler built by the
// caller.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: policy filter construction,
// built-in tool and MCP server registration and the health server start.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		in:        os.Stdin,
		out:       os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}
	a.level.Set(cfg.Server.LogLevel.Level())

	// ── 1. Policy filter + tool host ─────────────────────────────────────
	if err := a.initHost(ctx); err != nil {
		return nil, fmt.Errorf("app: init tools: %w", err)
	}

	// ── 2. MCP servers ───────────────────────────────────────────────────
	if err := a.initMCP(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: init mcp: %w", err)
	}

	// ── 3. Health + metrics server ───────────────────────────────────────
	if err := a.initServer(); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	a.health.SetReady(true)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) filter(cfg *config.Config) (*policy.Filter, error) {
	rules, err := cfg.Policy.RuleSet()
	if err != nil {
		return nil, err
	}
	return policy.NewFilter(rules, policy.WithMetrics(a.metrics)), nil
}

// initHost builds the policy filter and the tool host, then registers the
// currency and weather tools.
func (a *App) initHost(ctx context.Context) error {
	if a.host != nil {
		a.checkers = append(a.checkers, toolsChecker(a.host))
		return nil
	}

	f, err := a.filter(a.cfg)
	if err != nil {
		return fmt.Errorf("build policy filter: %w", err)
	}
	host := mcphost.New(mcphost.WithFilter(f), mcphost.WithMetrics(a.metrics))
	a.host = host
	a.closers = append(a.closers, func(context.Context) error { return host.Close() })

	tc := a.cfg.Tools
	rates := currency.New(
		currency.WithBaseURL(tc.ExchangeRateURL),
		currency.WithHTTPClient(tools.NewHTTPClient(tc.Timeout)),
		currency.WithRateLimit(tc.RateLimit, rateBurst),
	)
	forecasts := weather.New(
		weather.WithBaseURL(tc.WeatherURL),
		weather.WithHTTPClient(tools.NewHTTPClient(tc.Timeout)),
	)

	var builtins []tools.Tool
	builtins = append(builtins, forecasts.Tools()...)
	builtins = append(builtins, rates.Tools()...)
	for _, t := range builtins {
		if err := host.RegisterBuiltin(mcphost.BuiltinTool{Definition: t.Definition, Handler: t.Handler}); err != nil {
			return fmt.Errorf("register tool %q: %w", t.Definition.Name, err)
		}
	}
	slog.InfoContext(ctx, "registered built-in tools", "count", len(builtins), "guards", f.GuardNames())

	a.checkers = append(a.checkers, health.BreakerChecker(rates.Breaker()), toolsChecker(host))
	return nil
}

// initMCP registers every configured MCP server with the host.
func (a *App) initMCP(ctx context.Context) error {
	for _, srv := range a.cfg.MCP.Servers {
		if err := a.host.RegisterServer(ctx, srv.ServerConfig()); err != nil {
			return fmt.Errorf("register mcp server %q: %w", srv.Name, err)
		}
		slog.Info("registered MCP server", "name", srv.Name, "transport", srv.Transport)
	}
	return nil
}

// initServer starts the health and metrics server when an address is
// configured.
func (a *App) initServer() error {
	a.health = health.New(a.checkers...)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.addr = ln.Addr().String()
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "err", err)
		}
	}()
	slog.Info("health server listening", "addr", a.addr)

	// The server goes down first so probes stop before the host closes.
	a.closers = append([]func(context.Context) error{a.server.Shutdown}, a.closers...)
	return nil
}

func toolsChecker(h mcp.Host) health.Checker {
	return health.Checker{
		Name: "tools",
		Check: func(context.Context) error {
			if len(h.Tools()) == 0 {
				return errors.New("no tools registered")
			}
			return nil
		},
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Host returns the tool host.
func (a *App) Host() mcp.Host { return a.host }

// Addr returns the bound address of the health server, or "" when disabled.
func (a *App) Addr() string { return a.addr }

// Config returns the active config.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Active reports the demo that is currently running, if any.
func (a *App) Active() (RunInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info, a.active
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes the named demo and blocks until it returns. Only one demo can
// run at a time; a concurrent call fails with [ErrAlreadyRunning].
func (a *App) Run(ctx context.Context, name string) error {
	d, ok := demo.Lookup(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownDemo, name)
	}

	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.active = true
	a.info = RunInfo{Demo: name, StartedAt: time.Now()}
	cfg := a.cfg
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.active = false
		a.info = RunInfo{}
		a.mu.Unlock()
	}()

	slog.Info("demo started", "demo", name)
	err := d.Run(ctx, a.env(cfg))
	if err != nil {
		return fmt.Errorf("app: demo %s: %w", name, err)
	}
	slog.Info("demo finished", "demo", name)
	return nil
}

// env assembles the demo environment for cfg.
func (a *App) env(cfg *config.Config) demo.Env {
	runnerOpts := []chat.Option{
		chat.WithProviderName(a.providers.LLMName),
		chat.WithMetrics(a.metrics),
	}
	if cfg.Tools.MaxRounds > 0 {
		runnerOpts = append(runnerOpts, chat.WithMaxRounds(cfg.Tools.MaxRounds))
	}
	if cfg.Policy.ReportViolations {
		runnerOpts = append(runnerOpts, chat.WithViolationMode(chat.ReportViolation))
	}
	return demo.Env{
		LLM:           a.providers.LLM,
		Image:         a.providers.Image,
		Host:          a.host,
		In:            a.in,
		Out:           a.out,
		ImageProvider: a.providers.ImageName,
		Metrics:       a.metrics,
		RunnerOptions: runnerOpts,
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of a config change: the log level
// and the policy filter. It has the signature of a [config.Watcher]
// callback. A policy that fails to build keeps the current filter.
func (a *App) Reload(_, next *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PolicyChanged {
		if fs, ok := a.host.(filterSetter); ok {
			f, err := a.filter(next)
			if err != nil {
				slog.Error("policy reload failed, keeping current filter", "err", err)
				return
			}
			fs.SetFilter(f)
			slog.Info("policy filter reloaded", "guards", f.GuardNames())
		}
	}

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.health != nil {
			a.health.SetReady(false)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
