// Package config provides the configuration schema, loader, file watcher and
// provider registry for funcall.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/funcall/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogLevel        = LogInfo
	DefaultLLMProvider     = "openai"
	DefaultLLMModel        = "gpt-4o-mini"
	DefaultImageModel      = "dall-e-3"
	DefaultExchangeRateURL = "https://api.exchangerate-api.com/v4/latest"
	DefaultWeatherURL      = "https://wttr.in"
	DefaultToolTimeout     = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultDemo            = "weather-chat"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Policy    PolicyConfig    `yaml:"policy"`
	Tools     ToolsConfig     `yaml:"tools"`
	MCP       MCPConfig       `yaml:"mcp"`

	// Demo names the demo run when the command line does not pick one.
	Demo string `yaml:"demo"`
}

// ServerConfig holds logging and the optional HTTP side server.
type ServerConfig struct {
	// ListenAddr is the address of the health and metrics server
	// (e.g., ":9090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the model backends. Each entry names a provider
// registered in the [Registry].
type ProvidersConfig struct {
	// LLM is the primary chat model.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Image is the text-to-image backend. Optional.
	Image ProviderEntry `yaml:"image"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. A value of the form $VAR or
	// ${VAR} is read from the environment; an empty value falls back to the
	// provider's usual variable (OPENAI_API_KEY for openai).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// PolicyConfig configures the invocation policy filter. Hot-reloadable.
// A nil list keeps the built-in defaults; an explicit empty list disables
// that rule.
type PolicyConfig struct {
	BlockedCurrencies   []string `yaml:"blocked_currencies"`
	RestrictedLocations []string `yaml:"restricted_locations"`

	// LargeAmountThreshold is the amount above which conversions raise an
	// advisory alert. Nil keeps the default of 100000.
	LargeAmountThreshold *float64 `yaml:"large_amount_threshold"`

	// ReportViolations hands denied calls back to the model as tool results
	// instead of aborting the request.
	ReportViolations bool `yaml:"report_violations"`
}

// ToolsConfig configures the built-in currency and weather tools.
type ToolsConfig struct {
	ExchangeRateURL string        `yaml:"exchange_rate_url"`
	WeatherURL      string        `yaml:"weather_url"`
	Timeout         time.Duration `yaml:"timeout"`

	// RateLimit caps exchange-rate lookups per second. Negative disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// MaxRounds bounds model/tool round trips per request. Zero means the
	// chat runner default.
	MaxRounds int `yaml:"max_rounds"`
}

// MCPConfig holds the list of external Model Context Protocol servers whose
// tools are offered alongside the built-in ones.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes how to connect to a single MCP tool server.
type MCPServerConfig struct {
	// Name is a unique identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio".
	Command string `yaml:"command"`

	// URL is the endpoint used when Transport is "streamable-http".
	URL string `yaml:"url"`

	// Env holds additional environment variables for stdio subprocesses.
	Env map[string]string `yaml:"env"`
}

// ServerConfig converts c to the host's registration form.
func (c MCPServerConfig) ServerConfig() mcp.ServerConfig {
	return mcp.ServerConfig{
		Name:      c.Name,
		Transport: c.Transport,
		Command:   c.Command,
		URL:       c.URL,
		Env:       c.Env,
	}
}
