package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/funcall/internal/mcp"
	"github.com/MrWong99/funcall/internal/policy"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"image": {"openai"},
}

// apiKeyEnv maps provider names to the variable consulted when api_key is
// empty. Providers missing here read their own environment inside any-llm-go.
var apiKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A .env file next to the config and one in the working directory
// are loaded first; variables already set in the environment win.
func Load(path string) (*Config, error) {
	LoadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads each existing file with godotenv. Missing files are
// skipped; unreadable ones are logged.
func LoadDotEnv(paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			slog.Warn("config: cannot load env file", "path", abs, "err", err)
		}
	}
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields and resolves API keys from the
// environment.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Providers.LLM.Name == DefaultLLMProvider && cfg.Providers.LLM.Model == "" {
		cfg.Providers.LLM.Model = DefaultLLMModel
	}
	if cfg.Providers.Image.Name != "" && cfg.Providers.Image.Model == "" {
		cfg.Providers.Image.Model = DefaultImageModel
	}
	resolveAPIKey(&cfg.Providers.LLM)
	resolveAPIKey(&cfg.Providers.Image)
	for i := range cfg.Providers.Fallbacks {
		resolveAPIKey(&cfg.Providers.Fallbacks[i])
	}

	if cfg.Tools.ExchangeRateURL == "" {
		cfg.Tools.ExchangeRateURL = DefaultExchangeRateURL
	}
	if cfg.Tools.WeatherURL == "" {
		cfg.Tools.WeatherURL = DefaultWeatherURL
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = DefaultToolTimeout
	}
	if cfg.Tools.RateLimit == 0 {
		cfg.Tools.RateLimit = DefaultRateLimit
	}
	for i := range cfg.MCP.Servers {
		if cfg.MCP.Servers[i].Transport == "" {
			cfg.MCP.Servers[i].Transport = mcp.TransportStdio
		}
	}
	if cfg.Demo == "" {
		cfg.Demo = DefaultDemo
	}
}

func resolveAPIKey(e *ProviderEntry) {
	key := strings.TrimSpace(e.APIKey)
	switch {
	case strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}"):
		key = os.Getenv(key[2 : len(key)-1])
	case strings.HasPrefix(key, "$"):
		key = os.Getenv(key[1:])
	case key == "":
		if name, ok := apiKeyEnv[e.Name]; ok {
			key = os.Getenv(name)
		}
	}
	e.APIKey = key
}

// RuleSet builds the policy rule set described by p.
func (p PolicyConfig) RuleSet() (policy.RuleSet, error) {
	def := policy.DefaultRuleSet()
	blocked, restricted, threshold := def.BlockedCurrencies(), def.RestrictedLocations(), def.LargeAmountThreshold()
	if p.BlockedCurrencies != nil {
		blocked = p.BlockedCurrencies
	}
	if p.RestrictedLocations != nil {
		restricted = p.RestrictedLocations
	}
	if p.LargeAmountThreshold != nil {
		threshold = *p.LargeAmountThreshold
	}
	return policy.NewRuleSet(blocked, restricted, threshold)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("image", cfg.Providers.Image.Name)
	if cfg.Providers.LLM.Name == "openai" && cfg.Providers.LLM.APIKey == "" && cfg.Providers.LLM.BaseURL == "" {
		slog.Warn("providers.llm has no API key; set api_key or OPENAI_API_KEY")
	}

	if p := cfg.Policy.LargeAmountThreshold; p != nil && (*p < 0 || math.IsNaN(*p) || math.IsInf(*p, 0)) {
		errs = append(errs, fmt.Errorf("policy.large_amount_threshold %v must be a finite, non-negative number", *p))
	} else if _, err := cfg.Policy.RuleSet(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}

	for _, u := range []struct{ field, value string }{
		{"tools.exchange_rate_url", cfg.Tools.ExchangeRateURL},
		{"tools.weather_url", cfg.Tools.WeatherURL},
	} {
		if u.value == "" {
			continue
		}
		if err := validateHTTPURL(u.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.field, err))
		}
	}
	if cfg.Tools.Timeout < 0 {
		errs = append(errs, fmt.Errorf("tools.timeout %v must not be negative", cfg.Tools.Timeout))
	}
	if cfg.Tools.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("tools.max_rounds %d must not be negative", cfg.Tools.MaxRounds))
	}

	serverNamesSeen := make(map[string]int, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := serverNamesSeen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of mcp.servers[%d]", prefix, srv.Name, prev))
			}
			serverNamesSeen[srv.Name] = i
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP {
			if srv.URL == "" {
				errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
			} else if err := validateHTTPURL(srv.URL); err != nil {
				errs = append(errs, fmt.Errorf("%s.url: %w", prefix, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if known := ValidProviderNames[kind]; !slices.Contains(known, name) {
		slog.Warn("unknown provider name, may be a typo or third-party provider",
			"kind", kind,
			"name", name,
			"known", known,
		)
	}
}
