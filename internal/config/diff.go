package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PolicyChanged is set when any policy field differs. The filter can be
	// swapped without a restart.
	PolicyChanged bool

	// RestartRequired lists top-level sections that changed but only take
	// effect after a restart (e.g. "providers", "mcp").
	RestartRequired []string
}

// Empty reports whether d carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PolicyChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.PolicyChanged = !policyEqual(old.Policy, new.Policy)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Tools != new.Tools {
		d.RestartRequired = append(d.RestartRequired, "tools")
	}
	if !slices.EqualFunc(old.MCP.Servers, new.MCP.Servers, mcpServerEqual) {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}
	return d
}

func policyEqual(a, b PolicyConfig) bool {
	if !slices.Equal(a.BlockedCurrencies, b.BlockedCurrencies) || (a.BlockedCurrencies == nil) != (b.BlockedCurrencies == nil) {
		return false
	}
	if !slices.Equal(a.RestrictedLocations, b.RestrictedLocations) || (a.RestrictedLocations == nil) != (b.RestrictedLocations == nil) {
		return false
	}
	if (a.LargeAmountThreshold == nil) != (b.LargeAmountThreshold == nil) {
		return false
	}
	if a.LargeAmountThreshold != nil && *a.LargeAmountThreshold != *b.LargeAmountThreshold {
		return false
	}
	return a.ReportViolations == b.ReportViolations
}

func providersEqual(a, b ProvidersConfig) bool {
	return providerEntryEqual(a.LLM, b.LLM) &&
		providerEntryEqual(a.Image, b.Image) &&
		slices.EqualFunc(a.Fallbacks, b.Fallbacks, providerEntryEqual)
}

func providerEntryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model &&
		maps.EqualFunc(a.Options, b.Options, func(x, y any) bool { return reflect.DeepEqual(x, y) })
}

func mcpServerEqual(a, b MCPServerConfig) bool {
	return a.Name == b.Name && a.Transport == b.Transport && a.Command == b.Command &&
		a.URL == b.URL && maps.Equal(a.Env, b.Env)
}
