package mcphost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/funcall/internal/mcp/tools"
	"github.com/MrWong99/funcall/internal/mcp/tools/currency"
	"github.com/MrWong99/funcall/internal/mcp/tools/weather"
	"github.com/MrWong99/funcall/internal/policy"
)

// newToolHost registers the real currency and weather tools against local
// HTTP stubs. The returned counters track how often each tool body ran.
func newToolHost(t *testing.T) (*Host, map[string]*atomic.Int32) {
	t.Helper()

	rates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"BTC","rates":{"EUR":0.9,"USD":1}}`))
	}))
	t.Cleanup(rates.Close)
	wttr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.TrimPrefix(r.URL.Path, "/") + ": +21°C"))
	}))
	t.Cleanup(wttr.Close)

	var all []tools.Tool
	all = append(all, currency.New(
		currency.WithBaseURL(rates.URL+"/"),
		currency.WithHTTPClient(rates.Client()),
		currency.WithRateLimit(0, 0),
	).Tools()...)
	all = append(all, weather.New(weather.WithBaseURL(wttr.URL), weather.WithHTTPClient(wttr.Client())).Tools()...)

	h, _ := newTestHost(t)
	calls := map[string]*atomic.Int32{}
	for _, tool := range all {
		n := new(atomic.Int32)
		calls[tool.Definition.Name] = n
		handler := tool.Handler
		must(t, h.RegisterBuiltin(BuiltinTool{
			Definition: tool.Definition,
			Handler: func(ctx context.Context, args string) (string, error) {
				n.Add(1)
				return handler(ctx, args)
			},
		}))
	}
	return h, calls
}

func TestExecuteTool_BuiltinToolsDenyModelPayloads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tool  string
		args  string
		field string
		value string
	}{
		{"blocked from", currency.ConvertCurrencyTool, `{"amount":1,"fromCurrency":"BTC","toCurrency":"EUR"}`, "fromCurrency", "BTC"},
		{"title case from", currency.ConvertCurrencyTool, `{"amount":1,"FromCurrency":"BTC","toCurrency":"EUR"}`, "fromCurrency", "BTC"},
		{"upper case to", currency.ConvertCurrencyTool, `{"amount":"250","fromCurrency":"USD","TOCURRENCY":"eth"}`, "toCurrency", "eth"},
		{"title case city", weather.GetWeatherTool, `{"City":"Pyongyang"}`, "city", "Pyongyang"},
		{"upper case city", weather.GetWeatherTool, `{"CITY":"downtown Tehran"}`, "city", "downtown Tehran"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, calls := newToolHost(t)

			res, err := h.ExecuteTool(context.Background(), tt.tool, tt.args)

			v, ok := policy.AsViolation(err)
			if !ok {
				t.Fatalf("ExecuteTool = %+v, %v; want policy violation", res, err)
			}
			if v.Field != tt.field || v.Value != tt.value {
				t.Errorf("violation %s=%s, want %s=%s", v.Field, v.Value, tt.field, tt.value)
			}
			if n := calls[tt.tool].Load(); n != 0 {
				t.Errorf("%s body ran %d times, want 0", tt.tool, n)
			}
		})
	}
}

func TestExecuteTool_BuiltinToolsRejectAmbiguousKeys(t *testing.T) {
	t.Parallel()

	for _, args := range []string{
		`{"amount":1,"fromCurrency":"USD","FROMCURRENCY":"BTC","toCurrency":"EUR"}`,
		`{"city":"Oslo","City":"Pyongyang"}`,
	} {
		h, calls := newToolHost(t)
		tool := currency.ConvertCurrencyTool
		if strings.Contains(args, "city") {
			tool = weather.GetWeatherTool
		}

		res, err := h.ExecuteTool(context.Background(), tool, args)
		if err != nil {
			t.Fatalf("%s: ExecuteTool: %v", args, err)
		}
		if !res.IsError || !strings.Contains(res.Content, "ambiguous") {
			t.Errorf("%s: result = %+v, want ambiguous-arguments error", args, res)
		}
		if n := calls[tool].Load(); n != 0 {
			t.Errorf("%s: body ran %d times, want 0", args, n)
		}
	}
}

func TestExecuteTool_BuiltinToolsAllowCleanCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool string
		args string
		want string
	}{
		{currency.ConvertCurrencyTool, `{"amount":"500","FromCurrency":"usd","toCurrency":"EUR"}`, "500 USD = 450.00 EUR (Real-time rate: 0.9)"},
		{weather.GetWeatherTool, `{"City":"Lisbon"}`, "Lisbon: +21°C"},
	}
	for _, tt := range tests {
		h, calls := newToolHost(t)

		res, err := h.ExecuteTool(context.Background(), tt.tool, tt.args)
		if err != nil || res.IsError || res.Content != tt.want {
			t.Errorf("%s: got %+v, %v; want %q", tt.args, res, err, tt.want)
		}
		if n := calls[tt.tool].Load(); n != 1 {
			t.Errorf("%s body ran %d times, want 1", tt.tool, n)
		}
	}
}
