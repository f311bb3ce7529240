package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/funcall/internal/resilience"
)

// rateServer serves body for every request and counts hits and paths.
func rateServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var hits atomic.Int32
	var lastPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &lastPath
}

func newTestService(srv *httptest.Server) *Service {
	return New(WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()), WithRateLimit(0, 0))
}

const usdRates = `{"base":"USD","rates":{"USD":1,"EUR":0.92,"GBP":0.79,"JPY":151.3}}`

func TestConvert_LiveRate(t *testing.T) {
	t.Parallel()
	srv, _, path := rateServer(t, http.StatusOK, usdRates)
	s := newTestService(srv)

	got := s.Convert(context.Background(), 500, "usd", "eur")
	want := "500 USD = 460.00 EUR (Real-time rate: 0.92)"
	if got != want {
		t.Errorf("Convert = %q, want %q", got, want)
	}
	if p := path.Load(); p != "/USD" {
		t.Errorf("path = %v, want /USD", p)
	}
}

func TestConvert_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		from   string
		to     string
		want   string
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			from:   "USD", to: "EUR",
			want: "500 USD = 425.00 EUR (Fallback rate: 0.85) - API Error: rate API returned 500 Internal Server Error",
		},
		{
			name:   "missing target",
			status: http.StatusOK,
			body:   `{"rates":{"GBP":0.79}}`,
			from:   "usd", to: "eur",
			want: "500 USD = 425.00 EUR (Fallback rate: 0.85) - API Error: currency EUR not found in exchange rates",
		},
		{
			name:   "no fallback pair",
			status: http.StatusInternalServerError,
			from:   "usd", to: "chf",
			want: "Unable to convert usd to chf: rate API returned 500 Internal Server Error",
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `{"rates":`,
			from:   "JPY", to: "USD",
			want: "500 JPY = 4.55 USD (Fallback rate: 0.0091) - API Error: invalid JSON in exchange rate response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _, _ := rateServer(t, tt.status, tt.body)
			got := newTestService(srv).Convert(context.Background(), 500, tt.from, tt.to)
			if got != tt.want {
				t.Errorf("Convert = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExchangeRate(t *testing.T) {
	t.Parallel()

	srv, _, _ := rateServer(t, http.StatusOK, usdRates)
	if got := newTestService(srv).ExchangeRate(context.Background(), "usd", "jpy"); got != "1 USD = 151.3 JPY (Real-time)" {
		t.Errorf("live = %q", got)
	}

	down, _, _ := rateServer(t, http.StatusBadGateway, "")
	s := newTestService(down)
	if got := s.ExchangeRate(context.Background(), "GBP", "EUR"); got != "1 GBP = 1.16 EUR (Fallback) - API Error: rate API returned 502 Bad Gateway" {
		t.Errorf("fallback = %q", got)
	}
	if got := s.ExchangeRate(context.Background(), "AUD", "NZD"); !strings.HasPrefix(got, "Exchange rate not available for AUD to NZD: ") {
		t.Errorf("unavailable = %q", got)
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"usd": "United States Dollar - The world's primary reserve currency",
		"EUR": "Euro - The official currency of the Eurozone",
		"gbp": "British Pound Sterling - The currency of the United Kingdom",
		"JPY": "Japanese Yen - The official currency of Japan",
		"btc": "Information not available for currency: btc",
	}
	for in, want := range tests {
		if got := Info(in); got != want {
			t.Errorf("Info(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRate_BreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()
	srv, hits, _ := rateServer(t, http.StatusServiceUnavailable, "")
	s := newTestService(srv)

	for range 5 {
		_ = s.Convert(context.Background(), 1, "USD", "EUR")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3 before the breaker opens", got)
	}
	if st := s.Breaker().State(); st != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", st)
	}
}

func TestRate_ClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()
	srv, hits, _ := rateServer(t, http.StatusNotFound, `{"result":"error"}`)
	s := newTestService(srv)

	for range 5 {
		_ = s.Convert(context.Background(), 1, "XYZ", "EUR")
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("server hits = %d, want 5", got)
	}
}

func TestRate_EmptyCode(t *testing.T) {
	t.Parallel()
	srv, hits, _ := rateServer(t, http.StatusOK, usdRates)
	if _, err := newTestService(srv).Rate(context.Background(), "", "EUR"); err == nil {
		t.Error("expected error for empty code")
	}
	if hits.Load() != 0 {
		t.Error("empty code reached the API")
	}
}

func TestTools(t *testing.T) {
	t.Parallel()
	srv, _, _ := rateServer(t, http.StatusOK, usdRates)
	ts := newTestService(srv).Tools()

	byName := map[string]func(context.Context, string) (string, error){}
	for _, tool := range ts {
		if tool.Definition.Parameters["type"] != "object" {
			t.Errorf("%s parameters = %v", tool.Definition.Name, tool.Definition.Parameters)
		}
		byName[tool.Definition.Name] = tool.Handler
	}
	if len(byName) != 3 {
		t.Fatalf("tools = %v", byName)
	}

	ctx := context.Background()
	tests := []struct {
		tool string
		args string
		want string
	}{
		{ConvertCurrencyTool, `{"amount":500,"fromCurrency":"USD","toCurrency":"GBP"}`, "500 USD = 395.00 GBP (Real-time rate: 0.79)"},
		{ConvertCurrencyTool, `{"amount":"500","fromCurrency":"USD","toCurrency":"GBP"}`, "500 USD = 395.00 GBP (Real-time rate: 0.79)"},
		{ConvertCurrencyTool, `{"amount":"1,000","fromCurrency":"USD","toCurrency":"GBP"}`, "1000 USD = 790.00 GBP (Real-time rate: 0.79)"},
		{GetExchangeRateTool, `{"baseCurrency":"usd","targetCurrency":"eur"}`, "1 USD = 0.92 EUR (Real-time)"},
		{GetCurrencyInfoTool, `{"currencyCode":"jpy"}`, "Japanese Yen - The official currency of Japan"},
	}
	for _, tt := range tests {
		got, err := byName[tt.tool](ctx, tt.args)
		if err != nil || got != tt.want {
			t.Errorf("%s(%s) = %q, %v; want %q", tt.tool, tt.args, got, err, tt.want)
		}
	}

	for _, bad := range []string{`{"amount":`, `{"amount":"lots","fromCurrency":"USD","toCurrency":"GBP"}`, `{"amount":true}`} {
		if _, err := byName[ConvertCurrencyTool](ctx, bad); err == nil {
			t.Errorf("%s: expected invalid arguments error", bad)
		}
	}
}
