// Package currency provides the currency tools: live conversion, exchange
// rate lookup and static currency descriptions.
//
// Rates come from an exchangerate-api compatible endpoint
// (GET {base}/{FROM} returning {"rates":{"EUR":0.92,...}}). When the lookup
// fails a small built-in table of major-currency rates is used instead and
// the failure is reported in the tool output. Lookups run behind a circuit
// breaker and a client-side rate limiter so a dead or throttled API falls
// through to the table quickly.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/MrWong99/funcall/internal/mcp/tools"
	"github.com/MrWong99/funcall/internal/policy"
	"github.com/MrWong99/funcall/internal/resilience"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// DefaultBaseURL is the public exchangerate-api endpoint.
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Tool names.
const (
	ConvertCurrencyTool = "ConvertCurrency"
	GetExchangeRateTool = "GetExchangeRate"
	GetCurrencyInfoTool = "GetCurrencyInfo"
)

var fallbackRates = map[string]float64{
	"USD_EUR": 0.85,
	"USD_GBP": 0.73,
	"USD_JPY": 110.0,
	"EUR_USD": 1.18,
	"EUR_GBP": 0.86,
	"EUR_JPY": 129.0,
	"GBP_USD": 1.37,
	"GBP_EUR": 1.16,
	"GBP_JPY": 150.0,
	"JPY_USD": 0.0091,
	"JPY_EUR": 0.0077,
	"JPY_GBP": 0.0067,
}

var currencyInfo = map[string]string{
	"USD": "United States Dollar - The world's primary reserve currency",
	"EUR": "Euro - The official currency of the Eurozone",
	"GBP": "British Pound Sterling - The currency of the United Kingdom",
	"JPY": "Japanese Yen - The official currency of Japan",
}

// Service performs rate lookups. Create one with [New].
type Service struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
}

// Option is a functional option for [New].
type Option func(*Service)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for rate lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Service) {
		s.breaker = cb
	}
}

// WithRateLimit caps outgoing lookups at perSecond with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{
		baseURL: DefaultBaseURL,
		client:  tools.NewHTTPClient(10 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, o := range opts {
		o(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "exchange-rates",
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
			HalfOpenMax:  1,
			IsFailure:    isLookupFailure,
		})
	}
	return s
}

// Breaker returns the circuit breaker guarding rate lookups.
func (s *Service) Breaker() *resilience.CircuitBreaker { return s.breaker }

// amount accepts a JSON number or a numeric string such as "500" or
// "1,250.50"; models send both.
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if json.Unmarshal(data, &s) != nil {
			return fmt.Errorf("amount: want a number, got %s", data)
		}
		raw = json.Number(s)
	}
	if raw == "" {
		*a = 0
		return nil
	}
	f, ok := policy.ParseAmount(raw.String())
	if !ok {
		return fmt.Errorf("amount: %q is not a number", raw.String())
	}
	*a = amount(f)
	return nil
}

type convertArgs struct {
	Amount       amount `json:"amount" jsonschema:"The amount to convert"`
	FromCurrency string `json:"fromCurrency" jsonschema:"The source currency code (e.g., USD, EUR, GBP, JPY)"`
	ToCurrency   string `json:"toCurrency" jsonschema:"The target currency code (e.g., USD, EUR, GBP, JPY)"`
}

type exchangeRateArgs struct {
	BaseCurrency   string `json:"baseCurrency" jsonschema:"The base currency code"`
	TargetCurrency string `json:"targetCurrency" jsonschema:"The target currency code"`
}

type currencyInfoArgs struct {
	CurrencyCode string `json:"currencyCode" jsonschema:"The currency code to get information about"`
}

// Tools returns the three currency tools bound to s.
func (s *Service) Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        ConvertCurrencyTool,
				Description: "Converts an amount from one currency to another using real-time exchange rates",
				Parameters:  tools.MustSchema[convertArgs](),
			},
			Handler: func(ctx context.Context, args string) (string, error) {
				a, err := tools.Decode[convertArgs](args)
				if err != nil {
					return "", err
				}
				return s.Convert(ctx, float64(a.Amount), a.FromCurrency, a.ToCurrency), nil
			},
		},
		{
			Definition: llm.ToolDefinition{
				Name:        GetExchangeRateTool,
				Description: "Gets the current real-time exchange rate between two currencies",
				Parameters:  tools.MustSchema[exchangeRateArgs](),
			},
			Handler: func(ctx context.Context, args string) (string, error) {
				a, err := tools.Decode[exchangeRateArgs](args)
				if err != nil {
					return "", err
				}
				return s.ExchangeRate(ctx, a.BaseCurrency, a.TargetCurrency), nil
			},
		},
		{
			Definition: llm.ToolDefinition{
				Name:        GetCurrencyInfoTool,
				Description: "Gets information about a specific currency",
				Parameters:  tools.MustSchema[currencyInfoArgs](),
			},
			Handler: func(_ context.Context, args string) (string, error) {
				a, err := tools.Decode[currencyInfoArgs](args)
				if err != nil {
					return "", err
				}
				return Info(a.CurrencyCode), nil
			},
		},
	}
}

// Convert converts amount between two currencies. Lookup failures are not
// returned as errors: the result text falls back to the built-in table or
// explains why no conversion was possible.
func (s *Service) Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string) string {
	from, to := strings.ToUpper(fromCurrency), strings.ToUpper(toCurrency)
	log := slog.With("from", from, "to", to, "amount", amount)
	log.Info("converting currency")

	r, err := s.Rate(ctx, from, to)
	if err == nil {
		log.Info("conversion complete", "rate", r)
		return fmt.Sprintf("%s %s = %s %s (Real-time rate: %s)",
			formatAmount(amount), from, formatMoney(amount*r), to, formatRate(r))
	}

	log.Warn("conversion failed, using fallback", "error", err)
	if fr, ok := fallbackRates[from+"_"+to]; ok {
		return fmt.Sprintf("%s %s = %s %s (Fallback rate: %s) - API Error: %v",
			formatAmount(amount), from, formatMoney(amount*fr), to, formatRate(fr), err)
	}
	return fmt.Sprintf("Unable to convert %s to %s: %v", fromCurrency, toCurrency, err)
}

// ExchangeRate reports the rate from base to target, with the same fallback
// behaviour as [Service.Convert].
func (s *Service) ExchangeRate(ctx context.Context, baseCurrency, targetCurrency string) string {
	base, target := strings.ToUpper(baseCurrency), strings.ToUpper(targetCurrency)
	log := slog.With("base", base, "target", target)
	log.Info("getting exchange rate")

	r, err := s.Rate(ctx, base, target)
	if err == nil {
		log.Info("exchange rate retrieved", "rate", r)
		return fmt.Sprintf("1 %s = %s %s (Real-time)", base, formatRate(r), target)
	}

	log.Warn("exchange rate failed, using fallback", "error", err)
	if fr, ok := fallbackRates[base+"_"+target]; ok {
		return fmt.Sprintf("1 %s = %s %s (Fallback) - API Error: %v", base, formatRate(fr), target, err)
	}
	return fmt.Sprintf("Exchange rate not available for %s to %s: %v", baseCurrency, targetCurrency, err)
}

// Info returns a one-line description of a major currency.
func Info(code string) string {
	if info, ok := currencyInfo[strings.ToUpper(code)]; ok {
		return info
	}
	return "Information not available for currency: " + code
}

// Rate fetches the live rate from one currency code to another. Codes must
// already be upper case.
func (s *Service) Rate(ctx context.Context, from, to string) (float64, error) {
	if from == "" || to == "" {
		return 0, errors.New("currency code must not be empty")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}
	body, err := resilience.Call(s.breaker, func() ([]byte, error) {
		return s.fetch(ctx, from)
	})
	if err != nil {
		return 0, err
	}

	v := gjson.GetBytes(body, "rates."+gjson.Escape(to))
	if !v.Exists() || v.Type != gjson.Number {
		return 0, fmt.Errorf("currency %s not found in exchange rates", to)
	}
	return v.Float(), nil
}

func (s *Service) fetch(ctx context.Context, from string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+url.PathEscape(from), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON in exchange rate response")
	}
	return body, nil
}

// StatusError is returned for non-200 responses from the rate API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rate API returned %d %s", e.Code, http.StatusText(e.Code))
}

// isLookupFailure keeps client errors such as an unknown base currency from
// tripping the breaker. Throttling still counts.
func isLookupFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// formatAmount prints the caller's amount without trailing zeros.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatMoney rounds half away from zero to two decimals.
func formatMoney(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
