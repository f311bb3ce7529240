// Package weather provides the GetWeather tool backed by a wttr.in style
// service returning a one-line report (GET {base}/{city}?format=3).
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/funcall/internal/mcp/tools"
	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// DefaultBaseURL is the public wttr.in endpoint.
const DefaultBaseURL = "https://wttr.in"

// GetWeatherTool is the tool name advertised to the model.
const GetWeatherTool = "GetWeather"

// Client fetches weather reports.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option is a functional option for [New].
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    tools.NewHTTPClient(10 * time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"City name"`
}

// Tools returns the GetWeather tool bound to c.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{{
		Definition: llm.ToolDefinition{
			Name:        GetWeatherTool,
			Description: "Gets the current weather for a city",
			Parameters:  tools.MustSchema[weatherArgs](),
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			a, err := tools.Decode[weatherArgs](args)
			if err != nil {
				return "", err
			}
			return c.Current(ctx, a.City)
		},
	}}
}

// Current returns the one-line weather report for city.
func (c *Client) Current(ctx context.Context, city string) (string, error) {
	if strings.TrimSpace(city) == "" {
		return "", errors.New("weather: city must not be empty")
	}
	slog.Info("getting weather", "city", city)

	u := c.baseURL + "/" + url.PathEscape(city) + "?format=3"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("weather: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("weather: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather: service returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	report := strings.TrimSpace(string(body))
	slog.Info("weather retrieved", "city", city)
	return report, nil
}
