// Package openai provides an image.Provider backed by the OpenAI Images API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/funcall/pkg/provider/image"
)

// DefaultModel is used when New is called with an empty model name.
const DefaultModel = "dall-e-3"

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
}

var _ image.Provider = (*Provider)(nil)

type config struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs an OpenAI image provider.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai image: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("openai image: prompt must not be empty")
	}

	w, h := supportedSize(p.model, req.Width, req.Height)
	params := oai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  oai.ImageModel(p.model),
		N:      param.NewOpt(int64(1)),
		Size:   oai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", w, h)),
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai image: generate: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai image: empty data in response")
	}
	img := resp.Data[0]
	return &image.Result{
		URL:           img.URL,
		B64JSON:       img.B64JSON,
		RevisedPrompt: img.RevisedPrompt,
		Width:         w,
		Height:        h,
	}, nil
}

// supportedSize maps the requested dimensions onto a size the model
// accepts, keeping the orientation.
func supportedSize(model string, w, h int) (int, int) {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "dall-e-2"):
		// Square only.
		side := max(w, h)
		switch {
		case side <= 256 && side > 0:
			return 256, 256
		case side <= 512 && side > 0:
			return 512, 512
		default:
			return 1024, 1024
		}
	case strings.HasPrefix(lower, "gpt-image"):
		return oriented(w, h, 1536, 1024)
	default:
		return oriented(w, h, 1792, 1024)
	}
}

func oriented(w, h, long, short int) (int, int) {
	switch {
	case w > h:
		return long, short
	case h > w:
		return short, long
	default:
		return 1024, 1024
	}
}
