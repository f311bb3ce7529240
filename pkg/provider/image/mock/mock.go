// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/funcall/pkg/provider/image"
)

// Provider is a mock image.Provider. It returns Result (with the requested
// dimensions filled in when Result leaves them zero) or Err.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Generate. Nil yields an empty result.
	Result *image.Result

	// Err, if non-nil, is returned by Generate.
	Err error

	// Requests records every request passed to Generate.
	Requests []image.Request
}

var _ image.Provider = (*Provider)(nil)

// Generate records req and returns the configured result.
func (p *Provider) Generate(_ context.Context, req image.Request) (*image.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	res := image.Result{}
	if p.Result != nil {
		res = *p.Result
	}
	if res.Width == 0 && res.Height == 0 {
		res.Width, res.Height = req.Width, req.Height
	}
	return &res, nil
}
