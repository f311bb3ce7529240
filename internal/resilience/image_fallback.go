package resilience

import (
	"context"

	"github.com/MrWong99/funcall/pkg/provider/image"
)

// ImageFallback implements [image.Provider] with failover across several
// image backends.
type ImageFallback struct {
	group *FallbackGroup[image.Provider]
}

var _ image.Provider = (*ImageFallback)(nil)

// NewImageFallback creates an [ImageFallback] with primary as the preferred
// backend.
func NewImageFallback(primary image.Provider, primaryName string, cfg FallbackConfig) *ImageFallback {
	return &ImageFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another image backend.
func (f *ImageFallback) AddFallback(name string, provider image.Provider) {
	f.group.AddFallback(name, provider)
}

// Generate implements image.Provider.
func (f *ImageFallback) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	return ExecuteWithResult(f.group, func(p image.Provider) (*image.Result, error) {
		return p.Generate(ctx, req)
	})
}
