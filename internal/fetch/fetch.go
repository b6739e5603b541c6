// Package fetch retrieves festival pages and explores linked pages by
// priority, producing the concatenated content fed to extraction.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/swingradar/festival-crawler/internal/breaker"
)

// Page is one fetched document.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// PageFetcher retrieves a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// breakerFetcher guards a PageFetcher with a circuit breaker so a failing
// site cannot pile up requests.
type breakerFetcher struct {
	inner PageFetcher
	b     *breaker.Breaker
}

// WithBreaker wraps f so every fetch runs under b.
func WithBreaker(f PageFetcher, b *breaker.Breaker) PageFetcher {
	if b == nil {
		return f
	}
	return &breakerFetcher{inner: f, b: b}
}

func (f *breakerFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	return breaker.Do(ctx, f.b, func(ctx context.Context) (Page, error) {
		return f.inner.Fetch(ctx, url)
	})
}
