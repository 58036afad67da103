package sources

import (
	"context"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
	"github.com/nashra-hq/nashra-dispatch/pkg/httpclient"
)

// Fetcher retrieves the single latest item for a source. A (nil, nil) return
// means the feed currently has no entries; the caller treats that cycle as a
// no-op, not an error.
type Fetcher interface {
	Type() string
	FetchLatest(ctx context.Context, cfg Source) (*domain.Item, error)
}

// FetcherRegistry resolves the fetcher implementation for a given source config.
type FetcherRegistry interface {
	FetcherFor(cfg Source) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within sources.
type HTTPClient = httpclient.Client
