package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nashra-hq/nashra-dispatch/pkg/httpclient"
)

const (
	// Supported source types.
	TypeRSS        = "rss"
	TypeYouTubeRSS = "youtube_rss"
)

// fetcherRegistry implements FetcherRegistry keyed by source type.
type fetcherRegistry struct {
	mu             sync.RWMutex
	fetchersByType map[string]Fetcher
}

// NewFetcherRegistry builds a registry for the provided fetcher implementations.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByType: make(map[string]Fetcher),
	}
	for _, f := range fetchers {
		reg.register(f)
	}
	return reg
}

func (r *fetcherRegistry) register(f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(f.Type()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByType[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its type.
func (r *fetcherRegistry) FetcherFor(cfg Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}

	typeKey := strings.ToLower(strings.TrimSpace(cfg.Type))
	if typeKey == "" {
		return nil, fmt.Errorf("source %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.fetchersByType[typeKey]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", cfg.ID, cfg.Type)
}

// DefaultHTTPClient returns a tuned HTTP client for feed fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(25 * time.Second) }

// DefaultFetcherRegistry wires up the known feed fetchers.
func DefaultFetcherRegistry(client HTTPClient) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return NewFetcherRegistry(
		NewRSSFetcher(client),
		NewYouTubeFetcher(client),
	)
}
