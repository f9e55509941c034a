// Package websearch is the in-process web search adapter. Providers are
// tried in priority order (Brave when an API key is configured, then
// DuckDuckGo); the first success wins. Results are cached briefly so a
// follow-up "open link 2" does not re-query the provider.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	defaultCount    = 5
	maxCount        = 10
	searchTimeout   = 30 * time.Second
	cacheTTL        = 5 * time.Minute
	cacheMaxEntries = 64
)

// Result is one search hit in the shape downstream consumers (context
// variables, "open link N") expect.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider abstracts one search backend.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
	Name() string
}

// Config selects and configures providers.
type Config struct {
	BraveAPIKey string
	DDGEnabled  bool
}

// Client fans a query across configured providers, first success wins.
type Client struct {
	providers []Provider
	log       *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	results []Result
	expires time.Time
}

// ErrNoProviders is returned when no search backend is configured.
var ErrNoProviders = errors.New("websearch: no search providers configured")

// New builds a Client. With an empty config, DuckDuckGo is enabled as
// the zero-configuration default.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	var providers []Provider
	if cfg.BraveAPIKey != "" {
		providers = append(providers, newBraveProvider(cfg.BraveAPIKey))
	}
	if cfg.DDGEnabled || len(providers) == 0 {
		providers = append(providers, newDDGProvider())
	}
	return &Client{providers: providers, log: log, cache: map[string]cacheEntry{}}
}

// Search runs query against the provider chain, returning up to count
// results (bounded to 10, defaulting to 5).
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("websearch: empty query")
	}
	if count <= 0 {
		count = defaultCount
	}
	if count > maxCount {
		count = maxCount
	}

	key := fmt.Sprintf("%s:%d", query, count)
	c.mu.Lock()
	if e, ok := c.cache[key]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		c.log.Debug("web_search_cache_hit", "query", query)
		return e.results, nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var lastErr error
	for _, p := range c.providers {
		results, err := p.Search(ctx, query, count)
		if err != nil {
			c.log.Warn("web_search_provider_failed", "provider", p.Name(), "error", err)
			lastErr = err
			continue
		}
		if results == nil {
			results = []Result{}
		}
		c.store(key, results)
		return results, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("websearch: all providers failed: %w", lastErr)
	}
	return nil, ErrNoProviders
}

func (c *Client) store(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= cacheMaxEntries {
		for k := range c.cache {
			delete(c.cache, k)
			break
		}
	}
	c.cache[key] = cacheEntry{results: results, expires: time.Now().Add(cacheTTL)}
}
