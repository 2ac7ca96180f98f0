// Package search is the web search collaborator used to enrich cited sources
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/sixc/internal/cache"
	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/util"
	"github.com/ppiankov/sixc/internal/worker"
	"go.uber.org/zap"
)

// Searcher returns ranked results for a query
// An empty result list is a valid answer, not an error.
type Searcher interface {
	Search(ctx context.Context, query string, topN int) ([]model.SearchResult, error)
}

// Func adapts a function into a Searcher
type Func func(ctx context.Context, query string, topN int) ([]model.SearchResult, error)

// Search implements Searcher
func (f Func) Search(ctx context.Context, query string, topN int) ([]model.SearchResult, error) {
	return f(ctx, query, topN)
}

// Cached serves repeated queries from a content-addressed cache
type Cached struct {
	next    Searcher
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCached wraps next with c
func NewCached(next Searcher, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, metrics: m}
}

// Search implements Searcher
func (c *Cached) Search(ctx context.Context, query string, topN int) ([]model.SearchResult, error) {
	key := cache.CacheKey("search", strings.TrimSpace(query), strconv.Itoa(topN))

	if raw, ok := c.cache.Get(key); ok {
		var results []model.SearchResult
		if err := json.Unmarshal(raw, &results); err == nil {
			c.metrics.CacheLookup("search", true)
			return results, nil
		}
	}
	c.metrics.CacheLookup("search", false)

	results, err := c.next.Search(ctx, query, topN)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(results); err == nil {
		_ = c.cache.Set(key, raw, c.ttl)
	}
	return results, nil
}

// New builds the configured searcher and source page fetcher
// An empty provider returns a nil Searcher; the fetcher is nil when fallback is off.
func New(cfg model.Config, c cache.Cache, logger *zap.Logger, m *metrics.Metrics) (Searcher, *PageFetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpCfg := cfg.HTTP
	timeout := cfg.Search.Timeout
	if timeout == 0 {
		timeout = httpCfg.Timeout
	}
	client := util.NewHTTPClient(timeout, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy)

	var fetcher *PageFetcher
	if cfg.Search.FetchFallback {
		var robots *util.RobotsChecker
		if httpCfg.RespectRobots {
			robots = util.NewRobotsChecker(httpCfg.UserAgent, client)
		}
		fetcher = NewPageFetcher(client, httpCfg.UserAgent, httpCfg.MaxBodyBytes, robots,
			worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))
	}

	var searcher Searcher
	switch strings.ToLower(cfg.Search.Provider) {
	case "":
		return nil, fetcher, nil
	case "searxng":
		searcher = NewSearxNG(cfg.Search.BaseURL, client, httpCfg.UserAgent,
			worker.NewLimiter(cfg.Search.RequestsPerSec, 1), logger, m)
	default:
		return nil, nil, fmt.Errorf("unknown search provider: %s (supported: searxng)", cfg.Search.Provider)
	}

	if c != nil {
		searcher = NewCached(searcher, c, cfg.Cache.TTL, m)
	}
	return searcher, fetcher, nil
}
