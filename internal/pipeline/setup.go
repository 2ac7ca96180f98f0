package pipeline

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/cache"
	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/search"
)

// Setup builds the cache, oracle client and search collaborators from cfg and
// returns a ready pipeline plus a function releasing the cache
func Setup(ctx context.Context, cfg model.Config, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create cache: %w", err)
	}
	closeCache := func() error { return cache.Close(store) }

	opts := Options{Logger: logger, Metrics: m}

	backend, err := oracle.NewBackend(oracle.ConfigFromModel(cfg.Oracle, cfg.HTTP, logger))
	if err != nil {
		_ = closeCache()
		return nil, nil, fmt.Errorf("create oracle: %w", err)
	}
	if backend != nil {
		opts.Oracle = oracle.NewClient(backend, store, oracle.ClientConfigFromModel(cfg.Oracle, cfg.Cache.TTL), logger, m)
		logger.Info("oracle enabled", zap.String("provider", cfg.Oracle.Provider), zap.String("model", cfg.Oracle.Model))
	} else {
		logger.Info("oracle disabled, using deterministic heuristics")
	}

	searcher, fetcher, err := search.New(cfg, store, logger, m)
	if err != nil {
		_ = closeCache()
		return nil, nil, fmt.Errorf("create search: %w", err)
	}
	if searcher != nil {
		opts.Searcher = searcher
	}
	if fetcher != nil {
		opts.Describer = fetcher
	}

	p, err := NewPipeline(cfg, opts)
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}
	return p, closeCache, nil
}

// RenderReport writes the requested outputs and prints the summary
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, mdPath string, out io.Writer) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	if out != nil {
		p.renderer.RenderSummary(out, report)
	}
	return nil
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}
