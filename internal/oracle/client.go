package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ppiankov/sixc/internal/cache"
	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/worker"
	"go.uber.org/zap"
)

// ClientConfig bounds every call a Client makes
type ClientConfig struct {
	Model            string
	Timeout          time.Duration // Per attempt
	MaxRetries       int
	RetryBaseDelay   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	RequestsPerSec   float64
	CacheTTL         time.Duration
}

// ClientConfigFromModel converts the run configuration into client configuration
func ClientConfigFromModel(cfg model.OracleConfig, cacheTTL time.Duration) ClientConfig {
	return ClientConfig{
		Model:            cfg.Model,
		Timeout:          cfg.Timeout,
		MaxRetries:       cfg.MaxRetries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		RequestsPerSec:   cfg.RequestsPerSec,
		CacheTTL:         cacheTTL,
	}
}

// Client is the Oracle used by the pipeline
//
// Calls are cached by a hash of the full request, rate limited, retried with
// backoff, bounded by a per-attempt timeout and guarded by a circuit breaker.
type Client struct {
	backend Backend
	cache   cache.Cache
	config  ClientConfig
	limiter *worker.Limiter
	breaker *Breaker
	retry   RetryConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
}

// NewClient wraps backend; c and m may be nil
func NewClient(backend Backend, c cache.Cache, config ClientConfig, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = config.MaxRetries
	if config.RetryBaseDelay > 0 {
		retry.InitialInterval = config.RetryBaseDelay
	}

	client := &Client{
		backend:  backend,
		cache:    c,
		config:   config,
		limiter:  worker.NewLimiter(config.RequestsPerSec, 1),
		breaker:  NewBreaker(backend.Name(), config.BreakerThreshold, config.BreakerCooldown, logger),
		retry:    retry,
		logger:   logger,
		metrics:  m,
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
	client.retry.OnRetry = func(attempt int, err error) {
		logger.Debug("Retrying oracle call",
			zap.String("backend", backend.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return client
}

// Call implements Oracle
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	kind := req.Kind()
	prompt := req.Prompt()
	schema := req.Schema()
	key := cache.CacheKey("oracle", c.backend.Name(), c.config.Model, string(kind), prompt, string(schema))

	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			if resp, err := Decode(req, raw); err == nil {
				c.metrics.CacheLookup("oracle", true)
				c.metrics.OracleCall(string(kind), "cached", 0)
				c.record(kind, nil)
				return resp, nil
			}
			_ = c.cache.Delete(key)
		}
		c.metrics.CacheLookup("oracle", false)
	}

	start := time.Now()
	var (
		resp Response
		raw  json.RawMessage
	)
	err := retryWithBackoff(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, c.backend.Name()); err != nil {
			return err
		}
		return c.breaker.Execute(func() error {
			out, err := worker.Go(ctx, c.config.Timeout, func(ctx context.Context) (json.RawMessage, error) {
				return c.backend.Resolve(ctx, string(kind), prompt, schema)
			}).Await()
			if err != nil {
				if errors.Is(err, worker.ErrTimeout) {
					return ErrTimeout
				}
				return err
			}
			decoded, err := Decode(req, out)
			if err != nil {
				return err
			}
			resp, raw = decoded, out
			return nil
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.OracleCall(string(kind), outcome(err), elapsed)
		c.record(kind, err)
		c.logger.Warn("Oracle call failed",
			zap.String("kind", string(kind)),
			zap.String("backend", c.backend.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, &Error{Kind: kind, Err: err}
	}

	if c.cache != nil {
		if err := c.cache.Set(key, raw, c.config.CacheTTL); err != nil {
			c.logger.Debug("Oracle cache write failed", zap.Error(err))
		}
	}
	c.metrics.OracleCall(string(kind), "ok", elapsed)
	c.record(kind, nil)
	return resp, nil
}

// Info reports the backend and per-kind call counts for the run artifact
func (c *Client) Info() *model.OracleInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := &model.OracleInfo{
		Provider: c.backend.Name(),
		Model:    c.config.Model,
		Calls:    make(map[string]int, len(c.calls)),
		Failures: make(map[string]int, len(c.failures)),
	}
	for k, v := range c.calls {
		info.Calls[k] = v
	}
	for k, v := range c.failures {
		info.Failures[k] = v
	}
	return info
}

// BreakerState exposes the breaker state
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

func (c *Client) record(kind Kind, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures[string(kind)]++
		return
	}
	c.calls[string(kind)]++
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
