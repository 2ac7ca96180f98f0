package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/util"
	"go.uber.org/zap"
)

// Backend is a model provider that answers a prompt with JSON matching a schema
type Backend interface {
	// Name returns the provider name
	Name() string

	// Resolve sends one structured prompt and returns the raw JSON answer
	Resolve(ctx context.Context, step string, prompt string, schema json.RawMessage) (json.RawMessage, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds backend configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for a single HTTP exchange
	Timeout time.Duration

	Temperature float32
	MaxTokens   int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	Logger *zap.Logger
}

// ConfigFromModel converts the run configuration into backend configuration
func ConfigFromModel(cfg model.OracleConfig, httpCfg model.HTTPConfig, logger *zap.Logger) Config {
	return Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
		Logger:      logger,
	}
}

// NewBackend creates a backend based on configuration
// An empty provider returns a nil backend: the oracle is disabled.
func NewBackend(config Config) (Backend, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIBackend(config)
	case "anthropic", "claude":
		return NewAnthropicBackend(config)
	case "ollama":
		return NewOllamaBackend(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

const defaultOracleHTTPTimeout = 60 * time.Second

const systemPrompt = "You are a careful document analyst working on OCR text. " +
	"Answer with a single JSON object that matches the given schema. " +
	"Never invent text that is not present in the supplied material."

// StatusError is a non-200 answer from a provider API
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// Transient reports whether retrying may succeed
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func newHTTPClient(config Config, defaultTimeout time.Duration) *http.Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy)
}

// extractJSON pulls the outermost JSON object out of a model reply
// Models without schema enforcement sometimes wrap it in prose or code fences.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformed)
	}
	raw := json.RawMessage(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON in reply", ErrMalformed)
	}
	return raw, nil
}
