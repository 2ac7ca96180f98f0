package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/worker"
	"go.uber.org/zap"
)

// SearxNG queries a SearxNG instance through its JSON API
type SearxNG struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *worker.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type searxngResponse struct {
	Query   string          `json:"query"`
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Engine  string  `json:"engine"`
	Score   float64 `json:"score"`
}

// NewSearxNG creates a SearxNG client; limiter and m may be nil
func NewSearxNG(baseURL string, client *http.Client, userAgent string, limiter *worker.Limiter, logger *zap.Logger, m *metrics.Metrics) *SearxNG {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearxNG{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		userAgent:  userAgent,
		limiter:    limiter,
		logger:     logger,
		metrics:    m,
	}
}

// Search implements Searcher
func (s *SearxNG) Search(ctx context.Context, query string, topN int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx, s.baseURL); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.SearchCall("error")
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		s.metrics.SearchCall("error")
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		s.metrics.SearchCall("error")
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.metrics.SearchCall("malformed")
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, model.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: strings.TrimSpace(r.Content),
		})
		if topN > 0 && len(results) == topN {
			break
		}
	}

	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	s.metrics.SearchCall(outcome)
	s.logger.Debug("Search completed", zap.String("query", query), zap.Int("results", len(results)))

	return results, nil
}
