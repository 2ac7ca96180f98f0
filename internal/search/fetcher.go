package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/util"
	"github.com/ppiankov/sixc/internal/worker"
	"golang.org/x/net/html"
)

// ErrDisallowed is returned when robots.txt forbids fetching a source page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// PageFetcher fetches a cited source page when search has nothing on it
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	delayed    sync.Map // host -> crawl delay applied
}

// NewPageFetcher creates a fetcher; robots and limiter may be nil
func NewPageFetcher(client *http.Client, userAgent string, maxBytes int64, robots *util.RobotsChecker, limiter *worker.Limiter) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}

	// Copy so the redirect policy does not leak into the shared client
	limited := *client
	limited.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &PageFetcher{
		httpClient: &limited,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		robots:     robots,
		limiter:    limiter,
	}
}

// FetchResult contains the fetched HTML and where it came from
type FetchResult struct {
	HTML     string
	FinalURL string
}

// Fetch retrieves HTML content from the given URL
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay := f.robots.CanFetch(ctx, rawURL)
		if !allowed {
			return nil, ErrDisallowed
		}
		if delay > 0 && f.limiter != nil {
			if parsed, err := url.Parse(rawURL); err == nil {
				if _, applied := f.delayed.LoadOrStore(parsed.Host, delay); !applied {
					f.limiter.SetRate(rawURL, float64(time.Second)/float64(delay), 1)
				}
			}
		}
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML:     string(body),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures with linear backoff
func (f *PageFetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}
		fetchSleepFunc(time.Duration(attempt) * 500 * time.Millisecond)
	}
	return nil, lastErr
}

// Describe fetches a page and turns its title and description into a search result
func (f *PageFetcher) Describe(ctx context.Context, rawURL string) (model.SearchResult, error) {
	result, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return model.SearchResult{}, err
	}

	title, description := pageSummary(result.HTML)
	if title == "" {
		title = extractSubject(result.FinalURL)
	}
	return model.SearchResult{
		Title:   title,
		URL:     result.FinalURL,
		Snippet: description,
	}, nil
}

// isRetryableFetchError reports whether a fetch error is worth another attempt
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "unexpected status: ") {
		code := strings.TrimPrefix(msg, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.HasPrefix(msg, "fetch: ")
}

// pageSummary returns the <title> and the meta description of an HTML page
func pageSummary(htmlContent string) (string, string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	var title, description, ogDescription string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				property := strings.ToLower(attr(n, "property"))
				switch {
				case name == "description" && description == "":
					description = strings.TrimSpace(attr(n, "content"))
				case property == "og:description" && ogDescription == "":
					ogDescription = strings.TrimSpace(attr(n, "content"))
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if description == "" {
		description = ogDescription
	}
	return title, description
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// extractSubject extracts a human-readable subject from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	// Extract last path segment
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	// De-slugify: replace underscores and hyphens with spaces
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")

	// Remove file extensions
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}
