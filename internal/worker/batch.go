package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// Runner processes one document end-to-end
type Runner interface {
	RunDocument(ctx context.Context, path string) (*model.Report, error)
}

// DocumentJob represents one document run
type DocumentJob struct {
	Index   int
	Path    string
	Runner  Runner
	Limiter *Limiter
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, "batch"); err != nil {
			return &DocumentResult{Index: j.Index, Path: j.Path, Error: err}
		}
	}

	report, err := j.Runner.RunDocument(ctx, j.Path)
	if err != nil {
		return &DocumentResult{Index: j.Index, Path: j.Path, Error: err}
	}
	return &DocumentResult{Index: j.Index, Path: j.Path, Report: report}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Index  int
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many documents concurrently
// Documents share nothing but the result cache behind the Runner.
type BatchProcessor struct {
	runner      Runner
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor
// requestsPerSecond <= 0 starts documents without pacing.
func NewBatchProcessor(runner Runner, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	var limiter *Limiter
	if requestsPerSecond > 0 {
		limiter = NewLimiter(requestsPerSecond, burst)
	}
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// ProcessPaths processes documents concurrently and returns results in input order
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, path := range paths {
			pool.Submit(&DocumentJob{
				Index:   i,
				Path:    path,
				Runner:  b.runner,
				Limiter: b.limiter,
			})
		}
	}()

	out := make([]*DocumentResult, len(paths))
	for collected := 0; collected < len(paths); {
		select {
		case res := <-pool.Results():
			dr := res.(*DocumentResult)
			out[dr.Index] = dr
			collected++
		case <-ctx.Done():
			pool.Shutdown()
			for i, path := range paths {
				if out[i] == nil {
					out[i] = &DocumentResult{Index: i, Path: path, Error: ctx.Err()}
				}
			}
			return out
		}
	}
	pool.Shutdown()

	return out
}

// ProcessFile reads document paths from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocumentResult, error) {
	paths, err := ReadListFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read document list: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadListFile reads entries from a file (one per line)
func ReadListFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate entries
		if !seen[line] {
			seen[line] = true
			entries = append(entries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return entries, nil
}
