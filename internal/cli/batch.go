package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/pipeline"
	"github.com/ppiankov/sixc/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file>",
	Short: "Run many documents from a list file in parallel",
	Long: `Batch processes multiple documents concurrently:
- Read document paths from the list file (one per line, # comments allowed)
- Run each document end-to-end with configurable document concurrency
- Share the result cache between documents
- Write a JSON and a Markdown report per document

The command exits with status 3 when any document fails its quality gate,
and with status 1 when any document could not be processed.

Example:
  sixc batch docs.txt
  sixc batch docs.txt --concurrency 4 --output-dir ./reports
  sixc batch docs.txt --oracle ollama --timeout 2h`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", max(1, runtime.NumCPU()/2), "number of documents processed at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./sixc-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")
	addPipelineFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := buildConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  sixc batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  List file:    %s\n", file)
	fmt.Fprintf(os.Stderr, "  Documents:    %d at once\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  Oracle:       %s\n", describeOracle(cfg.Oracle))
	fmt.Fprintf(os.Stderr, "  Search:       %s\n", describeSearch(cfg.Search))
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	m := metrics.New()
	p, closeCache, err := pipeline.Setup(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			logger.Warn("close cache", zap.Error(err))
		}
	}()

	processor := worker.NewBatchProcessor(p, concurrency, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	var failures, gateFailures int
	var gateReasons []string
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		base := fmt.Sprintf("%03d-%s", result.Index+1, sanitizeFilename(result.Path))
		jsonPath := filepath.Join(outputDir, base+".json")
		mdPath := filepath.Join(outputDir, base+".md")
		if err := p.RenderReport(result.Report, jsonPath, mdPath, nil); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		gate := result.Report.QualityGate
		if !gate.Passed {
			gateFailures++
			gateReasons = append(gateReasons, fmt.Sprintf("%s: %s", result.Path, strings.Join(gate.Reasons, ", ")))
			fmt.Fprintf(os.Stderr, "! %s (gate failed: %s)\n", result.Path, strings.Join(gate.Reasons, "; "))
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s (score: %.2f)\n", result.Path, result.Report.Summary.DocumentScore)
	}
	writeMetrics(m, cfg.Output.MetricsFile, logger)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:         %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Passed:        %d\n", len(results)-failures-gateFailures)
	fmt.Fprintf(os.Stderr, "  Gate failed:   %d\n", gateFailures)
	fmt.Fprintf(os.Stderr, "  Errors:        %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:        %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return batchOutcome(file, failures, gateReasons, ctx.Err())
}

// batchOutcome maps the batch counters to the command error
// Processing errors outrank gate failures.
func batchOutcome(file string, failures int, gateReasons []string, ctxErr error) error {
	if ctxErr != nil {
		return fmt.Errorf("batch: %w", ctxErr)
	}
	if failures > 0 {
		return fmt.Errorf("%d document(s) failed", failures)
	}
	if len(gateReasons) > 0 {
		return &pipeline.GateError{Source: file, Reasons: gateReasons}
	}
	return nil
}

// sanitizeFilename turns a document path into a safe report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.Clean(s))
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	if s == "" || s == "." || s == ".." {
		return "document"
	}
	return s
}
