package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/pipeline"
)

var (
	outJSON        string
	outMD          string
	runTimeout     time.Duration
	workers        int
	noCache        bool
	cacheBackend   string
	noFooter       bool
	noColor        bool
	metricsFile    string
	oracleProvider string
	oracleModel    string
	searchURL      string
	noShortCircuit bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Recover footnotes and score corroboration for one document",
	Long: `Run processes one document end-to-end:
- Index footnote definitions and in-text markers page by page
- Recover footnotes that are cited but never defined
- Repair the numbering sequence and extract structured references
- Extract attributed claims and select their supporting footnotes
- Score every claim on traceability, evidence, independence, agreement,
  credibility and contradiction

<path> is a PDF, a .txt file with form-feed page breaks, a JSON page array
or a directory of per-page .txt files.

The command exits with status 3 when the quality gate fails.

Example:
  sixc run report.pdf
  sixc run pages/ --json out/report.json --md out/report.md
  sixc run report.pdf --oracle openai --oracle-model gpt-4o-mini
  sixc run report.pdf --search-url http://localhost:8888`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path")
	runCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "overall run timeout")
	addPipelineFlags(runCmd.Flags())
}

// addPipelineFlags registers the flags shared by run and batch
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.IntVar(&workers, "workers", 0, "concurrent oracle and search calls per document (default from config)")
	fs.BoolVar(&noCache, "no-cache", false, "disable the result cache")
	fs.StringVar(&cacheBackend, "cache", "", "cache backend (memory, disk, layered, sqlite, redis)")
	fs.BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	fs.BoolVar(&noColor, "no-color", false, "disable colored output")
	fs.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path")
	fs.StringVar(&oracleProvider, "oracle", "", "oracle provider (openai, anthropic, ollama)")
	fs.StringVar(&oracleModel, "oracle-model", "", "oracle model name")
	fs.StringVar(&searchURL, "search-url", "", "SearxNG base URL; enables source enrichment by search")
	fs.BoolVar(&noShortCircuit, "no-short-circuit", false, "run claim and corroboration stages even when the quality gate fails")
}

// buildConfig layers changed flags and provider env vars over the loaded config
func buildConfig(fs *pflag.FlagSet) (model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}

	if fs.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cacheBackend != "" {
		cfg.Cache.Backend = cacheBackend
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if noColor {
		cfg.Output.Color = false
	}
	if metricsFile != "" {
		cfg.Output.MetricsFile = metricsFile
	}
	if oracleProvider != "" {
		cfg.Oracle.Provider = oracleProvider
	}
	if oracleModel != "" {
		cfg.Oracle.Model = oracleModel
	}
	if searchURL != "" {
		cfg.Search.Provider = "searxng"
		cfg.Search.BaseURL = searchURL
	}
	if noShortCircuit {
		cfg.Gate.ShortCircuit = false
	}

	if err := applyOracleEnv(&cfg.Oracle); err != nil {
		return cfg, err
	}
	if !cfg.Output.Color {
		color.NoColor = true
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
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

	if verbose {
		fmt.Fprintf(os.Stderr, "Document: %s\n", path)
		fmt.Fprintf(os.Stderr, "Timeout:  %v\n", runTimeout)
		fmt.Fprintf(os.Stderr, "Oracle:   %s\n", describeOracle(cfg.Oracle))
		fmt.Fprintf(os.Stderr, "Search:   %s\n", describeSearch(cfg.Search))
		fmt.Fprintf(os.Stderr, "Cache:    %s\n", describeCache(cfg.Cache))
		fmt.Fprintln(os.Stderr)
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

	report, err := p.RunDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := p.RenderReport(report, outJSON, outMD, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	writeMetrics(m, cfg.Output.MetricsFile, logger)

	return pipeline.CheckGate(report)
}

func writeMetrics(m *metrics.Metrics, path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
	}
}

func describeOracle(cfg model.OracleConfig) string {
	if !cfg.Enabled() {
		return "disabled (deterministic heuristics)"
	}
	return cfg.Provider + "/" + cfg.Model
}

func describeSearch(cfg model.SearchConfig) string {
	if cfg.Provider == "" {
		return "disabled"
	}
	return cfg.Provider + " " + cfg.BaseURL
}

func describeCache(cfg model.CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Backend
}
