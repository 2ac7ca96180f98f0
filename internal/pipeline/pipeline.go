// Package pipeline runs one document through every stage and assembles the report
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/pages"
	"github.com/ppiankov/sixc/internal/resolve"
	"github.com/ppiankov/sixc/internal/score"
	"github.com/ppiankov/sixc/internal/search"
	"github.com/ppiankov/sixc/internal/validate"
)

// Stage names, used for metrics and skipped_stages
const (
	StageIndex         = "index"
	StageResolve       = "resolve"
	StageCanonical     = "canonical"
	StageReferences    = "references"
	StageArtifacts     = "artifacts"
	StageClaims        = "claims"
	StageCorroboration = "corroboration"
)

const maxSubjectChars = 200

// Options carries the collaborators of a Pipeline; every field may be zero
type Options struct {
	Oracle    oracle.Oracle
	Searcher  search.Searcher
	Describer score.Describer
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Pipeline orchestrates the complete run of one document
type Pipeline struct {
	config     model.Config
	oracle     oracle.Oracle
	searcher   search.Searcher
	describer  score.Describer
	classifier *validate.SourceClassifier
	renderer   *Renderer
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg model.Config, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := validate.LoadCredibilityRules(cfg.Credibility.RulesFile)
	if err != nil {
		return nil, err
	}
	authority := validate.NewAuthorityClassifier(&cfg.Credibility.Authority)

	return &Pipeline{
		config:     cfg,
		oracle:     opts.Oracle,
		searcher:   opts.Searcher,
		describer:  opts.Describer,
		classifier: validate.NewSourceClassifier(authority, rules, cfg.Scoring.DefaultCredibility),
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// RunDocument loads path and runs it; it implements worker.Runner
func (p *Pipeline) RunDocument(ctx context.Context, path string) (*model.Report, error) {
	doc, err := pages.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return p.Run(ctx, doc)
}

// Run processes one loaded document end-to-end
// Collaborator failures degrade inside their stage; only input errors and
// cancellation are returned.
func (p *Pipeline) Run(ctx context.Context, doc *pages.Document) (*model.Report, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, pages.ErrNoPages
	}

	cfg := p.config
	workers := cfg.Concurrency.Workers
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("source", doc.Path))
	logger.Info("run started", zap.Int("pages", len(doc.Pages)))

	report := &model.Report{
		RunID:      runID,
		Source:     doc.Path,
		PageCount:  len(doc.Pages),
		Principles: model.DefaultPrinciples(),
	}

	// 1. Page index and in-text hits
	done := p.stage(StageIndex)
	index := extract.BuildPageIndex(doc.Pages, extract.IndexOptions{MaxIndexJump: cfg.Resolver.MaxIndexJump})
	hits := mergeHits(index.Hits, doc.Citations.AllHits())
	index.Hits = hits
	var external map[int]string
	if doc.Citations != nil {
		external = doc.Citations.Footnotes.Items
	}
	missing := MissingForSeen(index, hits, external)
	done()

	// 2. Missing footnote resolution
	done = p.stage(StageResolve)
	bib := extract.NewBibliographyExtractor(p.oracle, logger)
	resolver := resolve.NewResolver(doc.Pages, index, cfg.Resolver, resolve.Options{
		Oracle:       p.oracle,
		Bibliography: bib,
		Logger:       logger,
		Metrics:      p.metrics,
	})
	records := resolver.ResolveAll(ctx, missing, workers)
	done()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	// 3. Merge tiers and canonical repair
	done = p.stage(StageCanonical)
	merged := validate.Merge(index, external, records)
	var canonicalOracle oracle.Oracle
	if cfg.Canonical.UseOracle {
		canonicalOracle = p.oracle
	}
	validator := validate.NewValidator(doc.Pages, hits, canonicalOracle, cfg.Canonical, workers, logger)
	footnotes, repair := validator.Validate(ctx, merged)
	done()

	// 4. Structured references
	done = p.stage(StageReferences)
	rows := p.referenceRows(ctx, bib, doc.Pages, footnotes, hits)
	done()

	report.MissingForSeenIntext = missing
	report.FootnotesByPage = footnotesByPage(index)
	report.MissingInference = records
	report.RecoveredItems = validate.RecoveredItems(records)
	report.AllFootnoteItems = validate.Texts(footnotes)
	report.CanonicalRepair = repair
	report.StructuredReferences = rows
	report.SequenceChecks = validate.CheckSequence(index, footnotes)
	report.QualityGate = EvaluateGate(cfg.Gate, rows, missing, footnotes)
	report.Footnotes = footnotes
	report.Index = index

	var skipped []string
	if !report.QualityGate.Passed && cfg.Gate.ShortCircuit {
		skipped = []string{StageArtifacts, StageClaims, StageCorroboration}
		logger.Warn("quality gate failed, skipping later stages",
			zap.Strings("reasons", report.QualityGate.Reasons),
			zap.Strings("skipped", skipped))
	} else {
		// 5. Artifacts
		done = p.stage(StageArtifacts)
		report.Artifacts = p.artifacts(ctx, doc.Pages, logger)
		done()

		// 6. Sections, claims and support
		done = p.stage(StageClaims)
		report.ClaimExtraction = p.claims(ctx, doc.Pages, index, footnotes, logger)
		done()

		// 7. Sources, enrichment and corroboration
		done = p.stage(StageCorroboration)
		report.SixC = p.corroborate(ctx, rows, report.ClaimExtraction.Claims, Subject(doc.Pages), logger)
		done()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	if info, ok := p.oracle.(interface{ Info() *model.OracleInfo }); ok {
		report.Oracle = info.Info()
	}
	report.Summary = summarize(report, hits, skipped)
	report.GeneratedAt = time.Now().UTC()

	gate := "passed"
	if !report.QualityGate.Passed {
		gate = "failed"
	}
	p.metrics.Document(gate)
	logger.Info("run finished",
		zap.Bool("gate_passed", report.QualityGate.Passed),
		zap.Int("unresolved", report.QualityGate.UnresolvedCount),
		zap.Float64("document_score", report.Summary.DocumentScore))

	return report, nil
}

// stage starts a stage timer; the returned func records it
func (p *Pipeline) stage(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		p.metrics.Stage(name, elapsed)
		p.logger.Debug("stage finished", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	}
}

// mergeHits appends external hits that the page scan did not already produce
func mergeHits(scanned, external []model.InTextCitationHit) []model.InTextCitationHit {
	seen := make(map[string]bool, len(scanned))
	out := make([]model.InTextCitationHit, 0, len(scanned)+len(external))
	for _, group := range [][]model.InTextCitationHit{scanned, external} {
		for _, h := range group {
			key := h.DedupeKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, h)
		}
	}
	return out
}

// MissingForSeen lists footnote numbers marked in the text but defined nowhere
func MissingForSeen(index *model.PageIndex, hits []model.InTextCitationHit, external map[int]string) []int {
	defined := index.SeenPages()
	missing := make(map[int]bool)
	for _, h := range hits {
		if h.Number <= 0 {
			continue
		}
		if _, ok := defined[h.Number]; ok {
			continue
		}
		if strings.TrimSpace(external[h.Number]) != "" {
			continue
		}
		missing[h.Number] = true
	}
	return model.SortedKeys(missing)
}

func footnotesByPage(index *model.PageIndex) map[int]map[int]string {
	out := make(map[int]map[int]string)
	for p, defs := range index.Definitions {
		if len(defs) == 0 {
			continue
		}
		page := make(map[int]string, len(defs))
		for idx, def := range defs {
			page[idx] = def.BodyText
		}
		out[p] = page
	}
	return out
}

// Subject is the first non-empty line of the document, used for self-reference detection
func Subject(pp model.Pages) string {
	for _, page := range pp {
		for _, line := range strings.Split(page, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				if r := []rune(line); len(r) > maxSubjectChars {
					line = string(r[:maxSubjectChars])
				}
				return line
			}
		}
	}
	return ""
}

func summarize(report *model.Report, hits []model.InTextCitationHit, skipped []string) model.Summary {
	s := model.Summary{
		Pages:                report.PageCount,
		FootnotesFound:       len(report.AllFootnoteItems),
		IntextHits:           len(hits),
		MissingForSeenIntext: len(report.MissingForSeenIntext),
		Unresolved:           report.QualityGate.UnresolvedCount,
		Repaired:             len(report.CanonicalRepair.RepairedIndices),
		DroppedOutliers:      len(report.CanonicalRepair.DroppedOutliers),
		References:           len(report.StructuredReferences),
		Sources:              len(report.SixC.Credibility.Sources),
		Claims:               len(report.ClaimExtraction.Claims),
		DocumentScore:        report.SixC.Corroboration.Document.Score,
		SkippedStages:        skipped,
	}
	for _, rec := range report.MissingInference {
		if rec.Validated {
			s.Resolved++
		}
	}
	for _, c := range report.ClaimExtraction.Claims {
		if c.Supported {
			s.SupportedClaims++
		}
	}
	return s
}

// sortedFootnotes returns the footnotes of a map in index order
func sortedFootnotes(footnotes map[int]model.MergedFootnote) []model.MergedFootnote {
	out := make([]model.MergedFootnote, 0, len(footnotes))
	for _, idx := range model.SortedKeys(footnotes) {
		out = append(out, footnotes[idx])
	}
	return out
}
