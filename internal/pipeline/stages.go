package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/score"
	"github.com/ppiankov/sixc/internal/worker"
)

// referenceRows extracts grounded references from every merged footnote and
// pairs them with the footnote's in-text mentions
func (p *Pipeline) referenceRows(ctx context.Context, bib *extract.BibliographyExtractor, pp model.Pages, footnotes map[int]model.MergedFootnote, hits []model.InTextCitationHit) []model.StructuredReferenceRow {
	mentions := make(map[int][]model.InTextCitationHit)
	for _, h := range hits {
		if h.Number > 0 {
			mentions[h.Number] = append(mentions[h.Number], h)
		}
	}

	perFootnote := worker.Map(ctx, p.config.Concurrency.Workers, sortedFootnotes(footnotes),
		func(ctx context.Context, _ int, fn model.MergedFootnote) []model.StructuredReferenceRow {
			refs, extractor := bib.Extract(ctx, fn.Index, fn.Text, pageWindow(pp, fn.PageIndex))
			return extract.BuildReferenceRows(fn.Index, fn, refs, mentions[fn.Index], extractor)
		})

	rows := []model.StructuredReferenceRow{}
	for _, r := range perFootnote {
		rows = append(rows, r...)
	}
	return rows
}

// pageWindow joins the page and its neighbors; an unknown page has no context
func pageWindow(pp model.Pages, page int) string {
	if page < 0 || page >= len(pp) {
		return ""
	}
	lo, hi := max(0, page-1), min(len(pp)-1, page+1)
	return strings.Join(pp[lo:hi+1], "\n")
}

func (p *Pipeline) artifacts(ctx context.Context, pp model.Pages, logger *zap.Logger) []model.Artifact {
	ex := extract.NewArtifactExtractor(p.oracle, logger)
	perPage := worker.Map(ctx, p.config.Concurrency.Workers, []string(pp),
		func(ctx context.Context, i int, page string) []model.Artifact {
			return ex.ExtractPage(ctx, i, page)
		})

	out := []model.Artifact{}
	for _, a := range perPage {
		out = append(out, a...)
	}
	return out
}

// sectionClaims is the claim extraction result of one section
type sectionClaims struct {
	section model.Section
	claims  []model.Claim
}

// claims splits the body into sections, extracts claims and selects their support
func (p *Pipeline) claims(ctx context.Context, pp model.Pages, index *model.PageIndex, footnotes map[int]model.MergedFootnote, logger *zap.Logger) model.ClaimExtraction {
	cfg := p.config.Claims
	ex := extract.NewClaimExtractor(p.oracle, cfg, logger)
	sections := extract.SplitSections(pp, index.FootnoteLines, cfg.MaxSectionChars)

	perSection := worker.Map(ctx, p.config.Concurrency.Workers, sections,
		func(ctx context.Context, _ int, section model.Section) sectionClaims {
			claims := ex.Extract(ctx, section)
			for i := range claims {
				pool := extract.SupportPool(claims[i], section.Text, footnotes, cfg.PoolSize)
				ex.SelectSupport(ctx, &claims[i], pool)
			}
			return sectionClaims{section: section, claims: claims}
		})

	out := model.ClaimExtraction{Sections: sections, Claims: []model.Claim{}}
	seen := make(map[string]bool)
	for _, sc := range perSection {
		for _, c := range sc.claims {
			if seen[c.ClaimID] {
				continue
			}
			seen[c.ClaimID] = true
			out.Claims = append(out.Claims, c)
		}
	}
	if cfg.MaxClaims > 0 && len(out.Claims) > cfg.MaxClaims {
		logger.Debug("claims truncated", zap.Int("extracted", len(out.Claims)), zap.Int("max", cfg.MaxClaims))
		out.Claims = out.Claims[:cfg.MaxClaims]
	}
	return out
}

// corroborate builds the source index, enriches it and scores every claim
func (p *Pipeline) corroborate(ctx context.Context, rows []model.StructuredReferenceRow, claims []model.Claim, subject string, logger *zap.Logger) model.SixCFramework {
	cfg := p.config
	sources := score.BuildSources(rows)

	enricher := score.NewEnricher(p.classifier, score.EnricherOptions{
		Searcher:  p.searcher,
		Describer: p.describer,
		Oracle:    p.oracle,
		TopN:      cfg.Search.TopN,
		Workers:   cfg.Concurrency.Workers,
		Logger:    logger,
	})
	sources.Sources = enricher.Enrich(ctx, sources.Sources, subject)

	stance := score.NewStanceClassifier(p.oracle, cfg.Scoring.UseOracleStance, logger)
	scorer := score.NewScorer(cfg.Scoring, stance, cfg.Concurrency.Workers, logger)

	sourceList := sources.Sources
	if sourceList == nil {
		sourceList = []model.SourceRecord{}
	}
	return model.SixCFramework{
		Credibility:   model.CredibilityBlock{Sources: sourceList},
		Corroboration: scorer.Calculate(ctx, claims, sources),
	}
}
