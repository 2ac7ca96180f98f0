package score

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/search"
	"github.com/ppiankov/sixc/internal/validate"
	"github.com/ppiankov/sixc/internal/worker"
)

// MethodOracle marks a classification returned by the oracle
const MethodOracle = "oracle"

// Describer turns a URL into a synthetic search result
type Describer interface {
	Describe(ctx context.Context, rawURL string) (model.SearchResult, error)
}

// Enricher attaches web results and a classification to every source
type Enricher struct {
	searcher   search.Searcher
	describer  Describer
	oracle     oracle.Oracle
	classifier *validate.SourceClassifier
	topN       int
	workers    int
	logger     *zap.Logger
}

// EnricherOptions carries the optional collaborators of an Enricher
type EnricherOptions struct {
	Searcher  search.Searcher
	Describer Describer
	Oracle    oracle.Oracle
	TopN      int
	Workers   int
	Logger    *zap.Logger
}

// NewEnricher creates an enricher; classifier is the fallback when the oracle is absent or fails
func NewEnricher(classifier *validate.SourceClassifier, opts EnricherOptions) *Enricher {
	if classifier == nil {
		classifier = validate.NewSourceClassifier(nil, nil, model.DefaultConfig().Scoring.DefaultCredibility)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 3
	}
	return &Enricher{
		searcher:   opts.Searcher,
		describer:  opts.Describer,
		oracle:     opts.Oracle,
		classifier: classifier,
		topN:       topN,
		workers:    opts.Workers,
		logger:     logger,
	}
}

// Enrich fills SearchResults and Classification of every source
// subject is the citing document's title. Collaborator failures never abort.
func (e *Enricher) Enrich(ctx context.Context, sources []model.SourceRecord, subject string) []model.SourceRecord {
	out := worker.Map(ctx, e.workers, sources, func(ctx context.Context, _ int, src model.SourceRecord) model.SourceRecord {
		src.SearchResults = e.results(ctx, src)
		src.Classification = e.classify(ctx, src, subject)
		return src
	})
	for i := range out {
		// not reached before cancellation
		if out[i].SourceID == "" {
			out[i] = sources[i]
			out[i].Classification = e.classifier.Neutral()
		}
	}
	return out
}

// Query builds the search query of a source: title and publisher, else URL, else DOI
func Query(src model.SourceRecord) string {
	if src.Title != "" {
		return strings.TrimSpace(src.Title + " " + src.Publisher)
	}
	if src.URL != "" {
		return src.URL
	}
	return src.DOI
}

func (e *Enricher) results(ctx context.Context, src model.SourceRecord) []model.SearchResult {
	var results []model.SearchResult
	if q := Query(src); q != "" && e.searcher != nil {
		found, err := e.searcher.Search(ctx, q, e.topN)
		if err != nil {
			e.logger.Warn("source search failed",
				zap.String("source_id", src.SourceID),
				zap.Error(err))
		}
		results = found
	}
	if len(results) > e.topN {
		results = results[:e.topN]
	}

	if len(results) == 0 && src.URL != "" && e.describer != nil {
		described, err := e.describer.Describe(ctx, src.URL)
		if err != nil {
			e.logger.Debug("source fetch failed",
				zap.String("source_id", src.SourceID),
				zap.String("url", src.URL),
				zap.Error(err))
			return nil
		}
		results = []model.SearchResult{described}
	}
	return results
}

func (e *Enricher) classify(ctx context.Context, src model.SourceRecord, subject string) model.SourceClassification {
	fallback := e.classifier.Classify(src, subject)
	if e.oracle == nil {
		return fallback
	}

	resp, err := oracle.Call[*oracle.ClassifySourceResponse](ctx, e.oracle, &oracle.ClassifySourceRequest{
		Subject:   subject,
		Title:     src.Title,
		URL:       src.URL,
		Domain:    src.Domain,
		Publisher: src.Publisher,
		Authors:   src.Authors,
		Results:   src.SearchResults,
	})
	if err != nil {
		e.logger.Warn("source classification failed",
			zap.String("kind", string(oracle.KindClassifySource)),
			zap.String("source_id", src.SourceID),
			zap.Error(err))
		return fallback
	}

	return model.SourceClassification{
		SourceType:       resp.SourceType,
		InstitutionClass: resp.InstitutionClass,
		IsSelfReference:  resp.IsSelfReference,
		Confidence:       model.Clamp01(resp.Confidence),
		Authority:        fallback.Authority,
		Method:           MethodOracle,
	}
}
