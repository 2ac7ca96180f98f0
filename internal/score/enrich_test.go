package score

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/search"
)

type fakeDescriber struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDescriber) Describe(ctx context.Context, rawURL string) (model.SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	if f.err != nil {
		return model.SearchResult{}, f.err
	}
	return model.SearchResult{Title: "Fetched page", URL: rawURL, Snippet: "page text"}, nil
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "Steel Report OECD", Query(model.SourceRecord{Title: "Steel Report", Publisher: "OECD", URL: "https://x.test"}))
	assert.Equal(t, "https://x.test", Query(model.SourceRecord{URL: "https://x.test", DOI: "10.1/a"}))
	assert.Equal(t, "10.1/a", Query(model.SourceRecord{DOI: "10.1/a"}))
	assert.Equal(t, "", Query(model.SourceRecord{}))
}

func TestEnricher_SearchResultsTruncatedAndRulesClassification(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	searcher := search.Func(func(ctx context.Context, query string, topN int) ([]model.SearchResult, error) {
		mu.Lock()
		queries = append(queries, query)
		mu.Unlock()
		return []model.SearchResult{{Title: "1"}, {Title: "2"}, {Title: "3"}, {Title: "4"}}, nil
	})

	e := NewEnricher(nil, EnricherOptions{Searcher: searcher, TopN: 2, Workers: 2})
	out := e.Enrich(context.Background(), []model.SourceRecord{
		{SourceID: "a", Title: "Economic Outlook", Publisher: "OECD", URL: "https://www.oecd.org/outlook", Domain: "oecd.org"},
		{SourceID: "b", Title: "Field notes", URL: "https://someone.medium.com/notes", Domain: "someone.medium.com"},
	}, "Trade in review")

	require.Len(t, out, 2)
	assert.Len(t, out[0].SearchResults, 2)
	assert.ElementsMatch(t, []string{"Economic Outlook OECD", "Field notes"}, queries)

	assert.Equal(t, "intergovernmental", out[0].Classification.SourceType)
	assert.Equal(t, model.TierPrimary, out[0].Classification.Authority)
	assert.InDelta(t, 0.85, out[0].Classification.Confidence, 1e-9)
	assert.Equal(t, "authority_rules", out[0].Classification.Method)

	assert.Equal(t, "blog", out[1].Classification.SourceType)
	assert.InDelta(t, 0.30, out[1].Classification.Confidence, 1e-9)
}

func TestEnricher_DescriberFallback(t *testing.T) {
	empty := search.Func(func(ctx context.Context, query string, topN int) ([]model.SearchResult, error) {
		return nil, errors.New("search backend down")
	})
	describer := &fakeDescriber{}

	e := NewEnricher(nil, EnricherOptions{Searcher: empty, Describer: describer})
	out := e.Enrich(context.Background(), []model.SourceRecord{
		{SourceID: "a", URL: "https://x.test/page"},
		{SourceID: "b", Title: "No link"},
	}, "")

	assert.Equal(t, []string{"https://x.test/page"}, describer.calls)
	require.Len(t, out[0].SearchResults, 1)
	assert.Equal(t, "Fetched page", out[0].SearchResults[0].Title)
	assert.Empty(t, out[1].SearchResults)
}

func TestEnricher_DescriberFailureLeavesNoResults(t *testing.T) {
	describer := &fakeDescriber{err: errors.New("404")}
	e := NewEnricher(nil, EnricherOptions{Describer: describer})

	out := e.Enrich(context.Background(), []model.SourceRecord{{SourceID: "a", URL: "https://x.test/gone"}}, "")

	assert.Empty(t, out[0].SearchResults)
	assert.Len(t, describer.calls, 1)
}

func TestEnricher_OracleClassification(t *testing.T) {
	var seen *oracle.ClassifySourceRequest
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		seen = req.(*oracle.ClassifySourceRequest)
		return json.RawMessage(`{"source_type":"government","institution_class":"national ministry","is_self_reference":true,"confidence":0.8}`), nil
	})

	e := NewEnricher(nil, EnricherOptions{Oracle: o})
	out := e.Enrich(context.Background(), []model.SourceRecord{
		{SourceID: "a", Title: "Annual review", Publisher: "Ministry of Trade", URL: "https://trade.gov.example/review"},
	}, "Ministry of Trade annual review")

	require.NotNil(t, seen)
	assert.Equal(t, "Ministry of Trade annual review", seen.Subject)
	assert.Equal(t, "Ministry of Trade", seen.Publisher)

	cls := out[0].Classification
	assert.Equal(t, "government", cls.SourceType)
	assert.Equal(t, "national ministry", cls.InstitutionClass)
	assert.True(t, cls.IsSelfReference)
	assert.InDelta(t, 0.8, cls.Confidence, 1e-9)
	assert.Equal(t, MethodOracle, cls.Method)
}

func TestEnricher_OracleFailureFallsBackToRules(t *testing.T) {
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"source_type":"pamphlet","institution_class":"","is_self_reference":false,"confidence":0.5}`), nil
	})

	e := NewEnricher(nil, EnricherOptions{Oracle: o})
	out := e.Enrich(context.Background(), []model.SourceRecord{
		{SourceID: "a", URL: "https://arxiv.org/abs/1234"},
		{SourceID: "b"},
	}, "")

	assert.Equal(t, "academic", out[0].Classification.SourceType)
	assert.Equal(t, "authority_rules", out[0].Classification.Method)
	assert.Equal(t, "neutral", out[1].Classification.Method)
	assert.InDelta(t, model.DefaultConfig().Scoring.DefaultCredibility, out[1].Classification.Confidence, 1e-9)
}

func TestEnricher_CancelledContextKeepsSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEnricher(nil, EnricherOptions{Workers: 2})
	sources := []model.SourceRecord{{SourceID: "a", URL: "https://x.test"}, {SourceID: "b"}}
	out := e.Enrich(ctx, sources, "")

	require.Len(t, out, 2)
	for i, src := range out {
		assert.Equal(t, sources[i].SourceID, src.SourceID)
		assert.NotEmpty(t, src.Classification.Method)
	}
}
