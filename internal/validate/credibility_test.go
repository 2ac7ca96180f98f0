package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sixc/internal/model"
)

func TestCredibilityRules_Score(t *testing.T) {
	rules := DefaultCredibilityRules()

	tests := []struct {
		domain   string
		score    float64
		category string
	}{
		{domain: "mit.edu", score: 0.85, category: "academic"},
		{domain: "census.gov", score: 0.80, category: "government"},
		{domain: "who.int", score: 0.80, category: "intergovernmental"},
		{domain: "doi.org", score: 0.90, category: "academic"},
		{domain: "data.worldbank.org", score: 0.85, category: "intergovernmental"},
		{domain: "reuters.com", score: 0.70, category: "news"},
		{domain: "someone.substack.com", score: 0.30, category: "blog"},
		{domain: "example.com", score: 0.50, category: ""},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			score, category := rules.Score(tt.domain)
			assert.InDelta(t, tt.score, score, 1e-9)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestLoadCredibilityRules(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		rules, err := LoadCredibilityRules("")
		require.NoError(t, err)
		assert.NotEmpty(t, rules.Rules.DomainGroups)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := []byte(`credibility_rules:
  tld_patterns:
    - suffix: ".museum"
      score: 0.7
      category: ngo
  domain_groups:
    - category: corporate
      score: 0.4
      domains: ["acme.com"]
  default_score: 0.2
`)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		rules, err := LoadCredibilityRules(path)
		require.NoError(t, err)

		score, category := rules.Score("louvre.museum")
		assert.InDelta(t, 0.7, score, 1e-9)
		assert.Equal(t, "ngo", category)

		score, category = rules.Score("shop.acme.com")
		assert.InDelta(t, 0.4, score, 1e-9)
		assert.Equal(t, "corporate", category)

		score, _ = rules.Score("elsewhere.net")
		assert.InDelta(t, 0.2, score, 1e-9)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCredibilityRules(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseCredibilityRules([]byte("credibility_rules: [unclosed"))
		assert.Error(t, err)
	})
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "HTTPS://WWW.Example.com/Report/", want: "https://example.com/Report"},
		{in: "https://example.com/a?utm_source=x&id=4#section", want: "https://example.com/a?id=4"},
		{in: "https://example.com/", want: "https://example.com"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "blog.example.com", ExtractDomain("https://blog.example.com/path"))
	assert.Equal(t, "example.com", ExtractDomain("http://www.example.com:8080/x"))
	assert.Equal(t, "", ExtractDomain(""))
}

func TestSourceClassifier_Classify(t *testing.T) {
	classifier := NewSourceClassifier(nil, nil, 0.35)

	t.Run("url source", func(t *testing.T) {
		got := classifier.Classify(model.SourceRecord{URL: "https://www.oecd.org/trade/report"}, "")
		assert.Equal(t, "intergovernmental", got.SourceType)
		assert.Equal(t, model.TierPrimary, got.Authority)
		assert.Equal(t, "primary", got.InstitutionClass)
		assert.InDelta(t, 0.85, got.Confidence, 1e-9)
		assert.Equal(t, MethodAuthorityRules, got.Method)
	})

	t.Run("doi only", func(t *testing.T) {
		got := classifier.Classify(model.SourceRecord{DOI: "10.1000/xyz123"}, "")
		assert.Equal(t, "academic", got.SourceType)
		assert.InDelta(t, 0.90, got.Confidence, 1e-9)
	})

	t.Run("no identity is neutral", func(t *testing.T) {
		got := classifier.Classify(model.SourceRecord{Title: "Annual Report"}, "")
		assert.Equal(t, MethodNeutral, got.Method)
		assert.Equal(t, "unknown", got.SourceType)
		assert.InDelta(t, 0.35, got.Confidence, 1e-9)
	})

	t.Run("self reference by publisher", func(t *testing.T) {
		source := model.SourceRecord{URL: "https://acme-institute.org/brief", Publisher: "Acme Institute"}
		got := classifier.Classify(source, "Acme Institute Annual Review 2023")
		assert.True(t, got.IsSelfReference)

		got = classifier.Classify(source, "Independent Survey of Trade")
		assert.False(t, got.IsSelfReference)
	})
}
