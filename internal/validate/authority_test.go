package validate

import (
	"testing"

	"github.com/ppiankov/sixc/internal/model"
)

func TestAuthorityClassifier_PrimaryDomains(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains: []string{
			"legislation.gov.uk",
			"doi.org",
			"*.int",
			"*.gov.*",
		},
		SecondaryDomains: []string{
			"wikipedia.org",
		},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{
			url:      "https://legislation.gov.uk/ukpga/1998/42",
			expected: model.TierPrimary,
			desc:     "Primary domain exact match",
		},
		{
			url:      "https://www.legislation.gov.uk/statute",
			expected: model.TierPrimary,
			desc:     "Primary domain with www prefix",
		},
		{
			url:      "https://doi.org/10.1234/example",
			expected: model.TierPrimary,
			desc:     "DOI resolver",
		},
		{
			url:      "https://www.who.int/publications/report",
			expected: model.TierPrimary,
			desc:     "Wildcard TLD pattern",
		},
		{
			url:      "https://data.gov.au/dataset/imports",
			expected: model.TierPrimary,
			desc:     "Wildcard label pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_SecondaryAndTertiaryDomains(t *testing.T) {
	config := &model.AuthorityConfig{
		SecondaryDomains: []string{"wikipedia.org", "reuters.com"},
		TertiaryDomains:  []string{"medium.com"},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{url: "https://en.wikipedia.org/wiki/Laksa", expected: model.TierSecondary, desc: "Subdomain of secondary"},
		{url: "https://www.reuters.com/markets", expected: model.TierSecondary, desc: "News agency"},
		{url: "https://medium.com/@someone/post", expected: model.TierTertiary, desc: "Listed tertiary domain"},
		{url: "https://notwikipedia.org/page", expected: model.TierTertiary, desc: "Suffix without label boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_TLDHeuristics(t *testing.T) {
	classifier := NewAuthorityClassifier(&model.AuthorityConfig{})

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{url: "https://whitehouse.gov/statements", expected: model.TierPrimary, desc: ".gov TLD should be primary"},
		{url: "https://mit.edu/research", expected: model.TierPrimary, desc: ".edu TLD should be primary"},
		{url: "https://oxford.ac.uk/research", expected: model.TierPrimary, desc: ".ac.uk should be primary"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_DomainMap(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains: []string{"*.gov"},
		DomainMap: map[string]string{
			"nytimes.com":     "secondary",
			"blog.agency.gov": "tertiary",
		},
	}

	classifier := NewAuthorityClassifier(config)

	if got := classifier.Classify("https://nytimes.com/article"); got != model.TierSecondary {
		t.Errorf("Expected secondary for mapped host, got %v", got)
	}
	if got := classifier.Classify("https://blog.agency.gov/post"); got != model.TierTertiary {
		t.Errorf("Expected domain map to override primary pattern, got %v", got)
	}
}

func TestAuthorityClassifier_UnknownAndDefault(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{url: "https://randomsite.com/page", expected: model.TierTertiary, desc: "Unknown domain defaults to tertiary"},
		{url: "tourism-board.org/visit", expected: model.TierTertiary, desc: "Bare host is parsed"},
		{url: "://missing-scheme", expected: model.TierUnknown, desc: "Malformed URL is unknown"},
		{url: "", expected: model.TierUnknown, desc: "Empty URL is unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_PortHandling(t *testing.T) {
	classifier := NewAuthorityClassifier(&model.AuthorityConfig{
		PrimaryDomains: []string{"example.org"},
	})

	for _, u := range []string{"https://example.org:443/page", "http://example.org:8080/page"} {
		if got := classifier.Classify(u); got != model.TierPrimary {
			t.Errorf("Expected primary for %s, got %v", u, got)
		}
	}
}

func TestParseTierString(t *testing.T) {
	tests := []struct {
		input    string
		expected model.AuthorityTier
	}{
		{input: "primary", expected: model.TierPrimary},
		{input: "PRIMARY", expected: model.TierPrimary},
		{input: "1", expected: model.TierPrimary},
		{input: "secondary", expected: model.TierSecondary},
		{input: "2", expected: model.TierSecondary},
		{input: "tertiary", expected: model.TierTertiary},
		{input: "", expected: model.TierTertiary},
	}

	for _, tt := range tests {
		if result := parseTierString(tt.input); result != tt.expected {
			t.Errorf("Expected %v for %q, got %v", tt.expected, tt.input, result)
		}
	}
}

func TestNewAuthorityClassifier_NilConfig(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if classifier.config == nil {
		t.Fatal("Expected config to be initialized with defaults")
	}
	if got := classifier.Classify("https://arxiv.org/abs/2101.00001"); got != model.TierPrimary {
		t.Errorf("Expected default primary list to include arxiv.org, got %v", got)
	}
}
