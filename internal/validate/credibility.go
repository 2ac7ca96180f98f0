package validate

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sixc/internal/model"
)

// Classification methods recorded on SourceClassification.Method
const (
	MethodAuthorityRules = "authority_rules"
	MethodNeutral        = "neutral"
)

// CredibilityRules scores domains by reputation
type CredibilityRules struct {
	Rules struct {
		TLDPatterns  []TLDPattern  `yaml:"tld_patterns"`
		DomainGroups []DomainGroup `yaml:"domain_groups"`
		DefaultScore float64       `yaml:"default_score"`
	} `yaml:"credibility_rules"`
}

// TLDPattern scores every domain ending in Suffix
type TLDPattern struct {
	Suffix      string  `yaml:"suffix"`
	Score       float64 `yaml:"score"`
	Category    string  `yaml:"category"`
	Description string  `yaml:"description"`
}

// DomainGroup scores a list of known domains and their subdomains
type DomainGroup struct {
	Category    string   `yaml:"category"`
	Score       float64  `yaml:"score"`
	Description string   `yaml:"description"`
	Domains     []string `yaml:"domains"`
}

// LoadCredibilityRules reads a YAML rules file; an empty path returns the built-in rules
func LoadCredibilityRules(path string) (*CredibilityRules, error) {
	if path == "" {
		return DefaultCredibilityRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credibility rules: %w", err)
	}
	return ParseCredibilityRules(data)
}

// ParseCredibilityRules decodes YAML credibility rules
func ParseCredibilityRules(data []byte) (*CredibilityRules, error) {
	var rules CredibilityRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse credibility rules: %w", err)
	}
	return &rules, nil
}

// DefaultCredibilityRules returns the fallback rules used without a rules file
func DefaultCredibilityRules() *CredibilityRules {
	rules := &CredibilityRules{}
	rules.Rules.TLDPatterns = []TLDPattern{
		{Suffix: ".edu", Score: 0.85, Category: "academic", Description: "Educational"},
		{Suffix: ".gov", Score: 0.80, Category: "government", Description: "Government"},
		{Suffix: ".mil", Score: 0.75, Category: "government", Description: "Military"},
		{Suffix: ".int", Score: 0.80, Category: "intergovernmental", Description: "International organisations"},
	}
	rules.Rules.DomainGroups = []DomainGroup{
		{
			Category: "academic", Score: 0.90, Description: "Scholarly publishers and indexes",
			Domains: []string{"doi.org", "arxiv.org", "jstor.org", "pubmed.ncbi.nlm.nih.gov", "nature.com",
				"sciencedirect.com", "springer.com", "wiley.com", "tandfonline.com", "ssrn.com"},
		},
		{
			Category: "intergovernmental", Score: 0.85, Description: "International institutions",
			Domains: []string{"un.org", "worldbank.org", "imf.org", "oecd.org", "europa.eu", "wto.org"},
		},
		{
			Category: "news", Score: 0.70, Description: "Established news organisations",
			Domains: []string{"reuters.com", "apnews.com", "bbc.co.uk", "bbc.com", "nytimes.com",
				"theguardian.com", "ft.com", "economist.com", "washingtonpost.com", "bloomberg.com"},
		},
		{
			Category: "think_tank", Score: 0.60, Description: "Policy institutes",
			Domains: []string{"brookings.edu", "rand.org", "chathamhouse.org", "cfr.org", "csis.org"},
		},
		{
			Category: "blog", Score: 0.30, Description: "Self-published platforms",
			Domains: []string{"medium.com", "substack.com", "blogspot.com", "wordpress.com", "reddit.com"},
		},
	}
	rules.Rules.DefaultScore = 0.50
	return rules
}

// Score returns the credibility score and category of a domain
// TLD patterns are checked first, then domain groups.
func (c *CredibilityRules) Score(domain string) (float64, string) {
	domain = strings.ToLower(domain)

	for _, tld := range c.Rules.TLDPatterns {
		if strings.HasSuffix(domain, strings.ToLower(tld.Suffix)) {
			return tld.Score, tld.Category
		}
	}

	for _, group := range c.Rules.DomainGroups {
		for _, known := range group.Domains {
			if matchDomain(domain, strings.ToLower(known)) {
				return group.Score, group.Category
			}
		}
	}

	if c.Rules.DefaultScore > 0 {
		return c.Rules.DefaultScore, ""
	}
	return 0.50, ""
}

// NormalizeURL cleans a URL for source deduplication
// Lowercases scheme and host, drops www., fragments, tracking parameters and a trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for _, param := range []string{
			"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
			"fbclid", "gclid", "msclkid",
		} {
			q.Del(param)
		}
		parsed.RawQuery = q.Encode()
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String(), nil
}

// ExtractDomain returns the lowercase host of a URL without port or leading www.
func ExtractDomain(rawURL string) string {
	return hostOf(rawURL)
}

// SourceClassifier is the deterministic source classification used when no
// oracle answers: authority tier plus rule-based credibility
type SourceClassifier struct {
	authority *AuthorityClassifier
	rules     *CredibilityRules
	neutral   float64
}

// NewSourceClassifier creates a classifier; nil rules fall back to the defaults
func NewSourceClassifier(authority *AuthorityClassifier, rules *CredibilityRules, neutralConfidence float64) *SourceClassifier {
	if authority == nil {
		authority = NewAuthorityClassifier(nil)
	}
	if rules == nil {
		rules = DefaultCredibilityRules()
	}
	return &SourceClassifier{authority: authority, rules: rules, neutral: neutralConfidence}
}

// Neutral is the classification for a source nothing is known about
func (s *SourceClassifier) Neutral() model.SourceClassification {
	return model.SourceClassification{
		SourceType:       "unknown",
		InstitutionClass: "unknown",
		Confidence:       s.neutral,
		Authority:        model.TierUnknown,
		Method:           MethodNeutral,
	}
}

// Classify classifies a source from its URL or DOI
// subject is the citing document's title, used for self-reference detection.
func (s *SourceClassifier) Classify(source model.SourceRecord, subject string) model.SourceClassification {
	link := source.URL
	if link == "" && source.DOI != "" {
		link = "https://doi.org/" + source.DOI
	}
	domain := ExtractDomain(link)
	if domain == "" {
		out := s.Neutral()
		out.IsSelfReference = isSelfReference(source, subject)
		return out
	}

	tier := s.authority.Classify(link)
	score, category := s.rules.Score(domain)
	if category == "" {
		category = "unknown"
	}

	return model.SourceClassification{
		SourceType:       category,
		InstitutionClass: tier.String(),
		IsSelfReference:  isSelfReference(source, subject),
		Confidence:       model.Clamp01(score),
		Authority:        tier,
		Method:           MethodAuthorityRules,
	}
}

// isSelfReference reports whether the source's publisher is named in the citing document's title
func isSelfReference(source model.SourceRecord, subject string) bool {
	publisher := strings.ToLower(strings.TrimSpace(source.Publisher))
	if len(publisher) < 4 || subject == "" {
		return false
	}
	return strings.Contains(strings.ToLower(subject), publisher)
}
