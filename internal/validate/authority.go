package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// AuthorityClassifier classifies sources into authority tiers
type AuthorityClassifier struct {
	config    *model.AuthorityConfig
	primary   []string
	secondary []string
	tertiary  []string
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		def := model.DefaultConfig().Credibility.Authority
		config = &def
	}

	return &AuthorityClassifier{
		config:    config,
		primary:   lowerAll(config.PrimaryDomains),
		secondary: lowerAll(config.SecondaryDomains),
		tertiary:  lowerAll(config.TertiaryDomains),
	}
}

// Classify classifies a URL into an authority tier
// URLs without a host are TierUnknown; hosts matching no pattern are tertiary.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	host := hostOf(rawURL)
	if host == "" {
		return model.TierUnknown
	}

	// Explicit domain mappings win over patterns
	if tierStr, ok := a.config.DomainMap[host]; ok {
		return parseTierString(tierStr)
	}

	if matchesAny(host, a.primary) {
		return model.TierPrimary
	}
	if matchesAny(host, a.secondary) {
		return model.TierSecondary
	}
	if matchesAny(host, a.tertiary) {
		return model.TierTertiary
	}

	// Common TLDs that often indicate authority
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// hostOf returns the lowercase host of rawURL without port or leading www.
func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// matchDomain matches host against a domain pattern
// "example.org" matches the host and its subdomains, "*.gov" any host ending
// in .gov, and "*.gov.*" any host with a gov label followed by a suffix.
func matchDomain(host, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "*.") && strings.HasSuffix(pattern, ".*"):
		label := "." + strings.TrimSuffix(strings.TrimPrefix(pattern, "*."), ".*") + "."
		return strings.Contains("."+host, label)
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	default:
		return host == pattern || strings.HasSuffix(host, "."+pattern)
	}
}

func matchesAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if matchDomain(host, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	case "tertiary", "3":
		return model.TierTertiary
	default:
		return model.TierTertiary
	}
}
