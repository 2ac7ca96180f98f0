package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// LinkKind classifies a link found in footnote text
type LinkKind string

const (
	LinkDOI     LinkKind = "doi"
	LinkArchive LinkKind = "archive"
	LinkWeb     LinkKind = "web"
)

// web.archive.org/web/20190101000000/https://gov.example/report
var archivedURLRe = regexp.MustCompile(`(?i)/web/\d+[a-z_]*/((?:https?://|www\.)\S+)$`)

// Link is one URL or DOI cited in a footnote
type Link struct {
	URL  string
	Raw  string // as written in the text
	Host string
	Kind LinkKind
}

// ExtractLinks returns every distinct http(s) link and DOI in text, in order of appearance
func ExtractLinks(text string) []Link {
	var links []Link
	for _, raw := range urlRe.FindAllString(text, -1) {
		raw = trimURL(raw)
		resolved := resolveURL(raw)
		if resolved == "" {
			continue
		}
		parsed, _ := url.Parse(resolved)
		links = append(links, Link{URL: resolved, Raw: raw, Host: strings.ToLower(parsed.Hostname()), Kind: classifyLinkKind(parsed)})
	}
	for _, doi := range doiRe.FindAllString(text, -1) {
		doi = strings.TrimRight(doi, ".,;:)")
		links = append(links, Link{URL: "https://doi.org/" + doi, Raw: doi, Host: "doi.org", Kind: LinkDOI})
	}
	return dedupeLinks(links)
}

// resolveURL completes scheme-less links and keeps only http/https URLs
func resolveURL(href string) string {
	if strings.HasPrefix(strings.ToLower(href), "www.") {
		href = "https://" + href
	}

	parsed, err := url.Parse(href)
	if err != nil || parsed.Host == "" {
		return ""
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	return parsed.String()
}

// classifyLinkKind determines the kind of a cited link
func classifyLinkKind(u *url.URL) LinkKind {
	host := strings.ToLower(u.Hostname())

	switch {
	case host == "doi.org" || host == "dx.doi.org":
		return LinkDOI
	case host == "web.archive.org" || host == "archive.org" || strings.HasPrefix(host, "archive."):
		return LinkArchive
	}
	return LinkWeb
}

// Original returns the captured page's URL for an archive snapshot, else the link as written
func (l Link) Original() string {
	if l.Kind == LinkArchive {
		if m := archivedURLRe.FindStringSubmatch(l.Raw); m != nil && resolveURL(m[1]) != "" {
			return m[1]
		}
	}
	return l.Raw
}

// PrimaryLink picks the link a reference is identified by
// Archive snapshots yield to any direct link; DOIs are carried separately.
func PrimaryLink(links []Link) (Link, bool) {
	var archived *Link
	for i, link := range links {
		switch link.Kind {
		case LinkDOI:
			continue
		case LinkArchive:
			if archived == nil {
				archived = &links[i]
			}
			continue
		}
		return link, true
	}
	if archived != nil {
		return *archived, true
	}
	return Link{}, false
}

// dedupeLinks removes duplicate links, ignoring a trailing slash
func dedupeLinks(links []Link) []Link {
	seen := make(map[string]bool)
	var unique []Link

	for _, l := range links {
		key := strings.TrimSuffix(strings.ToLower(l.URL), "/")
		if !seen[key] {
			seen[key] = true
			unique = append(unique, l)
		}
	}

	return unique
}
