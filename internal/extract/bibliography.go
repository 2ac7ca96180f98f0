package extract

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
)

const (
	ExtractorOracle        = "oracle"
	ExtractorDeterministic = "deterministic"
)

var (
	urlRe         = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'\]]+`)
	doiRe         = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[^\s"<>]+`)
	yearRe        = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})[a-z]?\b`)
	quotedTitleRe = regexp.MustCompile(`[“"]([^”"]{4,})[”"]`)
	authorSepRe   = regexp.MustCompile(`\s*(?:;|&|\band\b)\s*`)
	// Smith, J. / Smith, John / J. Smith
	authorTokenRe = regexp.MustCompile(`^(?:\p{Lu}[\p{L}'-]+,\s*(?:\p{Lu}\.\s*)+|\p{Lu}[\p{L}'-]+,\s*\p{Lu}[\p{L}'-]+|(?:\p{Lu}\.\s*)+\p{Lu}[\p{L}'-]+)`)
)

// BibliographyExtractor turns footnote text into grounded bibliographic references
type BibliographyExtractor struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

// NewBibliographyExtractor creates an extractor; a nil oracle means deterministic only
func NewBibliographyExtractor(o oracle.Oracle, logger *zap.Logger) *BibliographyExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BibliographyExtractor{oracle: o, logger: logger}
}

// Extract returns the grounded references of one footnote and the extractor that produced them
// The oracle is tried first; the regex extractor runs when it fails or yields nothing grounded.
func (e *BibliographyExtractor) Extract(ctx context.Context, number int, text, pageContext string) ([]model.BibliographicReference, string) {
	if strings.TrimSpace(text) == "" {
		return nil, ExtractorDeterministic
	}

	if e.oracle != nil {
		resp, err := oracle.Call[*oracle.ExtractBibliographyResponse](ctx, e.oracle, &oracle.ExtractBibliographyRequest{
			FootnoteNumber: number,
			Text:           text,
			Context:        pageContext,
		})
		if err != nil {
			e.logger.Warn("bibliography oracle failed, using regex extractor",
				zap.Int("footnote", number), zap.Error(err))
		} else if refs := GroundAll(resp.References, text); len(refs) > 0 {
			return refs, ExtractorOracle
		}
	}

	return GroundAll(ExtractReferences(text), text), ExtractorDeterministic
}

// GroundAll keeps only the references grounded in text, with ungrounded fields cleared
func GroundAll(refs []model.BibliographicReference, text string) []model.BibliographicReference {
	var out []model.BibliographicReference
	for _, ref := range refs {
		if grounded, ok := GroundReference(ref, text); ok {
			out = append(out, grounded)
		}
	}
	return out
}

// ExtractReferences is the regex extractor: URL, DOI, year, authors, title, publisher
// A footnote holding several ";"-separated citations yields one reference each.
func ExtractReferences(text string) []model.BibliographicReference {
	var refs []model.BibliographicReference
	for _, part := range splitCitations(text) {
		if ref := parseReference(part); ref.URL != "" || ref.DOI != "" || ref.Year != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func splitCitations(text string) []string {
	parts := strings.Split(text, ";")
	citable := 0
	for _, p := range parts {
		if urlRe.MatchString(p) || doiRe.MatchString(p) || yearRe.MatchString(p) {
			citable++
		}
	}
	if citable < 2 {
		return []string{text}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseReference(text string) model.BibliographicReference {
	text = strings.TrimSpace(text)
	ref := model.BibliographicReference{RawReference: text}

	if link, ok := PrimaryLink(ExtractLinks(text)); ok {
		ref.URL = link.Original()
	}
	if m := doiRe.FindString(text); m != "" {
		ref.DOI = strings.TrimRight(m, ".,;:)")
	}

	rest := urlRe.ReplaceAllString(text, " ")
	if ref.DOI != "" {
		rest = strings.Replace(rest, ref.DOI, " ", 1)
	}

	yearLoc := yearRe.FindStringSubmatchIndex(rest)
	if yearLoc != nil {
		ref.Year = rest[yearLoc[2]:yearLoc[3]]
	}

	ref.Authors = parseAuthors(rest, yearLoc)

	if m := quotedTitleRe.FindStringSubmatch(rest); m != nil {
		ref.Title = strings.TrimRight(strings.TrimSpace(m[1]), ",.")
	} else {
		ref.Title, ref.PublisherOrSource = titleAndVenue(rest, yearLoc, len(ref.Authors) > 0)
	}
	return ref
}

// parseAuthors reads the author segment before the year, or before the first full stop
func parseAuthors(text string, yearLoc []int) []string {
	segment := text
	if yearLoc != nil {
		segment = text[:yearLoc[0]]
	} else if i := strings.Index(text, ". "); i > 0 {
		segment = text[:i+1]
	}
	segment = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(segment), "(,"))
	if segment == "" || WordCount(segment) > 12 {
		return nil
	}

	var authors []string
	for _, chunk := range authorSepRe.Split(segment, -1) {
		chunk = strings.TrimSpace(strings.TrimPrefix(chunk, ","))
		if m := authorTokenRe.FindString(chunk); m != "" {
			authors = append(authors, strings.TrimSpace(m))
		}
	}
	return authors
}

// titleAndVenue takes the sentence after the author/year block as the title and the next one as the venue
func titleAndVenue(text string, yearLoc []int, hasAuthors bool) (string, string) {
	rest := text
	if yearLoc != nil {
		rest = text[yearLoc[1]:]
	} else if hasAuthors {
		if i := strings.Index(text, ". "); i > 0 {
			rest = text[i+2:]
		}
	}
	rest = strings.TrimLeft(rest, ").,: ")

	var sentences []string
	for _, s := range strings.Split(rest, ". ") {
		s = strings.Trim(strings.TrimSpace(s), ".,;:")
		if WordCount(s) > 0 {
			sentences = append(sentences, s)
		}
	}
	title, venue := "", ""
	if len(sentences) > 0 && WordCount(sentences[0]) <= 30 {
		title = sentences[0]
	}
	if len(sentences) > 1 && WordCount(sentences[1]) <= 12 {
		venue = sentences[1]
	}
	return title, venue
}

func trimURL(u string) string {
	u = strings.TrimRight(u, ".,;:")
	if strings.HasSuffix(u, ")") && !strings.Contains(u, "(") {
		u = strings.TrimSuffix(u, ")")
	}
	return u
}

// GroundReference clears every field not textually present in text
// The reference survives only when year plus an author, a URL, a DOI or the raw span is grounded.
func GroundReference(ref model.BibliographicReference, text string) (model.BibliographicReference, bool) {
	haystack := Normalize(text)
	tokens := make(map[string]bool)
	for _, t := range Tokens(text) {
		tokens[t] = true
	}
	contains := func(s string) bool {
		s = Normalize(s)
		return s != "" && strings.Contains(haystack, s)
	}

	out := model.BibliographicReference{}

	if contains(ref.URL) || contains(strings.TrimSuffix(ref.URL, "/")) || contains(stripScheme(ref.URL)) {
		out.URL = strings.TrimSpace(ref.URL)
	}
	if contains(ref.DOI) {
		out.DOI = strings.TrimSpace(ref.DOI)
	}
	if y := strings.TrimSpace(ref.Year); y != "" && tokens[strings.ToLower(y)] {
		out.Year = y
	}
	for _, a := range ref.Authors {
		if authorGrounded(a, tokens) {
			out.Authors = append(out.Authors, strings.TrimSpace(a))
		}
	}
	if phraseGrounded(ref.Title, haystack, tokens) {
		out.Title = strings.TrimSpace(ref.Title)
	}
	if phraseGrounded(ref.PublisherOrSource, haystack, tokens) {
		out.PublisherOrSource = strings.TrimSpace(ref.PublisherOrSource)
	}
	if contains(ref.RawReference) {
		out.RawReference = strings.TrimSpace(ref.RawReference)
	}

	ok := (out.Year != "" && len(out.Authors) > 0) || out.URL != "" || out.DOI != "" || out.RawReference != ""
	return out, ok
}

func stripScheme(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return strings.TrimSuffix(u[i+3:], "/")
	}
	return u
}

// authorGrounded requires the surname, taken as the longest name token, to appear in the text
func authorGrounded(author string, tokens map[string]bool) bool {
	surname := ""
	for _, t := range Tokens(author) {
		if len([]rune(t)) > len([]rune(surname)) {
			surname = t
		}
	}
	return len([]rune(surname)) >= 2 && tokens[surname]
}

// phraseGrounded accepts a verbatim match or at least 80% of the content tokens
func phraseGrounded(phrase, haystack string, tokens map[string]bool) bool {
	norm := Normalize(phrase)
	if norm == "" {
		return false
	}
	if strings.Contains(haystack, norm) {
		return true
	}
	content := ContentTokens(phrase)
	if len(content) == 0 {
		return false
	}
	hit := 0
	for t := range content {
		if tokens[t] {
			hit++
		}
	}
	return float64(hit)/float64(len(content)) >= 0.8
}

// ReferenceConfidence scores how complete a reference row is
func ReferenceConfidence(ref model.BibliographicReference, hasMention bool) float64 {
	score := 0.4
	if ref.URL != "" {
		score += 0.15
	}
	if ref.DOI != "" {
		score += 0.1
	}
	if ref.Year != "" {
		score += 0.1
	}
	if len(ref.Authors) > 0 {
		score += 0.1
	}
	if ref.Title != "" {
		score += 0.1
	}
	if hasMention {
		score += 0.05
	}
	return model.Clamp01(score)
}

// BuildReferenceRows pairs every in-text mention of a footnote with every reference it holds
// Footnotes never mentioned in text yield definition_only rows.
func BuildReferenceRows(number int, fn model.MergedFootnote, refs []model.BibliographicReference, mentions []model.InTextCitationHit, extractor string) []model.StructuredReferenceRow {
	var rows []model.StructuredReferenceRow
	if len(mentions) == 0 {
		for _, ref := range refs {
			rows = append(rows, model.StructuredReferenceRow{
				FootnoteNumber: number,
				CitationType:   "definition_only",
				PageIndex:      fn.PageIndex,
				DefinitionPage: fn.PageIndex,
				Reference:      ref,
				FootnoteText:   fn.Text,
				Extractor:      extractor,
				Confidence:     ReferenceConfidence(ref, false),
			})
		}
		return rows
	}

	for _, hit := range mentions {
		for _, ref := range refs {
			rows = append(rows, model.StructuredReferenceRow{
				FootnoteNumber: number,
				CitationType:   "in_text_marker",
				CitationStyle:  hit.Style,
				PageIndex:      hit.PageIndex,
				DefinitionPage: fn.PageIndex,
				MentionContext: hit.PrecedingContext,
				Reference:      ref,
				FootnoteText:   fn.Text,
				Extractor:      extractor,
				Confidence:     ReferenceConfidence(ref, true),
			})
		}
	}
	return rows
}
