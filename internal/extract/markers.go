package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/sixc/internal/model"
)

const contextChars = 80

// Marker is one raw match produced by a MarkerScanner
type Marker struct {
	Start  int // byte offset within the scanned text
	Index  string
	Number int
	Style  model.CitationStyle
}

// MarkerScanner finds one family of in-text citation markers
type MarkerScanner interface {
	// Name returns the scanner name
	Name() string

	// Scan returns every marker of this family found in text
	Scan(text string) []Marker
}

// MarkerRegistry holds the scanners applied to every page
type MarkerRegistry struct {
	scanners []MarkerScanner
}

// NewMarkerRegistry creates a registry with the built-in scanners
func NewMarkerRegistry() *MarkerRegistry {
	registry := &MarkerRegistry{}
	registry.Register(texScanner{})
	registry.Register(superscriptScanner{})
	registry.Register(romanScanner{})
	registry.Register(numericScanner{})
	registry.Register(authorYearScanner{})
	return registry
}

// Register adds a scanner
func (r *MarkerRegistry) Register(scanner MarkerScanner) {
	r.scanners = append(r.scanners, scanner)
}

// Scan runs every scanner over text
func (r *MarkerRegistry) Scan(text string) []Marker {
	var markers []Marker
	for _, s := range r.scanners {
		markers = append(markers, s.Scan(text)...)
	}
	return markers
}

var defaultRegistry = NewMarkerRegistry()

// ScanMarkers extracts in-text citation hits from every page
// Lines flagged in footnoteLines are skipped; positions refer to the flattened text.
func ScanMarkers(pages model.Pages, footnoteLines []map[int]bool) []model.InTextCitationHit {
	_, offsets := pages.Flatten()
	seen := make(map[string]bool)
	var hits []model.InTextCitationHit

	for p, page := range pages {
		var skip map[int]bool
		if p < len(footnoteLines) {
			skip = footnoteLines[p]
		}
		lineStarts := lineOffsets(page)

		for _, m := range defaultRegistry.Scan(page) {
			if skip[lineAt(lineStarts, m.Start)] {
				continue
			}
			preceding := page[runeStart(page, m.Start-contextChars):m.Start]
			hit := model.InTextCitationHit{
				Index:            m.Index,
				Number:           m.Number,
				AnchorText:       anchorWord(preceding),
				PrecedingContext: strings.TrimSpace(preceding),
				Position:         offsets[p] + m.Start,
				PageIndex:        p,
				Style:            m.Style,
			}
			if key := hit.DedupeKey(); !seen[key] {
				seen[key] = true
				hits = append(hits, hit)
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].Style < hits[j].Style
	})
	return hits
}

// MarkedNumbers returns the footnote numbers referenced by bare markers in text
func MarkedNumbers(text string) map[int]bool {
	numbers := make(map[int]bool)
	for _, m := range defaultRegistry.Scan(text) {
		if m.Number > 0 {
			numbers[m.Number] = true
		}
	}
	return numbers
}

func lineOffsets(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func lineAt(starts []int, pos int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > pos }) - 1
}

// runeStart moves pos forward to the nearest rune boundary
func runeStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

// anchorWord returns the word the marker is attached to
func anchorWord(preceding string) string {
	fields := strings.Fields(preceding)
	for i := len(fields) - 1; i >= 0; i-- {
		word := strings.TrimFunc(fields[i], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			return word
		}
	}
	return ""
}

var texRe = regexp.MustCompile(`\$?\^\{\s*(\d{1,3})\s*\}\$?`)

type texScanner struct{}

func (texScanner) Name() string { return "tex" }

func (texScanner) Scan(text string) []Marker {
	var out []Marker
	for _, loc := range texRe.FindAllStringSubmatchIndex(text, -1) {
		digits := text[loc[2]:loc[3]]
		out = append(out, Marker{Start: loc[0], Index: digits, Number: atoi(digits), Style: model.StyleTexSuperscript})
	}
	return out
}

var superscriptRe = regexp.MustCompile(`[` + superscriptGlyphs + `]{1,3}`)

type superscriptScanner struct{}

func (superscriptScanner) Name() string { return "superscript" }

// Scan ignores glyph runs opening a line; those are definitions
func (superscriptScanner) Scan(text string) []Marker {
	var out []Marker
	for _, loc := range superscriptRe.FindAllStringIndex(text, -1) {
		lineStart := strings.LastIndexByte(text[:loc[0]], '\n') + 1
		if strings.TrimSpace(text[lineStart:loc[0]]) == "" {
			continue
		}
		n := SuperscriptToInt(text[loc[0]:loc[1]])
		if n <= 0 {
			continue
		}
		out = append(out, Marker{Start: loc[0], Index: strconv.Itoa(n), Number: n, Style: model.StyleFootnote})
	}
	return out
}

var romanRe = regexp.MustCompile(`\[([ivxlc]{1,7})\]`)

type romanScanner struct{}

func (romanScanner) Name() string { return "roman" }

func (romanScanner) Scan(text string) []Marker {
	var out []Marker
	for _, loc := range romanRe.FindAllStringSubmatchIndex(text, -1) {
		numeral := text[loc[2]:loc[3]]
		n := model.RomanToInt(numeral)
		if n == 0 {
			continue
		}
		out = append(out, Marker{Start: loc[0], Index: numeral, Number: n, Style: model.StyleRoman})
	}
	return out
}

var (
	numericRe = regexp.MustCompile(`\[(\d{1,3}(?:\s*[,–-]\s*\d{1,3})*)\]`)
	// an author name near a four-digit year: "Smith (2020)", "Smith et al., 2019"
	authorYearContextRe = regexp.MustCompile(`[A-Z][a-z'-]+(?: et al\.?)?,?\s+\(?(?:1[89]|20)\d{2}[a-z]?\)?`)
)

const maxRangeExpansion = 10

type numericScanner struct{}

func (numericScanner) Name() string { return "numeric" }

// Scan expands lists and short ranges; a year-bearing author context marks the style author_year
func (numericScanner) Scan(text string) []Marker {
	var out []Marker
	for _, loc := range numericRe.FindAllStringSubmatchIndex(text, -1) {
		style := model.StyleNumeric
		if authorYearContextRe.MatchString(text[runeStart(text, loc[0]-contextChars):loc[0]]) {
			style = model.StyleAuthorYear
		}
		for _, n := range expandNumberList(text[loc[2]:loc[3]]) {
			out = append(out, Marker{Start: loc[0], Index: strconv.Itoa(n), Number: n, Style: style})
		}
	}
	return out
}

func expandNumberList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		bounds := strings.FieldsFunc(part, func(r rune) bool { return r == '-' || r == '–' })
		switch len(bounds) {
		case 1:
			if n := atoi(strings.TrimSpace(bounds[0])); n > 0 {
				out = append(out, n)
			}
		case 2:
			lo, hi := atoi(strings.TrimSpace(bounds[0])), atoi(strings.TrimSpace(bounds[1]))
			if lo <= 0 || hi < lo || hi-lo > maxRangeExpansion {
				continue
			}
			for n := lo; n <= hi; n++ {
				out = append(out, n)
			}
		}
	}
	return out
}

var parentheticalRe = regexp.MustCompile(`\(([A-Z][A-Za-z'-]+)(?: et al\.)?(?: (?:and|&) [A-Z][A-Za-z'-]+)?,? ((?:1[89]|20)\d{2})[a-z]?\)`)

type authorYearScanner struct{}

func (authorYearScanner) Name() string { return "author_year" }

func (authorYearScanner) Scan(text string) []Marker {
	var out []Marker
	for _, loc := range parentheticalRe.FindAllStringSubmatchIndex(text, -1) {
		index := text[loc[2]:loc[3]] + " " + text[loc[4]:loc[5]]
		out = append(out, Marker{Start: loc[0], Index: index, Style: model.StyleAuthorYear})
	}
	return out
}
