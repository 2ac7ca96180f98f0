package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/sixc/internal/model"
)

const untitledSection = "Front matter"

var (
	numberedHeadingRe = regexp.MustCompile(`^(?:\d{1,2}(?:\.\d{1,2})*\.?|[IVX]{1,5}\.|(?i:chapter|section|part)\s+[\dIVX]+[.:]?)\s+\p{Lu}`)
	pageMarkerRe      = regexp.MustCompile(`\[\[page (\d+)\]\]`)
)

// PageMarker is the tag inserted into section text when a new page starts
// Page numbers are 1-based.
func PageMarker(pageIndex int) string {
	return fmt.Sprintf("[[page %d]]", pageIndex+1)
}

// IsHeading reports whether a body line looks like a section heading
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return len(strings.TrimLeft(line, "# ")) > 0
	}
	if len(line) < 3 || len(line) > 80 || WordCount(line) > 10 {
		return false
	}
	if strings.ContainsAny(line[len(line)-1:], ".,;:") {
		return false
	}
	if numberedHeadingRe.MatchString(line) {
		return true
	}

	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 4 && upper == letters
}

// SplitSections cuts the body text into heading-delimited sections
// Footnote lines are excluded. Sections longer than maxChars are split at page
// boundaries, then at line boundaries (0 = no limit).
func SplitSections(pages model.Pages, footnoteLines []map[int]bool, maxChars int) []model.Section {
	var sections []model.Section
	current := &model.Section{Title: untitledSection, StartPage: 0, EndPage: 0}
	var buf strings.Builder
	lastPage := -1

	flush := func() {
		current.Text = strings.TrimSpace(buf.String())
		if hasBody(current.Text) {
			sections = append(sections, splitLong(*current, maxChars)...)
		}
		buf.Reset()
		lastPage = -1
	}

	for p, page := range pages {
		var skip map[int]bool
		if p < len(footnoteLines) {
			skip = footnoteLines[p]
		}
		for n, raw := range strings.Split(page, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" || skip[n] {
				continue
			}
			if IsHeading(line) {
				flush()
				current = &model.Section{Title: strings.TrimSpace(strings.TrimLeft(line, "#")), StartPage: p, EndPage: p}
				continue
			}
			if lastPage != p {
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.WriteString(PageMarker(p))
				buf.WriteByte('\n')
				lastPage = p
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
			current.EndPage = p
		}
	}
	flush()

	return sections
}

func hasBody(text string) bool {
	return strings.TrimSpace(pageMarkerRe.ReplaceAllString(text, "")) != ""
}

func splitLong(s model.Section, maxChars int) []model.Section {
	if maxChars <= 0 || len(s.Text) <= maxChars {
		return []model.Section{s}
	}

	var parts []model.Section
	var buf strings.Builder
	page := s.StartPage
	start := s.StartPage

	emit := func() {
		if !hasBody(buf.String()) {
			buf.Reset()
			return
		}
		title := s.Title
		if len(parts) > 0 {
			title = fmt.Sprintf("%s (part %d)", s.Title, len(parts)+1)
		}
		parts = append(parts, model.Section{Title: title, StartPage: start, EndPage: page, Text: strings.TrimSpace(buf.String())})
		buf.Reset()
		start = page
	}

	for _, line := range strings.Split(s.Text, "\n") {
		if m := pageMarkerRe.FindStringSubmatch(line); m != nil {
			page = atoi(m[1]) - 1
			if buf.Len() > 0 && buf.Len()+len(line) > maxChars {
				emit()
			}
			if buf.Len() == 0 {
				start = page
			}
		} else if buf.Len()+len(line) > maxChars {
			emit()
			buf.WriteString(PageMarker(page))
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	emit()
	return parts
}

// PageOfQuote finds the page whose text contains quote, scanning the section's page markers
// Returns -1 when the quote is not present.
func PageOfQuote(sectionText, quote string) int {
	needle := Normalize(quote)
	if needle == "" {
		return -1
	}
	page := -1
	var chunk strings.Builder
	check := func() bool {
		return page >= 0 && strings.Contains(Normalize(chunk.String()), needle)
	}
	for _, line := range strings.Split(sectionText, "\n") {
		if m := pageMarkerRe.FindStringSubmatch(line); m != nil {
			if check() {
				return page
			}
			page = atoi(m[1]) - 1
			chunk.Reset()
			continue
		}
		chunk.WriteString(line)
		chunk.WriteByte(' ')
	}
	if check() {
		return page
	}
	return -1
}

// StripPageMarkers removes page tags from section text
func StripPageMarkers(text string) string {
	return strings.Join(strings.Fields(pageMarkerRe.ReplaceAllString(text, " ")), " ")
}
