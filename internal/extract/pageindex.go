package extract

import (
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// IndexOptions tunes the page index builder
type IndexOptions struct {
	// MaxIndexJump rejects a new index more than this far past the last accepted one (0 = no limit)
	MaxIndexJump int
}

// DefaultIndexOptions mirrors the resolver defaults
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{MaxIndexJump: 25}
}

// BuildPageIndex scans every page for footnote definitions and in-text markers
// It is a pure function of its input; a page without matches yields an empty map.
func BuildPageIndex(pages model.Pages, opts IndexOptions) *model.PageIndex {
	pi := &model.PageIndex{
		Definitions:   make([]map[int]model.FootnoteDefinition, len(pages)),
		FootnoteLines: make([]map[int]bool, len(pages)),
	}

	prev := 0
	for p, page := range pages {
		defs, lines, last := scanDefinitions(page, p, prev, opts)
		pi.Definitions[p] = defs
		pi.FootnoteLines[p] = lines
		if last > 0 {
			prev = last
		}
	}

	pi.Hits = ScanMarkers(pages, pi.FootnoteLines)
	return pi
}

// scanDefinitions walks one page line by line
// Returns the definitions, the footnote line numbers, and the last accepted index.
func scanDefinitions(page string, pageIndex, prev int, opts IndexOptions) (map[int]model.FootnoteDefinition, map[int]bool, int) {
	defs := make(map[int]model.FootnoteDefinition)
	footnoteLines := make(map[int]bool)

	lines := strings.Split(page, "\n")
	current := 0 // index whose block is open
	lastOnPage := 0
	prevLine := ""

	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			current = 0
			prevLine = ""
			continue
		}

		if def, ok := ParseDefinitionLine(line); ok && def.Index > lastOnPage && !isNoise(def, prev, prevLine, opts.MaxIndexJump) {
			existing, dup := defs[def.Index]
			if !dup || len(def.Body) > len(existing.BodyText) {
				defs[def.Index] = model.FootnoteDefinition{
					Index:     def.Index,
					FirstLine: line,
					BodyText:  def.Body,
					PageIndex: pageIndex,
				}
			}
			footnoteLines[n] = true
			current = def.Index
			lastOnPage = def.Index
			prev = def.Index
			prevLine = line
			continue
		}

		if current > 0 {
			def := defs[current]
			def.BodyText = joinContinuation(def.BodyText, line)
			defs[current] = def
			footnoteLines[n] = true
		}
		prevLine = line
	}

	return defs, footnoteLines, lastOnPage
}

// joinContinuation appends a wrapped line, rejoining hyphenated words and split URLs
func joinContinuation(body, line string) string {
	switch {
	case strings.HasSuffix(body, "-") && !strings.Contains(lastField(body), "://"):
		return strings.TrimSuffix(body, "-") + line
	case strings.HasSuffix(body, "/") && strings.Contains(lastField(body), "://"):
		return body + line
	default:
		return body + " " + line
	}
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// FindNumberedLine looks for the definition of index on one page without noise filtering
// The definition runs until the next definition line or blank line.
func FindNumberedLine(page string, index int) (string, bool) {
	lines := strings.Split(page, "\n")
	for i, raw := range lines {
		def, ok := ParseDefinitionLine(strings.TrimSpace(raw))
		if !ok || def.Index != index {
			continue
		}
		body := def.Body
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" {
				break
			}
			if _, isDef := ParseDefinitionLine(next); isDef {
				break
			}
			body = joinContinuation(body, next)
		}
		return body, true
	}
	return "", false
}

// LeadingLines returns the non-indexed lines at the top of a page, up to max
// A blank line or a definition line ends the run.
func LeadingLines(page string, max int) []string {
	var out []string
	for _, raw := range strings.Split(page, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" && len(out) == 0 {
			continue
		}
		if line == "" || len(out) >= max {
			break
		}
		if _, ok := ParseDefinitionLine(line); ok {
			break
		}
		out = append(out, line)
	}
	return out
}
