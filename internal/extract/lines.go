package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/sixc/internal/model"
)

const superscriptGlyphs = "⁰¹²³⁴⁵⁶⁷⁸⁹"

var (
	// 12. Body / 12) Body / 12 Body
	digitLineRe = regexp.MustCompile(`^\s*(\d{1,3})(?:[.):\]]\s*|\s+)(\S.*)$`)
	// [12] Body
	bracketLineRe = regexp.MustCompile(`^\s*\[(\d{1,3})\]\s*(\S.*)$`)
	// ¹² Body
	superLineRe = regexp.MustCompile(`^\s*([` + superscriptGlyphs + `]{1,3})\s*(\S.*)$`)
	// iv. Body / iv) Body; a delimiter is required so prose does not match
	romanLineRe = regexp.MustCompile(`^\s*([ivxlc]{1,7})[.)]\s+(\S.*)$`)

	urlFragmentRe = regexp.MustCompile(`^[\w.~%-]*[/=?&#][\w./~%?=&#-]*$`)
)

// DefinitionLine is a line that opens a footnote definition
type DefinitionLine struct {
	Index int
	Body  string
}

// ParseDefinitionLine reports whether line starts with a footnote index token
// It applies no noise filtering; see isNoise for that.
func ParseDefinitionLine(line string) (DefinitionLine, bool) {
	if m := bracketLineRe.FindStringSubmatch(line); m != nil {
		return definition(atoi(m[1]), m[2])
	}
	if m := superLineRe.FindStringSubmatch(line); m != nil {
		return definition(SuperscriptToInt(m[1]), m[2])
	}
	if m := digitLineRe.FindStringSubmatch(line); m != nil {
		return definition(atoi(m[1]), m[2])
	}
	if m := romanLineRe.FindStringSubmatch(line); m != nil {
		return definition(model.RomanToInt(m[1]), m[2])
	}
	return DefinitionLine{}, false
}

func definition(index int, body string) (DefinitionLine, bool) {
	body = strings.TrimSpace(body)
	if index <= 0 || body == "" {
		return DefinitionLine{}, false
	}
	r, _ := utf8.DecodeRuneInString(body)
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("\"'“‘([«", r) {
		return DefinitionLine{}, false
	}
	return DefinitionLine{Index: index, Body: body}, true
}

// isNoise rejects a candidate new-index line that is more likely OCR continuation text
// prev is the last accepted index (0 when none) and prevLine the raw line before it.
func isNoise(def DefinitionLine, prev int, prevLine string, maxJump int) bool {
	if def.Index > 999 {
		return true
	}
	// Excerpts may open mid-sequence; the jump is measured only once an index is accepted.
	if maxJump > 0 && prev > 0 && def.Index > prev+maxJump {
		return true
	}

	r, _ := utf8.DecodeRuneInString(def.Body)
	if unicode.IsLower(r) {
		return true
	}
	lower := strings.ToLower(def.Body)
	if strings.HasPrefix(lower, "of the ") || strings.HasPrefix(lower, "part of ") {
		return true
	}

	return isURLArtifact(def.Body, prevLine)
}

// isURLArtifact catches digits split off a wrapped URL ("...report/\n2019/file.pdf")
func isURLArtifact(body, prevLine string) bool {
	first := strings.Fields(body)[0]
	if !strings.Contains(body, " ") && urlFragmentRe.MatchString(first) &&
		!strings.HasPrefix(strings.ToLower(first), "http") && !strings.HasPrefix(strings.ToLower(first), "www.") {
		return true
	}

	prevLine = strings.TrimSpace(prevLine)
	if prevLine == "" {
		return false
	}
	fields := strings.Fields(prevLine)
	last := fields[len(fields)-1]
	if !strings.Contains(last, "://") && !strings.HasPrefix(strings.ToLower(last), "www.") {
		return false
	}
	return strings.HasSuffix(last, "/") || strings.HasSuffix(last, "-") ||
		strings.HasSuffix(last, "=") || strings.HasSuffix(last, "_")
}

// SuperscriptToInt maps a run of superscript digit glyphs to its integer value
func SuperscriptToInt(s string) int {
	return atoi(norm.NFKC.String(s))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
