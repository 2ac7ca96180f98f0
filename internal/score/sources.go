// Package score turns structured references into deduplicated sources and
// scores every claim against them
package score

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/validate"
)

var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/sixc/sources"))

// SourceIndex is the deduplicated source table of one document
type SourceIndex struct {
	Sources []model.SourceRecord

	// ByFootnote maps a footnote number to the ids of the sources it cites
	ByFootnote map[int][]string
}

// IdentityKey returns the dedupe key of a reference
// Normalized URL, then DOI, then a title/year hash. A reference with none of these
// is keyed by its footnote and content, so repeats inside one footnote collapse
// while the same bare "Smith 2020" under two footnotes stays two sources.
func IdentityKey(ref model.BibliographicReference, footnote int) string {
	if ref.URL != "" {
		if u, err := validate.NormalizeURL(ref.URL); err == nil && u != "" {
			return "url:" + u
		}
	}
	if doi := strings.ToLower(strings.TrimSpace(ref.DOI)); doi != "" {
		return "doi:" + doi
	}
	if title := extract.Normalize(ref.Title); title != "" {
		sum := sha256.Sum256([]byte(title + "|" + strings.TrimSpace(ref.Year)))
		return "title:" + hex.EncodeToString(sum[:8])
	}
	sum := sha256.Sum256([]byte(contentSignature(ref)))
	return fmt.Sprintf("fn:%d:%s", footnote, hex.EncodeToString(sum[:8]))
}

// contentSignature is the normalized text of a reference without identifiers
func contentSignature(ref model.BibliographicReference) string {
	if raw := extract.Normalize(ref.RawReference); raw != "" {
		return raw
	}
	parts := make([]string, 0, len(ref.Authors)+2)
	for _, a := range ref.Authors {
		parts = append(parts, extract.Normalize(a))
	}
	parts = append(parts, strings.TrimSpace(ref.Year), extract.Normalize(ref.PublisherOrSource))
	return strings.Join(parts, "|")
}

// BuildSources dedupes reference rows into source records
// Records are ordered by their first citing footnote, then identity key.
func BuildSources(rows []model.StructuredReferenceRow) *SourceIndex {
	idx := &SourceIndex{
		ByFootnote: make(map[int][]string),
	}
	byKey := make(map[string]int)

	for _, row := range rows {
		ref := row.Reference
		if ref.IsEmpty() {
			continue
		}
		key := IdentityKey(ref, row.FootnoteNumber)

		pos, ok := byKey[key]
		if !ok {
			pos = len(idx.Sources)
			byKey[key] = pos
			idx.Sources = append(idx.Sources, model.SourceRecord{
				SourceID:        uuid.NewSHA1(sourceNamespace, []byte(key)).String(),
				IdentityKey:     key,
				FootnoteNumbers: []int{},
			})
		}
		mergeReference(&idx.Sources[pos], ref, row.FootnoteNumber)
	}

	sort.SliceStable(idx.Sources, func(i, j int) bool {
		a, b := idx.Sources[i], idx.Sources[j]
		if a.FootnoteNumbers[0] != b.FootnoteNumbers[0] {
			return a.FootnoteNumbers[0] < b.FootnoteNumbers[0]
		}
		return a.IdentityKey < b.IdentityKey
	})

	for _, src := range idx.Sources {
		for _, fn := range src.FootnoteNumbers {
			idx.ByFootnote[fn] = append(idx.ByFootnote[fn], src.SourceID)
		}
	}
	return idx
}

// mergeReference folds one reference into a record, keeping the first value of every field
func mergeReference(rec *model.SourceRecord, ref model.BibliographicReference, footnote int) {
	if rec.URL == "" && ref.URL != "" {
		rec.URL = ref.URL
		rec.Domain = validate.ExtractDomain(ref.URL)
	}
	if rec.DOI == "" {
		rec.DOI = ref.DOI
	}
	if rec.Title == "" {
		rec.Title = ref.Title
	}
	if rec.Year == "" {
		rec.Year = ref.Year
	}
	if len(rec.Authors) == 0 && len(ref.Authors) > 0 {
		rec.Authors = append([]string(nil), ref.Authors...)
	}
	if rec.Publisher == "" {
		rec.Publisher = ref.PublisherOrSource
	}
	if rec.Domain == "" && rec.DOI != "" {
		rec.Domain = "doi.org"
	}

	pos := sort.SearchInts(rec.FootnoteNumbers, footnote)
	if pos < len(rec.FootnoteNumbers) && rec.FootnoteNumbers[pos] == footnote {
		return
	}
	rec.FootnoteNumbers = append(rec.FootnoteNumbers, 0)
	copy(rec.FootnoteNumbers[pos+1:], rec.FootnoteNumbers[pos:])
	rec.FootnoteNumbers[pos] = footnote
}

// Linked returns the distinct sources cited by the given footnotes, in source order
func (s *SourceIndex) Linked(footnotes []int) []model.SourceRecord {
	want := make(map[string]bool)
	for _, fn := range footnotes {
		for _, id := range s.ByFootnote[fn] {
			want[id] = true
		}
	}
	var out []model.SourceRecord
	for _, src := range s.Sources {
		if want[src.SourceID] {
			out = append(out, src)
		}
	}
	return out
}

// Traceable reports whether a source names who published it and where to find it
func Traceable(src model.SourceRecord) bool {
	hasEntity := len(src.Authors) > 0 || src.Publisher != ""
	return hasEntity && (src.URL != "" || src.Title != "" || src.Publisher != "")
}
