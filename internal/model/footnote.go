package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Pages is the ordered, 0-indexed sequence of raw page texts for one document
type Pages []string

// Flatten joins the pages with newlines and returns the text plus the
// starting offset of every page within it
func (p Pages) Flatten() (string, []int) {
	offsets := make([]int, len(p))
	var buf strings.Builder
	for i, page := range p {
		if i > 0 {
			buf.WriteByte('\n')
		}
		offsets[i] = buf.Len()
		buf.WriteString(page)
	}
	return buf.String(), offsets
}

// PageAt maps a position in the flattened text back to its page index
func PageAt(offsets []int, pos int) int {
	page := 0
	for i, off := range offsets {
		if pos < off {
			break
		}
		page = i
	}
	return page
}

// CitationStyle classifies how an in-text marker was written
type CitationStyle string

const (
	StyleTexSuperscript CitationStyle = "tex_superscript" // ^{12} or $^{12}$
	StyleNumeric        CitationStyle = "numeric"         // [12]
	StyleRoman          CitationStyle = "roman"           // [iv]
	StyleAuthorYear     CitationStyle = "author_year"     // (Smith, 2020) or [12] next to a year
	StyleFootnote       CitationStyle = "footnote"        // bare superscript glyphs ¹²
)

// FootnoteDefinition is one numbered footnote body found on a page
type FootnoteDefinition struct {
	Index     int    `json:"index"`
	FirstLine string `json:"first_line"`
	BodyText  string `json:"body_text"`
	PageIndex int    `json:"page_index"`
}

// InTextCitationHit is one occurrence of a citation marker in the body text
type InTextCitationHit struct {
	Index            string        `json:"index"`            // Marker as written ("12", "iv", "Smith 2020")
	Number           int           `json:"number,omitempty"` // Footnote number the marker points at, 0 for author-year identifiers
	AnchorText       string        `json:"anchor_text"`      // Word the marker is attached to
	PrecedingContext string        `json:"preceding_context"`
	Position         int           `json:"position"` // Offset in the flattened document text
	PageIndex        int           `json:"page_index"`
	Style            CitationStyle `json:"style"`
}

// DedupeKey identifies a hit for duplicate suppression
func (h InTextCitationHit) DedupeKey() string {
	return string(h.Style) + "|" + h.Index + "|" + h.AnchorText + "|" + itoa(h.Position)
}

// UnmarshalJSON accepts index as a JSON number or string and derives Number
// from a numeric or roman index when number is absent
func (h *InTextCitationHit) UnmarshalJSON(data []byte) error {
	type plain InTextCitationHit
	var raw struct {
		plain
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = InTextCitationHit(raw.plain)

	index := bytes.TrimSpace(raw.Index)
	switch {
	case len(index) == 0 || string(index) == "null":
		h.Index = ""
	case index[0] == '"':
		if err := json.Unmarshal(index, &h.Index); err != nil {
			return fmt.Errorf("citation index: %w", err)
		}
	default:
		n, err := strconv.Atoi(string(index))
		if err != nil {
			return fmt.Errorf("citation index %s: not an integer", index)
		}
		h.Index = strconv.Itoa(n)
	}

	if h.Number == 0 {
		h.Number = IndexNumber(h.Index)
	}
	return nil
}

// IndexNumber reads a marker index written as digits or a roman numeral; 0 otherwise
func IndexNumber(index string) int {
	index = strings.TrimSpace(index)
	if n, err := strconv.Atoi(index); err == nil && n > 0 {
		return n
	}
	return RomanToInt(index)
}

// PageIndex is the output of the page index builder
type PageIndex struct {
	// Definitions holds one map per page: footnote index -> definition
	Definitions []map[int]FootnoteDefinition `json:"-"`

	// FootnoteLines marks, per page, which line numbers belong to footnote blocks
	FootnoteLines []map[int]bool `json:"-"`

	Hits []InTextCitationHit `json:"hits"`
}

// IndexSets returns the sorted footnote indices defined on every page
func (pi *PageIndex) IndexSets() [][]int {
	sets := make([][]int, len(pi.Definitions))
	for p, defs := range pi.Definitions {
		sets[p] = SortedKeys(defs)
	}
	return sets
}

// SeenPages maps each defined footnote index to the pages it appears on
func (pi *PageIndex) SeenPages() map[int][]int {
	seen := make(map[int][]int)
	for p, defs := range pi.Definitions {
		for idx := range defs {
			seen[idx] = append(seen[idx], p)
		}
	}
	return seen
}

// CandidatePage is a scored guess at where a missing footnote lives
type CandidatePage struct {
	PageIndex int     `json:"page_index"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// HardProof records the re-scan of the claimed page
type HardProof struct {
	Found     bool   `json:"found"`
	PageIndex int    `json:"page_index"`
	Reason    string `json:"reason"`
}

// NeighborCheck records whether footnotes m-1/m+1 sit near the claimed page
type NeighborCheck struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// ResolutionRecord is the outcome of resolving one missing footnote index
type ResolutionRecord struct {
	Index             int                      `json:"index"`
	Found             bool                     `json:"found"`
	InferredPageIndex int                      `json:"inferred_page_index"`
	FootnoteText      string                   `json:"footnote_text"`
	Evidence          string                   `json:"evidence"`
	Confidence        float64                  `json:"confidence"`
	Validated         bool                     `json:"validated"`
	HardProof         HardProof                `json:"hard_proof"`
	NeighborCheck     NeighborCheck            `json:"neighbor_check"`
	Candidates        []CandidatePage          `json:"candidates,omitempty"`
	Flags             []string                 `json:"flags,omitempty"`
	Trace             []string                 `json:"trace,omitempty"`
	References        []BibliographicReference `json:"references,omitempty"`
}

// HasFlag reports whether the record carries the given flag
func (r *ResolutionRecord) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// FootnoteSource names the tier a merged footnote came from
type FootnoteSource string

const (
	SourcePageScan  FootnoteSource = "page_scan"
	SourceExternal  FootnoteSource = "citation_parser"
	SourceRecovered FootnoteSource = "recovered"
	SourceRescan    FootnoteSource = "canonical_rescan"
	SourceOracle    FootnoteSource = "canonical_oracle"
)

// Priority orders tiers when two candidates have equally rich text
func (s FootnoteSource) Priority() int {
	switch s {
	case SourceRecovered, SourceRescan, SourceOracle:
		return 3
	case SourceExternal:
		return 2
	default:
		return 1
	}
}

// MergedFootnote is one entry of the document-wide footnote map
type MergedFootnote struct {
	Index     int            `json:"index"`
	Text      string         `json:"text"`
	PageIndex int            `json:"page_index"` // -1 when unknown
	Source    FootnoteSource `json:"source"`
	Stitched  bool           `json:"stitched,omitempty"`
}

// RepairedIndex is one index filled in by canonical repair
type RepairedIndex struct {
	Index     int            `json:"index"`
	Source    FootnoteSource `json:"source"`
	PageIndex int            `json:"page_index"`
}

// CanonicalRepairLog summarises the canonical repair pass
type CanonicalRepairLog struct {
	CanonicalMax    int             `json:"canonical_max"`
	RepairedIndices []RepairedIndex `json:"repaired_indices"`
	DroppedOutliers []int           `json:"dropped_outliers"`
	StillMissing    []int           `json:"still_missing,omitempty"`
	StitchedIndices []int           `json:"stitched_indices,omitempty"`
}

// SequenceChecks reports numbering anomalies in the merged footnote map
type SequenceChecks struct {
	MaxIndex   int   `json:"max_index"`
	Count      int   `json:"count"`
	Gaps       []int `json:"gaps"`
	OutOfOrder []int `json:"out_of_order"`
	Duplicates []int `json:"duplicated_indices"`
	Contiguous bool  `json:"contiguous"`
}

// CitationInput is an optional pre-parsed citation object supplied with the pages
type CitationInput struct {
	Footnotes  CitationFootnotes   `json:"footnotes"`
	Tex        []InTextCitationHit `json:"tex,omitempty"`
	Numeric    []InTextCitationHit `json:"numeric,omitempty"`
	AuthorYear []InTextCitationHit `json:"author_year,omitempty"`
}

// CitationFootnotes carries footnote items and in-text hits from an external parser
type CitationFootnotes struct {
	Items  map[int]string      `json:"items"`
	Intext []InTextCitationHit `json:"intext"`
}

// AllHits flattens every hit list of the citation object
func (c *CitationInput) AllHits() []InTextCitationHit {
	if c == nil {
		return nil
	}
	var hits []InTextCitationHit
	hits = append(hits, c.Footnotes.Intext...)
	hits = append(hits, c.Tex...)
	hits = append(hits, c.Numeric...)
	hits = append(hits, c.AuthorYear...)
	return hits
}
