package model

// BibliographicReference is a structured citation pulled out of one footnote
type BibliographicReference struct {
	Authors           []string `json:"authors"`
	Year              string   `json:"year"`
	Title             string   `json:"title"`
	URL               string   `json:"url"`
	DOI               string   `json:"doi"`
	PublisherOrSource string   `json:"publisher_or_source"`
	RawReference      string   `json:"raw_reference"`
}

// IsEmpty reports whether the reference carries no bibliographic fields at all
func (r BibliographicReference) IsEmpty() bool {
	return len(r.Authors) == 0 && r.Year == "" && r.Title == "" && r.URL == "" &&
		r.DOI == "" && r.PublisherOrSource == "" && r.RawReference == ""
}

// StructuredReferenceRow pairs one in-text mention with one bibliographic reference
type StructuredReferenceRow struct {
	FootnoteNumber int                    `json:"footnote_number"`
	CitationType   string                 `json:"citation_type"`  // in_text_marker, definition_only
	CitationStyle  CitationStyle          `json:"citation_style"` // style of the in-text mention
	PageIndex      int                    `json:"page_index"`     // page of the mention, or of the definition when unmentioned
	DefinitionPage int                    `json:"definition_page"`
	MentionContext string                 `json:"mention_context,omitempty"`
	Reference      BibliographicReference `json:"reference"`
	FootnoteText   string                 `json:"footnote_text"`
	Extractor      string                 `json:"extractor"` // oracle or deterministic
	Confidence     float64                `json:"confidence"`
}
